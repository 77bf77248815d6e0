package breaker

import (
	"context"
	"time"

	flaperrors "flap/internal/errors"
	"flap/internal/logging"
	"flap/internal/store"
)

const (
	// DefaultResetTimeout is how long a tripped provider circuit stays off
	// before probes are allowed through again.
	DefaultResetTimeout = 5 * time.Minute

	// DefaultProbeQuota is the number of consecutive half-open successes
	// needed to close a provider circuit.
	DefaultProbeQuota = 2
)

// Config tunes the recovery behavior of provider circuits.
type Config struct {
	ResetTimeout time.Duration
	ProbeQuota   int
}

// DefaultConfig returns the stock recovery tuning.
func DefaultConfig() Config {
	return Config{ResetTimeout: DefaultResetTimeout, ProbeQuota: DefaultProbeQuota}
}

// CircuitBreaker gates calls to fallible collaborators and records their
// outcomes. All state lives in the repository; this type holds only policy.
//
// Every failure path here degrades to the safer default: reads fail open
// (traffic allowed), writes are best-effort and logged. A storage hiccup must
// never block the content pipeline.
type CircuitBreaker struct {
	repo     store.Repository
	registry []Definition
	config   Config
	logger   logging.Logger
	metrics  *Metrics
	now      func() time.Time
}

// New creates a circuit breaker over the given repository and registry. The
// registry is the full set of circuits Initialize will bootstrap.
func New(repo store.Repository, registry []Definition, config Config, logger logging.Logger) *CircuitBreaker {
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	if config.ProbeQuota <= 0 {
		config.ProbeQuota = DefaultProbeQuota
	}
	return &CircuitBreaker{
		repo:     repo,
		registry: registry,
		config:   config,
		logger:   logging.OrNop(logger),
		metrics:  defaultMetrics(),
		now:      time.Now,
	}
}

// Initialize idempotently ensures a row exists for every registered circuit.
// Best-effort bootstrap: storage errors are logged, never returned.
func (cb *CircuitBreaker) Initialize(ctx context.Context) {
	for _, def := range cb.registry {
		err := cb.repo.InitializeCircuit(ctx, store.CircuitState{
			CircuitID:        def.ID,
			CircuitType:      def.Type,
			State:            def.DefaultState,
			DefaultState:     def.DefaultState,
			FailureThreshold: def.FailureThreshold,
		})
		if err != nil {
			cb.logger.Warn("[%s] failed to initialize circuit: %v", def.ID, err)
		}
	}
}

// IsOpen reports whether a circuit is switched off. Unknown circuits and
// storage errors fail open (false): absence of a circuit must not block
// traffic.
func (cb *CircuitBreaker) IsOpen(ctx context.Context, circuitID string) bool {
	cs, err := cb.repo.GetState(ctx, circuitID)
	if err != nil {
		if err != store.ErrNotFound {
			cb.logger.Warn("[%s] state read failed, failing open: %v", circuitID, err)
		}
		return false
	}
	return cs.State == store.StateOff
}

// SetState is the unconditional manual override used for kill switches and
// programmatic trips/resets. Storage errors are swallowed: a failed state
// write must not crash a request path.
func (cb *CircuitBreaker) SetState(ctx context.Context, circuitID string, state store.State) {
	now := cb.now().UTC()
	err := cb.repo.SetState(ctx, circuitID, store.StateUpdate{State: &state, StateChangedAt: &now})
	if err != nil {
		cb.logger.Warn("[%s] failed to set state to %s: %v", circuitID, state, err)
		return
	}
	cb.metrics.IncTransition(circuitID, string(state))
	cb.logger.Info("[%s] state set to %s", circuitID, state)
}

// RecordProviderFailure counts a provider failure and applies the trip policy.
// An authentication-class error trips the circuit immediately regardless of
// threshold; credentials are not self-healing and must stop traffic at once.
// Any failure while half-open re-opens the breaker in one step.
func (cb *CircuitBreaker) RecordProviderFailure(ctx context.Context, circuitID string, cause error) {
	class := flaperrors.Classify(cause)
	cb.metrics.IncFailure(circuitID, class.String())

	count, err := cb.repo.RecordFailure(ctx, circuitID, cb.now().UTC())
	if err != nil {
		cb.logger.Warn("[%s] failed to record failure: %v", circuitID, err)
		return
	}

	cs, err := cb.repo.GetState(ctx, circuitID)
	if err != nil {
		cb.logger.Warn("[%s] failed to reload state after failure: %v", circuitID, err)
		return
	}

	switch cs.State {
	case store.StateOn:
		if class == flaperrors.ClassAuth {
			cb.logger.Warn("[%s] authentication failure, tripping circuit immediately", circuitID)
			cb.SetState(ctx, circuitID, store.StateOff)
			return
		}
		if count >= cs.FailureThreshold && cs.FailureThreshold > 0 {
			cb.logger.Warn("[%s] failure threshold reached (%d/%d), tripping circuit",
				circuitID, count, cs.FailureThreshold)
			cb.SetState(ctx, circuitID, store.StateOff)
		} else {
			cb.logger.Debug("[%s] failure recorded (%d/%d, class=%s)",
				circuitID, count, cs.FailureThreshold, class)
		}
	case store.StateHalfOpen:
		// A probe failure re-opens the breaker without waiting for more
		// attempts, auth-class or not.
		cb.logger.Warn("[%s] probe failed while half-open, re-opening circuit", circuitID)
		cb.SetState(ctx, circuitID, store.StateOff)
	case store.StateOff:
		cb.logger.Debug("[%s] failure recorded while circuit already off", circuitID)
	}
}

// RecordProviderSuccess counts a provider success. While half-open, reaching
// the probe quota transitions the circuit back on with counters zeroed.
func (cb *CircuitBreaker) RecordProviderSuccess(ctx context.Context, circuitID string) {
	count, err := cb.repo.RecordSuccess(ctx, circuitID, cb.now().UTC())
	if err != nil {
		cb.logger.Warn("[%s] failed to record success: %v", circuitID, err)
		return
	}

	cs, err := cb.repo.GetState(ctx, circuitID)
	if err != nil {
		cb.logger.Warn("[%s] failed to reload state after success: %v", circuitID, err)
		return
	}

	if cs.State == store.StateHalfOpen {
		cb.logger.Debug("[%s] probe success (%d/%d)", circuitID, count, cb.config.ProbeQuota)
		if count >= cb.config.ProbeQuota {
			cb.SetState(ctx, circuitID, store.StateOn)
			if err := cb.repo.ResetCounters(ctx, circuitID); err != nil {
				cb.logger.Warn("[%s] failed to reset counters after recovery: %v", circuitID, err)
			}
			cb.logger.Info("[%s] circuit recovered, back on with clean counters", circuitID)
		}
	}
}

// IsProviderAvailable reports whether traffic may flow to a provider. An off
// circuit becomes available again once the reset timeout elapses; the
// off -> half_open write happens lazily here so the next attempt runs as a
// probe. Unknown circuits and storage errors fail open (true).
func (cb *CircuitBreaker) IsProviderAvailable(ctx context.Context, circuitID string) bool {
	cs, err := cb.repo.GetState(ctx, circuitID)
	if err != nil {
		if err != store.ErrNotFound {
			cb.logger.Warn("[%s] availability read failed, failing open: %v", circuitID, err)
		}
		return true
	}

	switch cs.State {
	case store.StateOn:
		return true
	case store.StateHalfOpen:
		// Probes are allowed through to test recovery.
		return true
	case store.StateOff:
		// A missing change timestamp cannot gate recovery; fail open and let
		// the next attempt run as a probe.
		if cs.StateChangedAt == nil || cb.now().Sub(*cs.StateChangedAt) >= cb.config.ResetTimeout {
			cb.logger.Info("[%s] reset timeout elapsed, transitioning to half-open", circuitID)
			cb.SetState(ctx, circuitID, store.StateHalfOpen)
			if err := cb.repo.ResetCounters(ctx, circuitID); err != nil {
				cb.logger.Warn("[%s] failed to reset counters entering half-open: %v", circuitID, err)
			}
			return true
		}
		return false
	default:
		return true
	}
}

// CircuitStatus returns the row for one circuit, or nil on any error.
func (cb *CircuitBreaker) CircuitStatus(ctx context.Context, circuitID string) *store.CircuitState {
	cs, err := cb.repo.GetState(ctx, circuitID)
	if err != nil {
		if err != store.ErrNotFound {
			cb.logger.Warn("[%s] status read failed: %v", circuitID, err)
		}
		return nil
	}
	return cs
}

// AllCircuits returns every circuit row; storage errors yield an empty slice.
func (cb *CircuitBreaker) AllCircuits(ctx context.Context) []store.CircuitState {
	states, err := cb.repo.GetAllStates(ctx)
	if err != nil {
		cb.logger.Warn("circuit list read failed: %v", err)
		return []store.CircuitState{}
	}
	return states
}

// CircuitsByType returns the circuits of one type; storage errors yield an
// empty slice.
func (cb *CircuitBreaker) CircuitsByType(ctx context.Context, circuitType store.CircuitType) []store.CircuitState {
	all := cb.AllCircuits(ctx)
	filtered := make([]store.CircuitState, 0, len(all))
	for _, cs := range all {
		if cs.CircuitType == circuitType {
			filtered = append(filtered, cs)
		}
	}
	return filtered
}

// ResetProviderCircuit forces a circuit on and zeroes all counters. Operator
// escape hatch.
func (cb *CircuitBreaker) ResetProviderCircuit(ctx context.Context, circuitID string) {
	cb.SetState(ctx, circuitID, store.StateOn)
	if err := cb.repo.ResetCounters(ctx, circuitID); err != nil {
		cb.logger.Warn("[%s] failed to reset counters: %v", circuitID, err)
	}
}
