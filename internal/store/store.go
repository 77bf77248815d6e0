package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a circuit row does not exist.
var ErrNotFound = errors.New("circuit not found")

// CircuitType distinguishes operator kill switches from auto-managed provider
// breakers.
type CircuitType string

const (
	CircuitTypeManual   CircuitType = "manual"
	CircuitTypeProvider CircuitType = "provider"
)

// State is the persisted on/off/half-open status of a circuit.
type State string

const (
	StateOn       State = "on"
	StateOff      State = "off"
	StateHalfOpen State = "half_open"
)

// CircuitState is one persisted row per named circuit. Counter and timestamp
// fields are only meaningful for provider circuits.
type CircuitState struct {
	CircuitID        string      `json:"circuit_id"`
	CircuitType      CircuitType `json:"circuit_type"`
	State            State       `json:"state"`
	DefaultState     State       `json:"default_state"`
	FailureCount     int         `json:"failure_count"`
	SuccessCount     int         `json:"success_count"`
	FailureThreshold int         `json:"failure_threshold"`
	LastFailureAt    *time.Time  `json:"last_failure_at,omitempty"`
	LastSuccessAt    *time.Time  `json:"last_success_at,omitempty"`
	StateChangedAt   *time.Time  `json:"state_changed_at,omitempty"`
}

// StateUpdate is a partial update; nil fields are left untouched.
type StateUpdate struct {
	State          *State
	FailureCount   *int
	SuccessCount   *int
	LastFailureAt  *time.Time
	LastSuccessAt  *time.Time
	StateChangedAt *time.Time
}

// Repository persists circuit state rows. The circuit breaker is the only
// writer; everything else reads through the breaker's projections.
type Repository interface {
	// GetState returns the row for a circuit, or ErrNotFound.
	GetState(ctx context.Context, circuitID string) (*CircuitState, error)

	// SetState applies a partial update to an existing row.
	SetState(ctx context.Context, circuitID string, update StateUpdate) error

	// GetAllStates returns every circuit row.
	GetAllStates(ctx context.Context) ([]CircuitState, error)

	// InitializeCircuit inserts a row if absent; existing rows are untouched.
	InitializeCircuit(ctx context.Context, def CircuitState) error

	// RecordFailure increments the failure counter, stamps last_failure_at,
	// and returns the new count.
	RecordFailure(ctx context.Context, circuitID string, at time.Time) (int, error)

	// RecordSuccess increments the success counter, stamps last_success_at,
	// and returns the new count.
	RecordSuccess(ctx context.Context, circuitID string, at time.Time) (int, error)

	// ResetCounters zeroes both counters.
	ResetCounters(ctx context.Context, circuitID string) error
}
