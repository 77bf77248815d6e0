package content

import (
	"context"

	flaperrors "flap/internal/errors"
	"flap/internal/llm"
	"flap/internal/logging"
)

// OutcomeRecorder receives the result of each provider attempt so circuit
// state can be kept; the failover decision itself never consults it.
type OutcomeRecorder interface {
	RecordProviderFailure(ctx context.Context, circuitID string, err error)
	RecordProviderSuccess(ctx context.Context, circuitID string)
}

// FailoverRunner runs a generator against the preferred provider binding and,
// on a retryable failure, retries exactly once against the alternate. Any
// further failure propagates; there is no second retry and no backoff.
type FailoverRunner struct {
	recorder OutcomeRecorder
	logger   logging.Logger
}

// NewFailoverRunner builds a runner; recorder may be nil.
func NewFailoverRunner(recorder OutcomeRecorder) *FailoverRunner {
	return &FailoverRunner{
		recorder: recorder,
		logger:   logging.NewComponentLogger("failover"),
	}
}

// Run executes one generation with at most one provider switch. The alternate
// may be nil, in which case the preferred outcome is final either way.
func (r *FailoverRunner) Run(ctx context.Context, gen Generator, genCtx GenerationContext, preferred, alternate *llm.Binding) (*GeneratedContent, error) {
	content, err := r.attempt(ctx, gen, genCtx, preferred)
	if err == nil {
		if preferred != nil {
			content.SetMeta(MetaProvider, preferred.Name)
			content.SetMeta(MetaTier, preferred.Tier)
			content.SetMeta(MetaFailover, false)
		}
		return content, nil
	}

	if !flaperrors.IsFailoverRetryable(err) {
		r.logger.Warn("non-retryable failure (%s), not failing over: %v", flaperrors.Classify(err), err)
		return nil, err
	}
	if alternate == nil {
		r.logger.Warn("retryable failure but no alternate binding: %v", err)
		return nil, err
	}

	r.logger.Info("failing over %s -> %s after %s failure", bindingName(preferred), alternate.Name, flaperrors.Classify(err))
	content, altErr := r.attempt(ctx, gen, genCtx, alternate)
	if altErr != nil {
		return nil, altErr
	}
	content.SetMeta(MetaProvider, alternate.Name)
	content.SetMeta(MetaTier, alternate.Tier)
	content.SetMeta(MetaFailover, true)
	return content, nil
}

func (r *FailoverRunner) attempt(ctx context.Context, gen Generator, genCtx GenerationContext, binding *llm.Binding) (*GeneratedContent, error) {
	content, err := gen.Generate(ctx, genCtx, binding)
	if r.recorder != nil && binding != nil {
		if err != nil {
			r.recorder.RecordProviderFailure(ctx, binding.CircuitID, err)
		} else {
			r.recorder.RecordProviderSuccess(ctx, binding.CircuitID)
		}
	}
	return content, err
}

func bindingName(b *llm.Binding) string {
	if b == nil {
		return "none"
	}
	return b.Name
}
