package agents

import (
	"context"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
)

const (
	DefaultAttempts          = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

/**
RetryPolicy bounds how hard a step tries its collaborator before giving up
*/
type RetryPolicy struct {
	Attempts          int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func NewRetryPolicy(config helpers.AgentsConfig) RetryPolicy {
	p := RetryPolicy{
		Attempts:          config.Attempts,
		InitialBackoff:    config.InitialBackoff,
		MaxBackoff:        config.MaxBackoff,
		BackoffMultiplier: config.BackoffMultiplier,
	}
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = DefaultBackoffMultiplier
	}
	return p
}

/**
the wait before retry number `attempt` (counting from zero), capped at MaxBackoff
*/
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= p.BackoffMultiplier
	}
	backoff := time.Duration(float64(p.InitialBackoff) * multiplier)
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

/**
Do calls fn until it succeeds or the attempts run out, sleeping between tries. Exhaustion gives a *StepError;
a cancelled context is returned as-is.
*/
func (p RetryPolicy) Do(ctx context.Context, step string, jobId string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			wait := p.Backoff(attempt - 1)
			log.Debug().Str("uuid", jobId).Str("step", step).Msgf("Retrying in %s", wait)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Str("uuid", jobId).Str("step", step).Msgf("Attempt %d/%d failed: %s", attempt+1, p.Attempts, lastErr)
	}
	return &StepError{Step: step, Attempts: p.Attempts, Err: lastErr}
}
