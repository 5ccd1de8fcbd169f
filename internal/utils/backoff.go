package utils

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// BackoffPolicy controls the retry behavior of Retry.
type BackoffPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       bool
}

// Delay computes the backoff delay before retrying after the given attempt
// index. The delay doubles per attempt, capped at MaxDelay; with jitter it is
// drawn uniformly from [0.5*delay, delay].
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}
	return delay
}

// Retry executes op up to MaxRetries times, sleeping the policy delay between
// attempts. The upstream is rate limited, so every error is retried
// identically; the final error is propagated unchanged so callers can still
// classify it. Cancelling the context aborts the wait between attempts.
func Retry[T any](ctx context.Context, logger zerolog.Logger, name string, policy BackoffPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == policy.MaxRetries-1 {
			break
		}

		delay := policy.Delay(attempt)
		logger.Warn().
			Str("operation", name).
			Int("attempt", attempt+1).
			Int("max_retries", policy.MaxRetries).
			Dur("delay", delay).
			Err(err).
			Msg("Operation failed, retrying after backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	logger.Error().
		Str("operation", name).
		Int("attempts", policy.MaxRetries).
		Err(lastErr).
		Msg("Operation failed after exhausting retries")
	return zero, lastErr
}

// Sleep waits for d or until the context is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
