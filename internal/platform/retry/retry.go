package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config controls the exponential backoff schedule. Retryable decides whether
// an error is worth another attempt; a nil Retryable retries everything.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Retryable    func(error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Do runs op up to MaxRetries+1 times. After attempt n it sleeps
// min(MaxDelay, InitialDelay*Multiplier^n + jitter), jitter uniform in [0,1s)
// to avoid thundering-herd resynchronization. A non-retryable error propagates
// immediately; exhausting retries returns the last error.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2.0
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := backoffDelay(cfg.InitialDelay, mult, attempt)
		delay += time.Duration(rand.Int63n(int64(time.Second)))
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func backoffDelay(initial time.Duration, mult float64, attempt int) time.Duration {
	d := float64(initial)
	for i := 0; i < attempt; i++ {
		d *= mult
	}
	return time.Duration(d)
}
