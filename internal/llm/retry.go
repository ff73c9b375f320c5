package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// MaxRetries is how many times a retryable call is repeated.
const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries are used up. wait is the sleep between attempts;
// pass nil for Backoff.
func Retry[T any](ctx context.Context, log *slog.Logger, wait func(int) time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if wait == nil {
		wait = Backoff
	}
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) || attempt >= MaxRetries {
			return zero, err
		}
		d := wait(attempt)
		log.Warn("retrying llm call", "attempt", attempt+1, "delay_ms", d.Milliseconds(), "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(d):
		}
	}
}
