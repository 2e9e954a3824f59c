package gateway

import (
	"context"
	"errors"
	"time"
)

// Retry runs fn up to attempts times, doubling the delay between tries.
// Only transient gateway errors are retried; anything else, including a
// rejection, returns immediately. Ambiguous outcomes are never re-derived
// here: callers pass the same idempotency key so a retry cannot double-apply.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
