package common

import (
	"context"
	"time"
)

// PollResult reports how a polling loop ended.
type PollResult int

const (
	PollSatisfied PollResult = iota
	PollTimedOut
	PollCancelled
)

// PollUntil re-evaluates fn on a fixed interval until it reports done, the
// attempt bound is exhausted, or the context is cancelled. fn runs once
// immediately before the first sleep. A non-nil error from fn stops the loop.
//
// Every polling point in the export workflow (history list, download sink,
// login markers) goes through this single primitive.
func PollUntil(ctx context.Context, interval time.Duration, attempts int, fn func(ctx context.Context) (bool, error)) (PollResult, error) {
	if attempts < 1 {
		attempts = 1
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return PollTimedOut, err
		}
		if done {
			return PollSatisfied, nil
		}
		if attempt >= attempts {
			return PollTimedOut, nil
		}

		select {
		case <-ctx.Done():
			return PollCancelled, ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollFor is PollUntil with a wall-clock bound instead of an attempt count.
func PollFor(ctx context.Context, interval, timeout time.Duration, fn func(ctx context.Context) (bool, error)) (PollResult, error) {
	attempts := int(timeout / interval)
	if attempts < 1 {
		attempts = 1
	}
	return PollUntil(ctx, interval, attempts, fn)
}
