package runner

import (
	"context"
	"time"
)

// Waiter is a cancellable timed wait. The poll loop uses it for both idle
// waits and retry delays; tests inject an instant implementation so they
// run without real delays.
type Waiter interface {
	// Wait blocks for the duration or until the context is canceled, in
	// which case it returns the context's error.
	Wait(ctx context.Context, d time.Duration) error
}

// SleepWaiter is the production Waiter backed by a timer
type SleepWaiter struct{}

// Wait blocks for d or until ctx is canceled
func (SleepWaiter) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
