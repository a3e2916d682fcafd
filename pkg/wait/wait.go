// Package wait provides context-aware condition waits and retries with exponential backoff.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Until when the condition did not become true in time.
var ErrTimeout = errors.New("timeout waiting for condition")

// Condition reports whether the awaited state has been reached.
type Condition func(ctx context.Context) (bool, error)

// Sleep pauses for d or until ctx is done. Non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Until checks cond every interval until it returns true or timeout expires.
// condition errors don't stop the wait; the last one is reported with the timeout.
func Until(ctx context.Context, cond Condition, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		if sleepErr := Sleep(ctx, interval); sleepErr != nil {
			if errors.Is(sleepErr, context.DeadlineExceeded) {
				if lastErr != nil {
					return fmt.Errorf("%w after %v, last error: %w", ErrTimeout, timeout, lastErr)
				}
				return fmt.Errorf("%w after %v", ErrTimeout, timeout)
			}
			return sleepErr
		}
	}
}
