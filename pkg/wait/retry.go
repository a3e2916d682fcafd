package wait

import (
	"context"
	"time"
)

// RetryConfig defines how many times a failing call is repeated.
type RetryConfig struct {
	Count int           // retries after the first attempt, 0 means a single attempt
	Delay time.Duration // delay before the first retry, doubled for every next one
	Log   func(format string, args ...any)
}

// Effector is the function called by Retry.
type Effector func(ctx context.Context) error

// Retry calls fn until it succeeds or the retries are used up, sleeping with exponential
// backoff between attempts. returns the last error of fn or the context error.
func Retry(ctx context.Context, fn Effector, rc RetryConfig) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt > rc.Count {
			return err
		}

		delay := backoff(rc.Delay, attempt)
		if rc.Log != nil {
			rc.Log("attempt %d failed: %v, retrying in %v", attempt, err, delay)
		}
		if sleepErr := Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// maxBackoff caps the doubled delay. a larger initial delay is kept as is.
const maxBackoff = time.Minute

// backoff returns the delay before retry number attempt, first attempt is 1.
func backoff(initial time.Duration, attempt int) time.Duration {
	if attempt <= 1 || initial <= 0 {
		return initial
	}
	shift := attempt - 1
	if shift >= 63 || initial > maxBackoff>>shift {
		return max(initial, maxBackoff)
	}
	return initial << shift
}
