package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/tripqa/tripqa/pkg/poll"
)

// Evaluator runs javascript in a page. playwright.Page satisfies it.
type Evaluator interface {
	Evaluate(expression string, arg ...any) (any, error)
}

// Waiter waits for a locator state. playwright.Locator satisfies it.
type Waiter interface {
	WaitFor(options ...playwright.LocatorWaitForOptions) error
}

// ContentHeight returns document.body.scrollHeight.
func ContentHeight(ev Evaluator) (float64, error) {
	v, err := ev.Evaluate(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("evaluate scroll height: %w", err)
	}
	switch h := v.(type) {
	case int:
		return float64(h), nil
	case int64:
		return float64(h), nil
	case float64:
		return h, nil
	default:
		return 0, fmt.Errorf("unexpected scroll height type %T", v)
	}
}

// ScrollBy scrolls the window down by px pixels.
func ScrollBy(ev Evaluator, px float64) error {
	if _, err := ev.Evaluate(`y => window.scrollBy(0, y)`, px); err != nil {
		return fmt.Errorf("scroll by %v: %w", px, err)
	}
	return nil
}

// ScrollToEnd scrolls the page until done reports true, the content height stops growing
// for cfg.IdleThreshold, or cfg.MaxSteps scrolls were made. done may be nil.
func ScrollToEnd(ctx context.Context, ev Evaluator, cfg poll.Config, done func(ctx context.Context) (bool, error)) (poll.Result, error) {
	probes := poll.Probes{
		Measure: func(context.Context) (float64, error) { return ContentHeight(ev) },
		Advance: func(_ context.Context, step float64) error { return ScrollBy(ev, step) },
		Done:    done,
	}
	res, err := poll.Poll(ctx, probes, cfg)
	if err != nil {
		return res, fmt.Errorf("scroll to end: %w", err)
	}
	return res, nil
}

// MarkerProbe makes a done probe that checks whether the marker becomes visible within timeout.
// a timeout comes back as (false, err) so the poller counts it as not known yet.
func MarkerProbe(marker Waiter, timeout time.Duration) func(ctx context.Context) (bool, error) {
	return func(context.Context) (bool, error) {
		err := marker.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: ms(timeout),
		})
		if err != nil {
			return false, fmt.Errorf("marker not visible: %w", err)
		}
		return true, nil
	}
}
