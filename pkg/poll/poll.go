// Package poll provides a scroll-and-stabilize loop for lazily loaded content.
// It repeatedly advances a target, re-measures it and stops when the target signals
// completion, when its size stops growing for an idle period, or when a step budget runs out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tripqa/tripqa/pkg/wait"
)

// Outcome is the terminal state of a poll run.
type Outcome int

// Outcome values. They are mutually exclusive.
const (
	Completed  Outcome = iota + 1 // done probe reported completion
	Stabilized                    // no growth for at least the idle threshold
	Exhausted                     // step budget used up
)

// String returns lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Stabilized:
		return "stabilized"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// GrowthPolicy decides whether a new measurement counts as growth.
// only growth resets the idle timer.
type GrowthPolicy func(last, current float64) bool

// StrictGrowth treats only strictly larger measurements as growth.
// a measurement that shrinks or repeats (re-layout jitter) does not reset the idle timer,
// so a page that shrinks and regrows may be reported stable slightly early.
func StrictGrowth(last, current float64) bool { return current > last }

// Config holds poll parameters.
type Config struct {
	StepSize      float64       // amount passed to Advance on every step (e.g. pixels)
	StepInterval  time.Duration // pause after each advance, before re-measuring
	IdleThreshold time.Duration // minimum time without growth to declare the target stable
	MaxSteps      int           // hard ceiling on iterations
	Growth        GrowthPolicy  // growth check, StrictGrowth if nil
}

// DefaultConfig returns defaults tuned for infinite-scroll result lists.
func DefaultConfig() Config {
	return Config{
		StepSize:      1200,
		StepInterval:  400 * time.Millisecond,
		IdleThreshold: time.Second,
		MaxSteps:      200,
		Growth:        StrictGrowth,
	}
}

// Validate checks config values.
func (c Config) Validate() error {
	if c.StepSize <= 0 {
		return fmt.Errorf("invalid step size: must be positive, got %v", c.StepSize)
	}
	if c.StepInterval < 0 {
		return fmt.Errorf("invalid step interval: must be non-negative, got %v", c.StepInterval)
	}
	if c.IdleThreshold < 0 {
		return fmt.Errorf("invalid idle threshold: must be non-negative, got %v", c.IdleThreshold)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("invalid max steps: must be positive, got %d", c.MaxSteps)
	}
	return nil
}

// Probes are the caller-supplied operations against the polled target.
// Measure must not change the target; Advance makes one unit of forward progress.
// Done is optional and reports an explicit completion signal; its errors mean
// "not known yet" and never abort the poll.
type Probes struct {
	Measure func(ctx context.Context) (float64, error)
	Advance func(ctx context.Context, step float64) error
	Done    func(ctx context.Context) (bool, error)
}

// Result describes how a poll run ended.
type Result struct {
	Outcome       Outcome
	Steps         int           // completed advance+measure cycles, never above MaxSteps
	Last          float64       // last measurement that counted as growth (or the initial one)
	Indeterminate int           // number of Done checks that returned an error
	Elapsed       time.Duration // wall time of the run
}

// ErrNoProbes is returned when Measure or Advance is missing.
var ErrNoProbes = errors.New("measure and advance probes are required")

// ProbeFault reports a failure of the Measure or Advance probe. The poll stops on it.
type ProbeFault struct {
	Op   string // "measure" or "advance"
	Step int    // steps completed before the failure
	Err  error
}

func (f *ProbeFault) Error() string {
	return fmt.Sprintf("%s probe failed after %d steps: %v", f.Op, f.Step, f.Err)
}

func (f *ProbeFault) Unwrap() error { return f.Err }

// Poller runs the stabilization loop with a fixed config.
// a Poller holds no per-run state and may be reused, but each run assumes exclusive
// access to its target; callers serialize runs against the same target.
type Poller struct {
	cfg   Config
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New makes a Poller for the given config.
func New(cfg Config) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Growth == nil {
		cfg.Growth = StrictGrowth
	}
	return &Poller{cfg: cfg, now: time.Now, sleep: wait.Sleep}, nil
}

// Poll is a shortcut for New followed by Run.
func Poll(ctx context.Context, p Probes, cfg Config) (Result, error) {
	poller, err := New(cfg)
	if err != nil {
		return Result{}, err
	}
	return poller.Run(ctx, p)
}

// state is the mutable loop state owned by a single Run call.
type state struct {
	last        float64
	stableSince time.Time
	steps       int
}

// Run drives the target until it completes, stabilizes or the step budget is used up.
// errors are either *ProbeFault or a wrapped context error; budget exhaustion is not an error.
func (p *Poller) Run(ctx context.Context, probes Probes) (Result, error) {
	if probes.Measure == nil || probes.Advance == nil {
		return Result{}, ErrNoProbes
	}

	started := p.now()
	res := Result{}
	finish := func(o Outcome, st state) (Result, error) {
		res.Outcome = o
		res.Steps = st.steps
		res.Last = st.last
		res.Elapsed = p.now().Sub(started)
		return res, nil
	}

	initial, err := probes.Measure(ctx)
	if err != nil {
		return Result{}, &ProbeFault{Op: "measure", Step: 0, Err: err}
	}
	st := state{last: initial, stableSince: p.now()}

	for st.steps < p.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("poll interrupted after %d steps: %w", st.steps, err)
		}

		// cheap completion check goes first, so an already complete target needs no advance
		if probes.Done != nil {
			done, doneErr := probes.Done(ctx)
			if doneErr != nil {
				res.Indeterminate++
			} else if done {
				return finish(Completed, st)
			}
		}

		if err := probes.Advance(ctx, p.cfg.StepSize); err != nil {
			return Result{}, &ProbeFault{Op: "advance", Step: st.steps, Err: err}
		}

		if err := p.sleep(ctx, p.cfg.StepInterval); err != nil {
			return Result{}, fmt.Errorf("poll interrupted after %d steps: %w", st.steps, err)
		}

		current, err := probes.Measure(ctx)
		if err != nil {
			return Result{}, &ProbeFault{Op: "measure", Step: st.steps, Err: err}
		}

		if p.cfg.Growth(st.last, current) {
			st.last = current
			st.stableSince = p.now()
		} else if p.now().Sub(st.stableSince) >= p.cfg.IdleThreshold {
			st.steps++
			return finish(Stabilized, st)
		}
		st.steps++
	}

	return finish(Exhausted, st)
}
