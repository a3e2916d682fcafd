package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tripqa/tripqa/pkg/files"
	"github.com/tripqa/tripqa/pkg/fixture"
	"github.com/tripqa/tripqa/pkg/notify"
	"github.com/tripqa/tripqa/pkg/report"
)

// archiveLayout names archive directories, sortable and safe on every filesystem.
const archiveLayout = "2006-01-02T15-04-05"

// Notifier delivers the run result. *notify.Service satisfies it, including a nil one.
type Notifier interface {
	Send(ctx context.Context, r notify.Result)
}

// Teardown cleans up after tests and reports the run.
type Teardown struct {
	Layout     Layout
	Switches   Switches
	Log        Logger
	API        UserAPI
	Notifier   Notifier
	EventsPath string                        // go test -json output, optional
	Render     func(md string) (string, error) // console rendering of the summary, optional

	now func() time.Time
}

// Outcome is what teardown learned about the run.
type Outcome struct {
	State        RunState
	Tests        report.Run
	HasResults   bool // EventsPath was read
	TaskFailures int
}

// Failed reports whether the run should exit non-zero.
func (o Outcome) Failed() bool { return o.Tests.Summary.Failed > 0 }

// Run executes teardown tasks. test results are read first so every task can use them.
func (t *Teardown) Run(ctx context.Context) (Outcome, error) {
	out := Outcome{State: t.loadState()}
	if t.EventsPath != "" {
		run, err := t.readEvents()
		if err != nil {
			t.Log.Warn("no test results: %v", err)
		} else {
			out.Tests, out.HasResults = run, true
		}
	}

	tasks := []Task{
		{Name: "clean up test users", Enabled: t.Switches.CleanupTestData, Run: t.cleanupUsers},
		{Name: "write summary", Enabled: t.Switches.GenerateSummary, Run: func(context.Context) error {
			return t.writeSummary(out)
		}},
		{Name: "archive results", Enabled: t.Switches.ArchiveResults, Run: t.archive},
		{Name: "send notifications", Enabled: t.Switches.SendNotifications, Run: func(ctx context.Context) error {
			return t.sendNotification(ctx, out)
		}},
		{Name: "clean temp files", Enabled: t.Switches.CleanupTemp, Run: t.cleanupTemp},
	}
	failed, err := RunTasks(ctx, t.Log, tasks)
	out.TaskFailures = failed
	if err != nil {
		return out, err
	}
	return out, nil
}

func (t *Teardown) loadState() RunState {
	var st RunState
	if err := files.ReadJSON(t.Layout.RunState(), &st); err != nil {
		t.Log.Warn("no run state, setup did not run: %v", err)
		st.RunID = "unknown"
	}
	return st
}

func (t *Teardown) readEvents() (report.Run, error) {
	f, err := os.Open(t.EventsPath)
	if err != nil {
		return report.Run{}, fmt.Errorf("open test events: %w", err)
	}
	defer f.Close()
	return report.ParseTestEvents(f)
}

func (t *Teardown) cleanupUsers(ctx context.Context) error {
	path := t.Layout.GeneratedUsers()
	ok, err := files.Exists(path)
	if err != nil || !ok {
		return err
	}
	if t.API == nil {
		return errors.New("no api client")
	}
	var users []fixture.User
	if err := files.ReadJSON(path, &users); err != nil {
		return err
	}
	for _, u := range users {
		if err := t.API.DeleteUser(ctx, u.ID); err != nil {
			t.Log.Warn("could not delete user %s: %v", u.Email, err)
		}
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove generated users: %w", err)
	}
	return nil
}

type summaryFile struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Duration  string         `json:"duration"`
	BaseURL   string         `json:"base_url,omitempty"`
	Revision  string         `json:"revision,omitempty"`
	Summary   report.Summary `json:"summary"`
	Failures  []string       `json:"failures,omitempty"`
}

func (t *Teardown) writeSummary(out Outcome) error {
	if !out.HasResults {
		return errors.New("no test results to summarize")
	}
	ended := t.clock()
	sf := summaryFile{
		RunID:     out.State.RunID,
		StartedAt: out.State.StartedAt,
		EndedAt:   ended,
		Duration:  runDuration(out.State.StartedAt, ended),
		BaseURL:   out.State.BaseURL,
		Summary:   out.Tests.Summary,
		Failures:  out.Tests.Failures(),
	}
	if out.State.Revision.Commit != "" {
		sf.Revision = out.State.Revision.String()
	}
	if err := files.WriteJSON(t.Layout.Summary(), sf); err != nil {
		return err
	}

	gen := out.Tests.Generator("tripqa run " + out.State.RunID)
	if err := gen.WriteHTML(t.Layout.Report()); err != nil {
		return err
	}

	md := gen.Markdown()
	if t.Render != nil {
		if rendered, err := t.Render(md); err == nil {
			md = rendered
		}
	}
	t.Log.PrintAligned(md)
	return nil
}

// archive copies the current results, except older archives, into archive/<timestamp>.
func (t *Teardown) archive(context.Context) error {
	results := t.Layout.Results()
	entries, err := os.ReadDir(results)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	dst := filepath.Join(t.Layout.Archive(), t.clock().UTC().Format(archiveLayout))
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	copied := 0
	for _, e := range entries {
		if e.Name() == filepath.Base(t.Layout.Archive()) {
			continue
		}
		if err := files.CopyTree(filepath.Join(results, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
		copied++
	}
	t.Log.Print("archived %d entries to %s", copied, dst)
	return nil
}

func (t *Teardown) sendNotification(ctx context.Context, out Outcome) error {
	if t.Notifier == nil {
		return errors.New("no notification channels configured")
	}
	r := notify.Result{
		Status:   notify.StatusSuccess,
		RunID:    out.State.RunID,
		Branch:   out.State.Revision.Branch,
		Commit:   out.State.Revision.Commit,
		BaseURL:  out.State.BaseURL,
		Duration: runDuration(out.State.StartedAt, t.clock()),
		Total:    out.Tests.Summary.Total,
		Passed:   out.Tests.Summary.Passed,
		Failed:   out.Tests.Summary.Failed,
		Skipped:  out.Tests.Summary.Skipped,
		Flaky:    out.Tests.Summary.Flaky,
		Failures: out.Tests.Failures(),
	}
	switch {
	case !out.HasResults:
		r.Status = notify.StatusFailure
		r.Error = "no test results"
	case out.Failed():
		r.Status = notify.StatusFailure
	}
	t.Notifier.Send(ctx, r)
	return nil
}

func (t *Teardown) cleanupTemp(context.Context) error {
	return files.ResetDir(t.Layout.Downloads())
}

func (t *Teardown) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func runDuration(started, ended time.Time) string {
	if started.IsZero() {
		return "unknown"
	}
	return ended.Sub(started).Round(time.Second).String()
}
