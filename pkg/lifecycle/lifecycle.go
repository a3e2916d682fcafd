// Package lifecycle runs the global setup before and the global teardown after a test run.
// Both are flat lists of tasks switched on by flags, executed in order.
package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tripqa/tripqa/pkg/fixture"
	"github.com/tripqa/tripqa/pkg/git"
)

// Logger is what tasks report through. *progress.Logger satisfies it.
type Logger interface {
	Print(format string, args ...any)
	Pass(format string, args ...any)
	Fail(format string, args ...any)
	Warn(format string, args ...any)
	PrintAligned(text string)
}

// UserAPI creates and removes seeded users.
type UserAPI interface {
	Ping(ctx context.Context) (bool, error)
	CreateUser(ctx context.Context, u fixture.User) (fixture.User, error)
	DeleteUser(ctx context.Context, id int) error
}

// Switches turn optional tasks on. they usually come from env variables.
type Switches struct {
	CleanResults      bool
	WaitForAPI        bool
	SetupTestData     bool
	SetupAuth         bool
	CleanupTestData   bool
	ArchiveResults    bool
	GenerateSummary   bool
	SendNotifications bool
	CleanupTemp       bool
}

// Task is one step of setup or teardown.
type Task struct {
	Name    string
	Enabled bool
	Fatal   bool // abort the remaining tasks on failure
	Run     func(ctx context.Context) error
}

// RunTasks runs enabled tasks in order. a failing non-fatal task is logged and skipped,
// a failing fatal task stops the list. returns the number of failed tasks.
func RunTasks(ctx context.Context, log Logger, tasks []Task) (int, error) {
	failed := 0
	for _, t := range tasks {
		if !t.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return failed, fmt.Errorf("interrupted before %s: %w", t.Name, err)
		}
		log.Print("%s", t.Name)
		if err := t.Run(ctx); err != nil {
			failed++
			if t.Fatal {
				log.Fail("%s: %v", t.Name, err)
				return failed, fmt.Errorf("%s: %w", t.Name, err)
			}
			log.Warn("%s: %v", t.Name, err)
			continue
		}
		log.Pass("%s", t.Name)
	}
	return failed, nil
}

// Layout resolves the directories and files of a run, relative to Root.
type Layout struct {
	Root           string
	ResultsDir     string // default test-results
	ScreenshotsDir string // default screenshots
}

func (l Layout) path(elem ...string) string {
	return filepath.Join(append([]string{l.Root}, elem...)...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Results is the results directory.
func (l Layout) Results() string { return l.path(orDefault(l.ResultsDir, "test-results")) }

// Screenshots returns the screenshots directory or one of its subdirectories.
func (l Layout) Screenshots(sub ...string) string {
	return filepath.Join(append([]string{l.path(orDefault(l.ScreenshotsDir, "screenshots"))}, sub...)...)
}

// AuthState is the storage state file of an account role, e.g. auth/user.json.
func (l Layout) AuthState(role string) string { return l.path("auth", role+".json") }

// Downloads is the browser downloads directory.
func (l Layout) Downloads() string { return l.path("downloads") }

// GeneratedUsers is the file listing users seeded during setup.
func (l Layout) GeneratedUsers() string { return l.path("test-data", "generated-users.json") }

// RunState is the run state file written by setup.
func (l Layout) RunState() string { return filepath.Join(l.Results(), "run.json") }

// Summary is the summary file written by teardown.
func (l Layout) Summary() string { return filepath.Join(l.Results(), "summary.json") }

// Events is the go test -json stream written by --test.
func (l Layout) Events() string { return filepath.Join(l.Results(), "events.json") }

// Report is the html report written by teardown.
func (l Layout) Report() string { return filepath.Join(l.Results(), "report.html") }

// Archive is the directory receiving archived results.
func (l Layout) Archive() string { return filepath.Join(l.Results(), "archive") }

// RunState identifies a run between setup and teardown.
type RunState struct {
	RunID     string       `json:"run_id"`
	StartedAt time.Time    `json:"started_at"`
	BaseURL   string       `json:"base_url"`
	Revision  git.Revision `json:"revision"`
}
