package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripqa/tripqa/pkg/browser"
	"github.com/tripqa/tripqa/pkg/files"
	"github.com/tripqa/tripqa/pkg/fixture"
	"github.com/tripqa/tripqa/pkg/git"
	"github.com/tripqa/tripqa/pkg/notify"
)

type recLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recLogger) add(prefix, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, prefix+fmt.Sprintf(format, args...))
}

func (l *recLogger) Print(format string, args ...any) { l.add("", format, args...) }
func (l *recLogger) Pass(format string, args ...any)  { l.add("pass: ", format, args...) }
func (l *recLogger) Fail(format string, args ...any)  { l.add("fail: ", format, args...) }
func (l *recLogger) Warn(format string, args ...any)  { l.add("warn: ", format, args...) }
func (l *recLogger) PrintAligned(text string)         { l.add("", "%s", text) }

func (l *recLogger) text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type fakeAPI struct {
	pingAfter int
	pings     int
	nextID    int
	createErr error
	deleted   []int
}

func (f *fakeAPI) Ping(context.Context) (bool, error) {
	f.pings++
	if f.pings <= f.pingAfter {
		return false, errors.New("connection refused")
	}
	return true, nil
}

func (f *fakeAPI) CreateUser(_ context.Context, u fixture.User) (fixture.User, error) {
	if f.createErr != nil {
		return u, f.createErr
	}
	f.nextID++
	u.ID = 10 + f.nextID
	return u, nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, id int) error {
	f.deleted = append(f.deleted, id)
	if id == 12 {
		return errors.New("not found")
	}
	return nil
}

type fakeNotifier struct{ sent []notify.Result }

func (n *fakeNotifier) Send(_ context.Context, r notify.Result) { n.sent = append(n.sent, r) }

var fixedNow = time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC)

func TestRunTasks(t *testing.T) {
	log := &recLogger{}
	var ran []string
	task := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			ran = append(ran, name)
			return err
		}
	}

	failed, err := RunTasks(context.Background(), log, []Task{
		{Name: "first", Enabled: true, Run: task("first", nil)},
		{Name: "disabled", Enabled: false, Run: task("disabled", nil)},
		{Name: "soft", Enabled: true, Run: task("soft", errors.New("oops"))},
		{Name: "hard", Enabled: true, Fatal: true, Run: task("hard", errors.New("boom"))},
		{Name: "never", Enabled: true, Run: task("never", nil)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hard: boom")
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"first", "soft", "hard"}, ran)
	assert.Contains(t, log.text(), "pass: first")
	assert.Contains(t, log.text(), "warn: soft: oops")
	assert.Contains(t, log.text(), "fail: hard: boom")
}

func TestRunTasks_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunTasks(ctx, &recLogger{}, []Task{{Name: "x", Enabled: true, Run: func(context.Context) error { return nil }}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/suite"}
	assert.Equal(t, "/suite/test-results", l.Results())
	assert.Equal(t, "/suite/screenshots/diff", l.Screenshots("diff"))
	assert.Equal(t, "/suite/auth/admin.json", l.AuthState("admin"))
	assert.Equal(t, "/suite/test-data/generated-users.json", l.GeneratedUsers())
	assert.Equal(t, "/suite/test-results/run.json", l.RunState())
	assert.Equal(t, "/suite/test-results/archive", l.Archive())
	assert.Equal(t, "/suite/test-results/events.json", l.Events())

	l.ResultsDir = "out"
	assert.Equal(t, "/suite/out/summary.json", l.Summary())
}

func newTestSetup(t *testing.T, sw Switches) (*Setup, *recLogger) {
	t.Helper()
	log := &recLogger{}
	return &Setup{
		Layout:          Layout{Root: t.TempDir()},
		Switches:        sw,
		BaseURL:         "https://firsttrip.com",
		Log:             log,
		API:             &fakeAPI{},
		APIPollInterval: time.Millisecond,
		APIWaitTimeout:  time.Second,
		SeedUsers:       3,
		LogFile:         "tripqa.log",
		describe:        func(string) (git.Revision, error) { return git.Revision{Branch: "master", Commit: "abc1234"}, nil },
		now:             func() time.Time { return fixedNow },
		newID:           func() string { return "run-1" },
	}, log
}

func TestSetup_Defaults(t *testing.T) {
	s, _ := newTestSetup(t, Switches{})

	state, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, "master", state.Revision.Branch)

	for _, d := range []string{"auth", "downloads", "screenshots/actual", "screenshots/expected", "screenshots/diff", "test-results"} {
		assert.DirExists(t, filepath.Join(s.Layout.Root, d))
	}

	var stored RunState
	require.NoError(t, files.ReadJSON(s.Layout.RunState(), &stored))
	assert.Equal(t, state.RunID, stored.RunID)
	assert.True(t, fixedNow.Equal(stored.StartedAt))
	assert.Equal(t, "https://firsttrip.com", stored.BaseURL)
	assert.NoFileExists(t, s.Layout.GeneratedUsers(), "seeding is off by default")
}

func TestSetup_CleanResultsKeepsLog(t *testing.T) {
	s, _ := newTestSetup(t, Switches{CleanResults: true})
	results := s.Layout.Results()
	require.NoError(t, os.MkdirAll(filepath.Join(results, "archive"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(results, "tripqa.log"), []byte("log"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(results, "summary.json"), []byte("{}"), 0o600))
	require.NoError(t, os.MkdirAll(s.Layout.Screenshots("actual"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(s.Layout.Screenshots("actual"), "a.png"), []byte("png"), 0o600))

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(results, "tripqa.log"))
	assert.NoFileExists(t, filepath.Join(results, "summary.json"))
	assert.NoDirExists(t, filepath.Join(results, "archive"))
	assert.NoFileExists(t, filepath.Join(s.Layout.Screenshots("actual"), "a.png"))
	assert.FileExists(t, s.Layout.RunState())
}

func TestSetup_WaitForAPI(t *testing.T) {
	s, _ := newTestSetup(t, Switches{WaitForAPI: true})
	api := &fakeAPI{pingAfter: 2}
	s.API = api

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, api.pings)

	t.Run("never ready is fatal", func(t *testing.T) {
		s, _ := newTestSetup(t, Switches{WaitForAPI: true, SetupTestData: true})
		s.API = &fakeAPI{pingAfter: 1 << 30}
		s.APIWaitTimeout = 20 * time.Millisecond

		_, err := s.Run(context.Background())
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "wait for api: "), "callers add the command name, got %q", err)
		assert.NoFileExists(t, s.Layout.RunState(), "tasks after a fatal failure are skipped")
	})
}

func TestSetup_SeedUsers(t *testing.T) {
	s, _ := newTestSetup(t, Switches{SetupTestData: true})

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	var users []fixture.User
	require.NoError(t, files.ReadJSON(s.Layout.GeneratedUsers(), &users))
	require.Len(t, users, 3)
	assert.Equal(t, []int{11, 12, 13}, []int{users[0].ID, users[1].ID, users[2].ID})
	assert.True(t, fixture.IsValidEmail(users[0].Email))

	t.Run("api failure is not fatal", func(t *testing.T) {
		s, log := newTestSetup(t, Switches{SetupTestData: true})
		s.API = &fakeAPI{createErr: errors.New("503")}

		_, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Contains(t, log.text(), "warn: seed test users: create user: 503")
		assert.FileExists(t, s.Layout.RunState())
	})
}

func TestSetup_SaveAuth(t *testing.T) {
	s, log := newTestSetup(t, Switches{SetupAuth: true})
	var saved []string
	s.Authenticate = func(_ context.Context, creds browser.Credentials, path string) error {
		if creds.Email == "bad@example.com" {
			return errors.New("wrong password")
		}
		saved = append(saved, filepath.Base(path))
		return nil
	}
	s.Accounts = map[string]browser.Credentials{
		"user":  {Email: "user@example.com", Password: "secret"},
		"admin": {Email: "bad@example.com", Password: "secret"},
		"guest": {},
	}

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"user.json"}, saved)
	assert.Contains(t, log.text(), "no credentials for guest, skipped")
	assert.Contains(t, log.text(), "admin: wrong password")
}

func newTestTeardown(t *testing.T, root string, sw Switches) (*Teardown, *recLogger, *fakeNotifier) {
	t.Helper()
	log := &recLogger{}
	n := &fakeNotifier{}
	return &Teardown{
		Layout:     Layout{Root: root},
		Switches:   sw,
		Log:        log,
		API:        &fakeAPI{},
		Notifier:   n,
		EventsPath: filepath.Join("testdata", "events.json"),
		now:        func() time.Time { return fixedNow.Add(5 * time.Minute) },
	}, log, n
}

func TestTeardown_Full(t *testing.T) {
	s, _ := newTestSetup(t, Switches{SetupTestData: true})
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Layout.Downloads(), "ticket.pdf"), []byte("pdf"), 0o600))

	td, log, n := newTestTeardown(t, s.Layout.Root, Switches{
		CleanupTestData: true, GenerateSummary: true, ArchiveResults: true, SendNotifications: true, CleanupTemp: true,
	})
	td.Render = func(md string) (string, error) { return "rendered:" + md, nil }
	api := &fakeAPI{}
	td.API = api

	out, err := td.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.TaskFailures)
	assert.True(t, out.Failed())
	assert.Equal(t, "run-1", out.State.RunID)

	// users removed, one delete failure only warned
	assert.Equal(t, []int{11, 12, 13}, api.deleted)
	assert.NoFileExists(t, s.Layout.GeneratedUsers())
	assert.Contains(t, log.text(), "could not delete user")

	// summary and report
	var sf summaryFile
	require.NoError(t, files.ReadJSON(s.Layout.Summary(), &sf))
	assert.Equal(t, "run-1", sf.RunID)
	assert.Equal(t, "5m0s", sf.Duration)
	assert.Equal(t, "master@abc1234", sf.Revision)
	assert.Equal(t, 4, sf.Summary.Total)
	assert.Equal(t, 1, sf.Summary.Flaky)
	assert.Len(t, sf.Failures, 1)
	assert.FileExists(t, s.Layout.Report())
	assert.Contains(t, log.text(), "rendered:# tripqa run run-1")

	// archive has summary and report but no nested archive
	archived := filepath.Join(s.Layout.Archive(), "2025-09-20T10-05-00")
	assert.FileExists(t, filepath.Join(archived, "summary.json"))
	assert.FileExists(t, filepath.Join(archived, "report.html"))
	assert.NoDirExists(t, filepath.Join(archived, "archive"))

	// notification
	require.Len(t, n.sent, 1)
	assert.Equal(t, notify.StatusFailure, n.sent[0].Status)
	assert.Equal(t, "master", n.sent[0].Branch)
	assert.Equal(t, 1, n.sent[0].Failed)
	assert.Equal(t, "5m0s", n.sent[0].Duration)

	// temp cleaned
	entries, err := os.ReadDir(s.Layout.Downloads())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTeardown_NoSetupNoResults(t *testing.T) {
	td, log, n := newTestTeardown(t, t.TempDir(), Switches{GenerateSummary: true, SendNotifications: true, CleanupTestData: true})
	td.EventsPath = filepath.Join("testdata", "missing.json")

	out, err := td.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unknown", out.State.RunID)
	assert.False(t, out.HasResults)
	assert.False(t, out.Failed())
	assert.Equal(t, 1, out.TaskFailures, "summary fails without results")
	assert.Contains(t, log.text(), "no run state")

	require.Len(t, n.sent, 1)
	assert.Equal(t, notify.StatusFailure, n.sent[0].Status)
	assert.Equal(t, "no test results", n.sent[0].Error)
	assert.Equal(t, "unknown", n.sent[0].Duration)
}

func TestTeardown_Interrupted(t *testing.T) {
	td, _, n := newTestTeardown(t, t.TempDir(), Switches{GenerateSummary: true, SendNotifications: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := td.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.HasPrefix(err.Error(), "interrupted before write summary"), "got %q", err)
	assert.Empty(t, n.sent)
}
