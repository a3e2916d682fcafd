package suite

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripqa/tripqa/pkg/report"
)

// mockRunner implements Runner for testing.
type mockRunner struct {
	runFunc func(ctx context.Context, dir, name string, args ...string) (io.Reader, func() error, error)
	gotName string
	gotArgs []string
}

func (m *mockRunner) Run(ctx context.Context, dir, name string, args ...string) (io.Reader, func() error, error) {
	m.gotName, m.gotArgs = name, args
	return m.runFunc(ctx, dir, name, args...)
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
}

func staticRunner(output string, waitErr error) *mockRunner {
	return &mockRunner{runFunc: func(context.Context, string, string, ...string) (io.Reader, func() error, error) {
		return strings.NewReader(output), func() error { return waitErr }, nil
	}}
}

const events = `{"Time":"2025-09-20T10:00:00Z","Action":"run","Package":"p","Test":"TestA"}
{"Time":"2025-09-20T10:00:01Z","Action":"pass","Package":"p","Test":"TestA","Elapsed":1}
{"Time":"2025-09-20T10:00:01Z","Action":"run","Package":"p","Test":"TestB"}
{"Time":"2025-09-20T10:00:02Z","Action":"output","Package":"p","Test":"TestB","Output":"    b_test.go:9: boom\n"}
{"Time":"2025-09-20T10:00:02Z","Action":"fail","Package":"p","Test":"TestB","Elapsed":1}
`

func TestSuite_Args(t *testing.T) {
	tests := []struct {
		name  string
		suite Suite
		want  []string
	}{
		{name: "defaults", want: []string{"test", "-json", "-count", "1", "./e2e/..."}},
		{
			name:  "all options",
			suite: Suite{Tags: []string{"e2e", "slow"}, Run: "TestFlight", Count: 3, Timeout: 10 * time.Minute, Packages: []string{"./e2e", "./pkg/..."}},
			want:  []string{"test", "-json", "-tags", "e2e,slow", "-run", "TestFlight", "-count", "3", "-timeout", "10m0s", "./e2e", "./pkg/..."},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.suite.Args())
		})
	}
}

func TestSuite_Execute_FailingTestsAreNotAnError(t *testing.T) {
	mock := staticRunner(events, errors.New("exit status 1"))
	eventsPath := filepath.Join(t.TempDir(), "results", "events.json")

	var finished []string
	s := &Suite{EventsPath: eventsPath, runner: mock, OnEvent: func(ev report.TestEvent) {
		if ev.Action == "pass" || ev.Action == "fail" {
			finished = append(finished, ev.Action+" "+ev.Test)
		}
	}}

	run, err := s.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "go", mock.gotName)
	assert.Equal(t, []string{"pass TestA", "fail TestB"}, finished)
	assert.Equal(t, 2, run.Summary.Total)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Equal(t, []string{"p.TestB"}, run.Failures())

	data, err := os.ReadFile(eventsPath)
	require.NoError(t, err)
	assert.Equal(t, events, string(data), "raw stream is kept as is")
}

func TestSuite_Execute_NoTests(t *testing.T) {
	output := "# github.com/tripqa/tripqa/e2e\ne2e/flight_test.go:12:2: undefined: foo\nFAIL\tgithub.com/tripqa/tripqa/e2e [build failed]\n"
	s := &Suite{runner: staticRunner(output, errors.New("exit status 1")), GoBin: "/usr/local/go/bin/go"}

	_, err := s.Execute(context.Background())
	require.ErrorIs(t, err, ErrNoTests)
	assert.Contains(t, err.Error(), "undefined: foo")
}

func TestSuite_Execute_EmptyRunIsFine(t *testing.T) {
	s := &Suite{runner: staticRunner("", nil)}

	run, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, run.Summary.Total)
}

func TestSuite_Execute_StartError(t *testing.T) {
	s := &Suite{runner: &mockRunner{runFunc: func(context.Context, string, string, ...string) (io.Reader, func() error, error) {
		return nil, nil, errors.New("go not found")
	}}}

	_, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start go test")
}

func TestSuite_Execute_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Suite{runner: staticRunner(events, errors.New("signal: terminated"))}
	run, err := s.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, run.Summary.Total, "events read before the interrupt still count")
}

func TestSuite_Execute_BadEventsPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := &Suite{EventsPath: filepath.Join(blocker, "events.json"), runner: staticRunner(events, nil)}
	_, err := s.Execute(context.Background())
	require.Error(t, err)
}

func TestSuite_Execute_OverlongLineDrainsOutput(t *testing.T) {
	tail := `{"Action":"pass","Package":"p","Test":"TestC","Elapsed":1}` + "\n"
	out := strings.NewReader(events + strings.Repeat("x", maxLine+1) + "\n" + tail)
	leftAtWait := -1
	mock := &mockRunner{runFunc: func(context.Context, string, string, ...string) (io.Reader, func() error, error) {
		return out, func() error {
			leftAtWait = out.Len()
			return nil
		}, nil
	}}
	eventsPath := filepath.Join(t.TempDir(), "events.json")

	_, err := (&Suite{EventsPath: eventsPath, runner: mock}).Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token too long")
	assert.Equal(t, 0, leftAtWait, "output is read to the end before waiting for go test")

	data, err := os.ReadFile(eventsPath)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), tail), "events file keeps the whole stream")
}

func TestExecRunner_Run(t *testing.T) {
	skipWithoutShell(t)
	out, wait, err := execRunner{}.Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello; echo oops >&2")
	require.NoError(t, err)
	data, err := io.ReadAll(out)
	require.NoError(t, err)
	require.NoError(t, wait())
	require.NoError(t, wait(), "wait is idempotent")
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "oops", "stderr is merged")
}

func TestExecRunner_Run_KillsOnCancel(t *testing.T) {
	skipWithoutShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	out, wait, err := execRunner{}.Run(ctx, "", "sh", "-c", "sleep 30")
	require.NoError(t, err)

	start := time.Now()
	cancel()
	_, _ = io.ReadAll(out)
	err = wait()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, -1, exitCode(err), "killed by signal")
}

func TestExecRunner_Run_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := execRunner{}.Run(ctx, "", "sh", "-c", "true")
	require.Error(t, err)
}

func TestExitCode(t *testing.T) {
	skipWithoutShell(t)
	err := exec.Command("sh", "-c", "exit 3").Run()
	assert.Equal(t, 3, exitCode(err))
	assert.Equal(t, -1, exitCode(errors.New("plain")))
	assert.Equal(t, -1, exitCode(nil))
}
