// Package suite runs go test -json for the test suites and streams per-test results while they run.
package suite

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tripqa/tripqa/pkg/report"
)

// maxLine bounds a single go test -json line, long test output lines can be large.
const maxLine = 4 * 1024 * 1024

// Runner starts a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (out io.Reader, wait func() error, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) (io.Reader, func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("context already canceled: %w", err)
	}

	// cancellation is handled by killing the process group, not by CommandContext
	cmd := exec.Command(name, args...) //nolint:noctx,gosec // args built by Suite
	cmd.Dir = dir
	cmd.Env = os.Environ()
	setupProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start %s: %w", name, err)
	}
	pg := newProcessGroup(cmd, ctx.Done())
	return stdout, pg.Wait, nil
}

// Suite describes a go test invocation.
type Suite struct {
	Dir        string        // module root, current dir if empty
	Packages   []string      // ./e2e/... if empty
	Tags       []string      // build tags, e.g. e2e
	Run        string        // -run pattern
	Count      int           // -count, 1 if zero (disables the test cache)
	Timeout    time.Duration // -timeout, go default if zero
	EventsPath string        // raw json events are written here, optional
	OnEvent    func(ev report.TestEvent)
	GoBin      string // go if empty

	runner Runner
}

// Args returns the go command arguments.
func (s *Suite) Args() []string {
	args := []string{"test", "-json"}
	if len(s.Tags) > 0 {
		args = append(args, "-tags", strings.Join(s.Tags, ","))
	}
	if s.Run != "" {
		args = append(args, "-run", s.Run)
	}
	count := s.Count
	if count <= 0 {
		count = 1
	}
	args = append(args, "-count", strconv.Itoa(count))
	if s.Timeout > 0 {
		args = append(args, "-timeout", s.Timeout.String())
	}
	pkgs := s.Packages
	if len(pkgs) == 0 {
		pkgs = []string{"./e2e/..."}
	}
	return append(args, pkgs...)
}

// ErrNoTests is returned when go test failed without running a single test, e.g. on a build error.
var ErrNoTests = errors.New("no tests ran")

// Execute runs the suite. failing tests are not an error, they show up in the returned run.
func (s *Suite) Execute(ctx context.Context) (report.Run, error) {
	runner := s.runner
	if runner == nil {
		runner = execRunner{}
	}
	goBin := s.GoBin
	if goBin == "" {
		goBin = "go"
	}

	var sink io.Writer = io.Discard
	if s.EventsPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.EventsPath), 0o750); err != nil {
			return report.Run{}, fmt.Errorf("create events dir: %w", err)
		}
		f, err := os.Create(s.EventsPath) //nolint:gosec // path from config
		if err != nil {
			return report.Run{}, fmt.Errorf("create events file: %w", err)
		}
		defer f.Close()
		sink = f
	}

	out, wait, err := runner.Run(ctx, s.Dir, goBin, s.Args()...)
	if err != nil {
		return report.Run{}, fmt.Errorf("start go test: %w", err)
	}

	// the stream is parsed twice: live for OnEvent, and in full for the result
	var raw strings.Builder
	noise, streamErr := s.stream(ctx, io.TeeReader(out, io.MultiWriter(sink, &raw)))
	waitErr := wait()

	run, err := report.ParseTestEvents(strings.NewReader(raw.String()))
	if err != nil {
		return run, err
	}

	switch {
	case streamErr != nil:
		return run, streamErr
	case ctx.Err() != nil:
		return run, fmt.Errorf("go test interrupted: %w", ctx.Err())
	case waitErr != nil && run.Summary.Total == 0:
		return run, fmt.Errorf("%w, go test exit code %d: %s", ErrNoTests, exitCode(waitErr), strings.Join(noise, "\n"))
	}
	return run, nil
}

// stream decodes events as they come and returns lines that were not json events.
func (s *Suite) stream(ctx context.Context, r io.Reader) ([]string, error) {
	var noise []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			_, _ = io.Copy(io.Discard, r) // drain so the process is not blocked on a full pipe
			return noise, nil
		}
		line := sc.Text()
		var ev report.TestEvent
		if !strings.HasPrefix(line, "{") || json.Unmarshal([]byte(line), &ev) != nil {
			if strings.TrimSpace(line) != "" {
				noise = append(noise, line)
			}
			continue
		}
		if s.OnEvent != nil {
			s.OnEvent(ev)
		}
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return noise, fmt.Errorf("read go test output: %w", err)
	}
	return noise, nil
}
