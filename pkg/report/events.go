package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Status of a single test after all its runs.
type Status string

// Status values.
const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusSkip  Status = "skip"
	StatusFlaky Status = "flaky" // failed at least once, passed on a later run
)

// TestEvent is one line of `go test -json` output.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// TestResult is the final state of one test.
type TestResult struct {
	Package string        `json:"package"`
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Runs    int           `json:"runs"`
	Elapsed time.Duration `json:"elapsed"`
	Output  []string      `json:"output,omitempty"` // kept for failed tests only
}

// Summary counts test results.
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Flaky    int           `json:"flaky"`
	Duration time.Duration `json:"duration"`
}

// Run is a parsed test run.
type Run struct {
	Summary Summary      `json:"summary"`
	Tests   []TestResult `json:"tests"`
}

// Failures returns "pkg.Test" names of failed tests.
func (r Run) Failures() []string {
	var res []string
	for _, t := range r.Tests {
		if t.Status == StatusFail {
			res = append(res, t.Package+"."+t.Name)
		}
	}
	return res
}

type testState struct {
	TestResult
	failedOnce bool
	output     []string
}

// ParseTestEvents reads a `go test -json` stream. lines that are not json events,
// like build output mixed into the stream, are skipped. package level events are ignored.
func ParseTestEvents(r io.Reader) (Run, error) {
	tests := map[string]*testState{}
	var first, last time.Time

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var ev TestEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if !ev.Time.IsZero() {
			if first.IsZero() || ev.Time.Before(first) {
				first = ev.Time
			}
			if ev.Time.After(last) {
				last = ev.Time
			}
		}
		if ev.Test == "" {
			continue
		}

		key := ev.Package + "\x00" + ev.Test
		st, ok := tests[key]
		if !ok {
			st = &testState{TestResult: TestResult{Package: ev.Package, Name: ev.Test}}
			tests[key] = st
		}

		switch ev.Action {
		case "run":
			st.Runs++
			st.output = nil
		case "output":
			st.output = append(st.output, strings.TrimRight(ev.Output, "\n"))
		case "pass":
			st.Status = StatusPass
			if st.failedOnce {
				st.Status = StatusFlaky
			}
			st.Elapsed += seconds(ev.Elapsed)
		case "fail":
			st.Status = StatusFail
			st.failedOnce = true
			st.Output = st.output
			st.Elapsed += seconds(ev.Elapsed)
		case "skip":
			if st.Status == "" {
				st.Status = StatusSkip
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Run{}, fmt.Errorf("read test events: %w", err)
	}

	run := Run{}
	for _, st := range tests {
		if st.Status == "" {
			continue // started but never finished, e.g. the stream was cut
		}
		if st.Status != StatusFail {
			st.Output = nil
		}
		run.Tests = append(run.Tests, st.TestResult)
		run.Summary.Total++
		switch st.Status {
		case StatusPass:
			run.Summary.Passed++
		case StatusFail:
			run.Summary.Failed++
		case StatusSkip:
			run.Summary.Skipped++
		case StatusFlaky:
			run.Summary.Passed++
			run.Summary.Flaky++
		}
	}
	sort.Slice(run.Tests, func(i, j int) bool {
		if run.Tests[i].Package != run.Tests[j].Package {
			return run.Tests[i].Package < run.Tests[j].Package
		}
		return run.Tests[i].Name < run.Tests[j].Name
	})
	if !first.IsZero() {
		run.Summary.Duration = last.Sub(first)
	}
	return run, nil
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// Generator builds a report generator from a parsed run, one entry per test.
func (r Run) Generator(title string) *Generator {
	g := NewGenerator(title)
	for _, t := range r.Tests {
		actual := string(t.Status)
		if t.Status == StatusFail && len(t.Output) > 0 {
			actual = lastLine(t.Output)
		}
		g.Add(Case{ID: t.Name, Description: t.Package, Expected: string(StatusPass)}, actual, t.Status != StatusFail)
	}
	return g
}

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l != "" && !strings.HasPrefix(l, "--- FAIL") {
			return l
		}
	}
	return string(StatusFail)
}
