// Package report collects test case results and renders them as html or markdown.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/report.html.tmpl
var templatesFS embed.FS

// Case describes what a test checks.
type Case struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	User        string `json:"user,omitempty"`
	Expected    string `json:"expected"`
}

// Entry is a recorded outcome of a Case.
type Entry struct {
	Case
	Actual string    `json:"actual"`
	Passed bool      `json:"passed"`
	At     time.Time `json:"at"`
}

// Generator accumulates entries. it is not safe for concurrent use.
type Generator struct {
	Title   string
	entries []Entry
	now     func() time.Time
}

// NewGenerator makes a generator with the given report title.
func NewGenerator(title string) *Generator {
	return &Generator{Title: title, now: time.Now}
}

// Add records the actual result of a case.
func (g *Generator) Add(c Case, actual string, passed bool) {
	g.entries = append(g.entries, Entry{Case: c, Actual: actual, Passed: passed, At: g.now()})
}

// Entries returns recorded entries in insertion order.
func (g *Generator) Entries() []Entry { return g.entries }

// Counts returns passed and failed entry counts.
func (g *Generator) Counts() (passed, failed int) {
	for _, e := range g.entries {
		if e.Passed {
			passed++
			continue
		}
		failed++
	}
	return passed, failed
}

// SuccessRate is the passed share in percent, 0 when empty.
func (g *Generator) SuccessRate() float64 {
	if len(g.entries) == 0 {
		return 0
	}
	passed, _ := g.Counts()
	return float64(passed) / float64(len(g.entries)) * 100
}

type htmlView struct {
	Title       string
	Total       int
	Passed      int
	Failed      int
	SuccessRate string
	Generated   string
	Entries     []Entry
}

// HTML renders the report page.
func (g *Generator) HTML() ([]byte, error) {
	tmpl, err := template.New("report.html.tmpl").Funcs(template.FuncMap{
		"orNA": func(s string) string {
			if s == "" {
				return "N/A"
			}
			return s
		},
	}).ParseFS(templatesFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}

	passed, failed := g.Counts()
	view := htmlView{
		Title:       g.Title,
		Total:       len(g.entries),
		Passed:      passed,
		Failed:      failed,
		SuccessRate: humanize.FtoaWithDigits(g.SuccessRate(), 2) + "%",
		Generated:   g.now().Format(time.RFC1123),
		Entries:     g.entries,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the report into path, creating parent directories.
func (g *Generator) WriteHTML(path string) error {
	data, err := g.HTML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Markdown renders a short summary with a table of failed entries.
func (g *Generator) Markdown() string {
	passed, failed := g.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", g.Title)
	fmt.Fprintf(&b, "- **Total:** %d\n- **Passed:** %d\n- **Failed:** %d\n- **Success rate:** %s%%\n",
		len(g.entries), passed, failed, humanize.FtoaWithDigits(g.SuccessRate(), 2))
	if failed == 0 {
		return b.String()
	}
	b.WriteString("\n| ID | Description | Expected | Actual |\n|---|---|---|---|\n")
	for _, e := range g.entries {
		if e.Passed {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(e.ID), cell(e.Description), cell(e.Expected), cell(e.Actual))
	}
	return b.String()
}

func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
