// Package progress provides timestamped logging to file and stdout with color support.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/tripqa/tripqa/pkg/config"
)

// Stage represents a run stage for color coding.
type Stage string

// Stage constants.
const (
	StageSetup    Stage = "setup"    // global setup (green)
	StageTeardown Stage = "teardown" // global teardown (cyan)
	StageReport   Stage = "report"   // summary and notifications (magenta)
)

// LogFile is the log file name inside the results directory.
const LogFile = "tripqa.log"

// palette holds colors used by a Logger.
type palette struct {
	stages    map[Stage]*color.Color
	pass      *color.Color
	fail      *color.Color
	warn      *color.Color
	err       *color.Color
	timestamp *color.Color
	info      *color.Color
}

func defaultPalette() palette {
	return palette{
		stages: map[Stage]*color.Color{
			StageSetup:    color.New(color.FgGreen),
			StageTeardown: color.New(color.FgCyan),
			StageReport:   color.New(color.FgMagenta),
		},
		pass:      color.New(color.FgGreen),
		fail:      color.New(color.FgRed, color.Bold),
		warn:      color.New(color.FgYellow),
		err:       color.New(color.FgRed),
		timestamp: color.New(color.FgWhite),
		info:      color.New(color.FgWhite),
	}
}

// paletteFrom builds a palette from "r,g,b" config values, keeping defaults for empty or bad ones.
func paletteFrom(cc config.ColorConfig) palette {
	p := defaultPalette()
	set := func(dst **color.Color, rgb string) {
		if c := rgbColor(rgb); c != nil {
			*dst = c
		}
	}
	for stage, rgb := range map[Stage]string{StageSetup: cc.Setup, StageTeardown: cc.Teardown, StageReport: cc.Report} {
		if c := rgbColor(rgb); c != nil {
			p.stages[stage] = c
		}
	}
	set(&p.pass, cc.Pass)
	set(&p.fail, cc.Fail)
	set(&p.warn, cc.Warn)
	set(&p.err, cc.Error)
	set(&p.timestamp, cc.Timestamp)
	set(&p.info, cc.Info)
	return p
}

func rgbColor(s string) *color.Color {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil
	}
	var rgb [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return nil
		}
		rgb[i] = v
	}
	return color.RGB(rgb[0], rgb[1], rgb[2])
}

// Logger writes timestamped output to both file and stdout.
type Logger struct {
	file      *os.File
	path      string
	stdout    io.Writer
	startTime time.Time
	stage     Stage
	colors    palette
}

// Config holds logger configuration.
type Config struct {
	Dir     string             // directory for the log file, usually the results dir
	Command string             // what is running: setup, teardown, report, scroll
	Branch  string             // git branch of the suite checkout
	Colors  config.ColorConfig // optional, zero value keeps built-in colors
	NoColor bool               // disable color output (sets color.NoColor globally)
}

// NewLogger creates a logger appending to Dir/tripqa.log and writing to stdout.
// setup and teardown of one run share the file.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}

	logPath := LogFile
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		logPath = filepath.Join(cfg.Dir, LogFile)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{
		file:      f,
		path:      logPath,
		stdout:    os.Stdout,
		startTime: time.Now(),
		stage:     StageSetup,
		colors:    paletteFrom(cfg.Colors),
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "(unknown)"
	}
	l.writeFile("# tripqa run log\n")
	l.writeFile("Command: %s\n", cfg.Command)
	l.writeFile("Branch: %s\n", branch)
	l.writeFile("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	l.writeFile("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// SetStage sets the current stage for color coding.
func (l *Logger) SetStage(stage Stage) {
	l.stage = stage
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message to both file and stdout.
func (l *Logger) Print(format string, args ...any) {
	l.emit("", l.stageColor(), format, args...)
}

// Pass writes a passed check, prefixed with a check mark.
func (l *Logger) Pass(format string, args ...any) {
	l.emit("✓ ", l.colors.pass, format, args...)
}

// Fail writes a failed check, prefixed with a cross.
func (l *Logger) Fail(format string, args ...any) {
	l.emit("✗ ", l.colors.fail, format, args...)
}

// Info writes a dimmed informational message.
func (l *Logger) Info(format string, args ...any) {
	l.emit("", l.colors.info, format, args...)
}

// Error writes an error message in red.
func (l *Logger) Error(format string, args ...any) {
	l.emit("ERROR: ", l.colors.err, format, args...)
}

// Warn writes a warning message in yellow.
func (l *Logger) Warn(format string, args ...any) {
	l.emit("WARN: ", l.colors.warn, format, args...)
}

func (l *Logger) emit(prefix string, c *color.Color, format string, args ...any) {
	msg := prefix + fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] %s\n", timestamp, msg)
	l.writeStdout("%s %s\n", l.colors.timestamp.Sprintf("[%s]", timestamp), c.Sprint(msg))
}

func (l *Logger) stageColor() *color.Color {
	if c, ok := l.colors.stages[l.stage]; ok {
		return c
	}
	return l.colors.info
}

// PrintRaw writes without timestamp.
func (l *Logger) PrintRaw(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.writeFile("%s", msg)
	l.writeStdout("%s", msg)
}

// getTerminalWidth returns terminal width, using COLUMNS env var or syscall.
// Defaults to 80 if detection fails. Returns content width (total - 20 for timestamp).
func getTerminalWidth() int {
	const minWidth = 40

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			return max(w-20, minWidth)
		}
	}

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return max(w-20, minWidth)
	}

	return 80 - 20
}

// TerminalWidth returns full terminal width for renderers, 80 if unknown.
func TerminalWidth() int {
	return getTerminalWidth() + 20
}

// wrapText wraps text to specified width, breaking on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := len(word)
		if i == 0 {
			result.WriteString(word)
			lineLen = wordLen
			continue
		}
		if lineLen+1+wordLen <= width {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wordLen
			continue
		}
		result.WriteString("\n")
		result.WriteString(word)
		lineLen = wordLen
	}
	return result.String()
}

// PrintAligned writes multi-line text, timestamping the first line and indenting the rest.
// used for summaries and rendered markdown.
func (l *Logger) PrintAligned(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}

	timestamp := time.Now().Format(timestampFormat)
	c := l.stageColor()
	tsPrefix := l.colors.timestamp.Sprintf("[%s]", timestamp)
	indent := strings.Repeat(" ", 20) // aligns with "[YY-MM-DD HH:MM:SS] "
	width := getTerminalWidth()

	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if len(line) <= width {
			lines = append(lines, line)
			continue
		}
		for wrapped := range strings.SplitSeq(wrapText(line, width), "\n") {
			lines = append(lines, wrapped)
		}
	}

	for i, line := range lines {
		switch {
		case line == "":
			l.writeFile("\n")
			l.writeStdout("\n")
		case i == 0:
			l.writeFile("[%s] %s\n", timestamp, line)
			l.writeStdout("%s %s\n", tsPrefix, c.Sprint(line))
		default:
			l.writeFile("%s%s\n", indent, line)
			l.writeStdout("%s%s\n", indent, c.Sprint(line))
		}
	}
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Close writes footer and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s (%s)\n\n", time.Now().Format("2006-01-02 15:04:05"), l.Elapsed())

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	l.file = nil
	return nil
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}
