// Package main provides tripqa - global setup, teardown and reporting for the flight search test suite.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/tripqa/tripqa/pkg/api"
	"github.com/tripqa/tripqa/pkg/browser"
	"github.com/tripqa/tripqa/pkg/config"
	"github.com/tripqa/tripqa/pkg/git"
	"github.com/tripqa/tripqa/pkg/lifecycle"
	"github.com/tripqa/tripqa/pkg/notify"
	"github.com/tripqa/tripqa/pkg/poll"
	"github.com/tripqa/tripqa/pkg/progress"
	"github.com/tripqa/tripqa/pkg/render"
	"github.com/tripqa/tripqa/pkg/report"
	"github.com/tripqa/tripqa/pkg/suite"
	"github.com/tripqa/tripqa/pkg/wait"
)

// opts holds all command-line options.
type opts struct {
	Setup     bool   `long:"setup" description:"run global setup before tests"`
	Teardown  bool   `long:"teardown" description:"run global teardown after tests"`
	Test      bool   `long:"test" description:"run setup, the e2e suite and teardown in one go"`
	Report    string `long:"report" value-name:"FILE" description:"summarize go test -json output and write the html report"`
	Scroll    string `long:"scroll" value-name:"URL" description:"scroll a page until its content stops growing"`
	Marker    string `long:"marker" description:"text that ends --scroll early once visible"`
	Events    string `long:"events" env:"TEST_EVENTS" value-name:"FILE" description:"go test -json output read by teardown"`
	ConfigDir string `long:"config-dir" env:"TRIPQA_CONFIG_DIR" description:"global config directory"`
	Install   bool   `long:"install" description:"install playwright chromium before launching"`
	CI        bool   `long:"ci" env:"CI" description:"exit non-zero when tests failed"`
	NoColor   bool   `long:"no-color" description:"disable color output"`
	Version   bool   `short:"v" long:"version" description:"print version and exit"`

	Tasks    taskOpts    `group:"tasks"`
	Accounts accountOpts `group:"accounts"`
	Suite    suiteOpts   `group:"suite"`
}

// suiteOpts shape the go test invocation of --test.
type suiteOpts struct {
	Packages []string      `long:"pkg" default:"./e2e/..." description:"packages to test"`
	Tags     []string      `long:"tags" default:"e2e" description:"build tags"`
	Run      string        `long:"run" description:"run only tests matching the pattern"`
	Count    int           `long:"count" default:"1" description:"run each test n times, flaky tests show up with n > 1"`
	Timeout  time.Duration `long:"timeout" env:"TEST_TIMEOUT" default:"30m" description:"go test timeout"`
}

// taskOpts switch optional setup and teardown tasks.
type taskOpts struct {
	CleanResults      bool `long:"clean-results" env:"CLEAN_RESULTS" description:"remove old results and screenshots"`
	WaitForAPI        bool `long:"wait-for-api" env:"WAIT_FOR_API" description:"wait until the api answers"`
	SetupTestData     bool `long:"setup-test-data" env:"SETUP_TEST_DATA" description:"seed test users through the api"`
	SetupAuth         bool `long:"setup-auth" env:"SETUP_AUTH" description:"log in and save auth state"`
	CleanupTestData   bool `long:"cleanup-test-data" env:"CLEANUP_TEST_DATA" description:"delete seeded users"`
	ArchiveResults    bool `long:"archive-results" env:"ARCHIVE_RESULTS" description:"copy results into the archive"`
	GenerateSummary   bool `long:"generate-summary" env:"GENERATE_SUMMARY" description:"write summary.json and report.html"`
	SendNotifications bool `long:"send-notifications" env:"SEND_NOTIFICATIONS" description:"notify configured channels"`
	CleanupTemp       bool `long:"cleanup-temp" env:"CLEANUP_TEMP" description:"empty the downloads dir"`
}

// accountOpts are login credentials used by --setup-auth.
type accountOpts struct {
	UserEmail     string `long:"user-email" env:"TEST_USER_EMAIL" description:"regular user email"`
	UserPassword  string `long:"user-password" env:"TEST_USER_PASSWORD" description:"regular user password"`
	AdminEmail    string `long:"admin-email" env:"TEST_ADMIN_EMAIL" description:"admin email"`
	AdminPassword string `long:"admin-password" env:"TEST_ADMIN_PASSWORD" description:"admin password"`
}

var revision = "unknown"

// errTestsFailed makes the process exit non-zero without printing another error.
var errTestsFailed = errors.New("tests failed")

func main() {
	fmt.Printf("tripqa %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "--setup | --teardown | --test | --report FILE | --scroll URL [OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		os.Exit(0)
	}

	restore := disableCtrlCEcho()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, o)
	cancel()
	restore()

	if err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	cmd, err := command(o)
	if err != nil {
		return err
	}

	configDir := o.ConfigDir
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return fmt.Errorf("apply env: %w", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working dir: %w", err)
	}
	layout := lifecycle.Layout{Root: wd, ResultsDir: cfg.ResultsDir, ScreenshotsDir: cfg.ScreenshotsDir}

	branch := ""
	if rev, revErr := git.Describe(wd); revErr == nil {
		branch = rev.String()
	}

	log, err := progress.NewLogger(progress.Config{
		Dir:     layout.Results(),
		Command: cmd,
		Branch:  branch,
		Colors:  cfg.Colors,
		NoColor: o.NoColor,
	})
	if err != nil {
		return fmt.Errorf("create progress logger: %w", err)
	}
	defer log.Close()

	switch cmd {
	case "setup":
		err = runSetup(ctx, o, cfg, layout, log)
	case "teardown":
		err = runTeardown(ctx, o, cfg, layout, log)
	case "test":
		err = runTest(ctx, o, cfg, layout, log)
	case "report":
		err = runReport(o, layout, log)
	case "scroll":
		err = runScroll(ctx, o, cfg, log)
	}
	if err != nil && !errors.Is(err, errTestsFailed) {
		log.Error("%s: %v", cmd, err)
	}
	log.Info("%s completed in %s, log: %s", cmd, log.Elapsed(), log.Path())
	return err
}

// command picks the single requested command.
func command(o opts) (string, error) {
	var picked []string
	for name, on := range map[string]bool{
		"setup": o.Setup, "teardown": o.Teardown, "test": o.Test, "report": o.Report != "", "scroll": o.Scroll != "",
	} {
		if on {
			picked = append(picked, name)
		}
	}
	switch len(picked) {
	case 0:
		return "", errors.New("one of --setup, --teardown, --test, --report or --scroll is required")
	case 1:
		return picked[0], nil
	default:
		return "", fmt.Errorf("only one command allowed, got %s", strings.Join(picked, ", "))
	}
}

func switches(t taskOpts) lifecycle.Switches {
	return lifecycle.Switches{
		CleanResults:      t.CleanResults,
		WaitForAPI:        t.WaitForAPI,
		SetupTestData:     t.SetupTestData,
		SetupAuth:         t.SetupAuth,
		CleanupTestData:   t.CleanupTestData,
		ArchiveResults:    t.ArchiveResults,
		GenerateSummary:   t.GenerateSummary,
		SendNotifications: t.SendNotifications,
		CleanupTemp:       t.CleanupTemp,
	}
}

func accounts(a accountOpts) map[string]browser.Credentials {
	return map[string]browser.Credentials{
		"user":  {Email: a.UserEmail, Password: a.UserPassword},
		"admin": {Email: a.AdminEmail, Password: a.AdminPassword},
	}
}

func apiClient(cfg *config.Config, log *progress.Logger) *api.Client {
	return api.New(cfg.APIBaseURL, api.WithRetry(wait.RetryConfig{
		Count: cfg.APIRetryCount,
		Delay: time.Duration(cfg.APIRetryDelayMs) * time.Millisecond,
		Log:   log.Warn,
	}))
}

func runSetup(ctx context.Context, o opts, cfg *config.Config, layout lifecycle.Layout, log *progress.Logger) error {
	log.SetStage(progress.StageSetup)
	auth := &lazyAuth{cfg: cfg, install: o.Install}
	defer auth.Close()

	s := &lifecycle.Setup{
		Layout:         layout,
		Switches:       switches(o.Tasks),
		BaseURL:        cfg.BaseURL,
		Log:            log,
		API:            apiClient(cfg, log),
		APIWaitTimeout: cfg.APIWaitTimeout(),
		SeedUsers:      cfg.SeedUsers,
		Authenticate:   auth.Authenticate,
		Accounts:       accounts(o.Accounts),
		LogFile:        progress.LogFile,
	}
	_, err := s.Run(ctx)
	return err
}

func runTeardown(ctx context.Context, o opts, cfg *config.Config, layout lifecycle.Layout, log *progress.Logger) error {
	log.SetStage(progress.StageTeardown)
	td := &lifecycle.Teardown{
		Layout:     layout,
		Switches:   switches(o.Tasks),
		Log:        log,
		API:        apiClient(cfg, log),
		EventsPath: o.Events,
		Render:     markdownRenderer(o.NoColor),
	}
	svc, err := notify.New(notify.ParamsFromConfig(cfg.Values), log)
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	if svc != nil {
		td.Notifier = svc
	}

	out, err := td.Run(ctx)
	if err != nil {
		return err
	}
	if out.HasResults {
		s := out.Tests.Summary
		log.Print("tests: %d total, %d passed, %d failed, %d skipped, %d flaky", s.Total, s.Passed, s.Failed, s.Skipped, s.Flaky)
	}
	if out.Failed() && o.CI {
		return errTestsFailed
	}
	return nil
}

// runTest is the whole pipeline: setup, go test -json over the suite, teardown on its events.
// teardown runs even if setup or the suite failed, the same way global teardown always runs.
// it only sees events written by this run, a setup failure leaves it without results.
func runTest(ctx context.Context, o opts, cfg *config.Config, layout lifecycle.Layout, log *progress.Logger) error {
	var errs []error
	o.Events = ""
	if err := os.Remove(layout.Events()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove old test events: %w", err)
	}
	if err := runSetup(ctx, o, cfg, layout, log); err != nil {
		errs = append(errs, fmt.Errorf("setup: %w", err))
	}

	if len(errs) == 0 {
		log.SetStage(progress.StageReport)
		s := &suite.Suite{
			Packages:   o.Suite.Packages,
			Tags:       o.Suite.Tags,
			Run:        o.Suite.Run,
			Count:      o.Suite.Count,
			Timeout:    o.Suite.Timeout,
			EventsPath: layout.Events(),
			OnEvent:    suiteEventLogger(log),
		}
		log.Print("go %s", strings.Join(s.Args(), " "))
		if _, err := s.Execute(ctx); err != nil {
			errs = append(errs, fmt.Errorf("suite: %w", err))
		}
		o.Events = layout.Events()
	}

	// teardown still has to run after an interrupt
	tdCtx := context.WithoutCancel(ctx)
	if err := runTeardown(tdCtx, o, cfg, layout, log); err != nil {
		errs = append(errs, fmt.Errorf("teardown: %w", err))
	}
	return errors.Join(errs...)
}

// suiteEventLogger prints one line per finished test.
func suiteEventLogger(log *progress.Logger) func(report.TestEvent) {
	return func(ev report.TestEvent) {
		if ev.Test == "" {
			return
		}
		elapsed := time.Duration(ev.Elapsed * float64(time.Second)).Round(time.Millisecond)
		switch ev.Action {
		case "pass":
			log.Pass("%s (%s)", ev.Test, elapsed)
		case "fail":
			log.Fail("%s (%s)", ev.Test, elapsed)
		case "skip":
			log.Info("skip %s", ev.Test)
		}
	}
}

func runReport(o opts, layout lifecycle.Layout, log *progress.Logger) error {
	log.SetStage(progress.StageReport)
	f, err := os.Open(o.Report)
	if err != nil {
		return fmt.Errorf("open test events: %w", err)
	}
	defer f.Close()

	run, err := report.ParseTestEvents(f)
	if err != nil {
		return err
	}
	gen := run.Generator("tripqa " + filepath.Base(o.Report))
	if err := gen.WriteHTML(layout.Report()); err != nil {
		return err
	}

	md := gen.Markdown()
	if rendered, renderErr := markdownRenderer(o.NoColor)(md); renderErr == nil {
		md = rendered
	}
	log.PrintAligned(md)
	for _, name := range run.Failures() {
		log.Fail("%s", name)
	}
	log.Print("report written to %s", layout.Report())
	if run.Summary.Failed > 0 && o.CI {
		return errTestsFailed
	}
	return nil
}

func runScroll(ctx context.Context, o opts, cfg *config.Config, log *progress.Logger) error {
	log.SetStage(progress.StageReport)
	s, err := browser.Launch(browser.SessionConfig{
		Headless: cfg.Headless,
		SlowMo:   cfg.SlowMo(),
		Install:  o.Install,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	page, err := s.NewPage(browser.ContextOptions{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		browser.WithTimeout(cfg.Timeout()), browser.WithScreenshotDir(cfg.ScreenshotsPath("actual")))
	if err != nil {
		return err
	}
	defer page.Close()

	if err := page.Navigate(o.Scroll); err != nil {
		return err
	}

	var done func(context.Context) (bool, error)
	if o.Marker != "" {
		done = browser.MarkerProbe(page.ByText(o.Marker), cfg.MarkerTimeout())
	}
	res, err := browser.ScrollToEnd(ctx, page.Raw(), cfg.PollConfig(), done)
	if err != nil {
		return err
	}
	log.Print("%s after %d steps in %s, height %.0fpx", res.Outcome, res.Steps, res.Elapsed.Round(time.Millisecond), res.Last)
	if res.Indeterminate > 0 {
		log.Info("marker checks without answer: %d", res.Indeterminate)
	}
	if res.Outcome == poll.Exhausted {
		log.Warn("step budget of %d used up, the page may still be loading", cfg.ScrollMaxSteps)
	}

	shot, err := page.Screenshot("scroll-"+time.Now().Format("20060102-150405"), true)
	if err != nil {
		return err
	}
	log.Print("screenshot: %s", shot)
	return nil
}

func markdownRenderer(noColor bool) func(string) (string, error) {
	return func(md string) (string, error) {
		return render.Markdown(md, progress.TerminalWidth(), noColor)
	}
}

// lazyAuth launches a browser on the first login only, so setup without --setup-auth never starts one.
type lazyAuth struct {
	cfg     *config.Config
	install bool
	session *browser.Session
}

func (a *lazyAuth) Authenticate(ctx context.Context, creds browser.Credentials, statePath string) error {
	if a.session == nil {
		s, err := browser.Launch(browser.SessionConfig{Headless: a.cfg.Headless, SlowMo: a.cfg.SlowMo(), Install: a.install})
		if err != nil {
			return err
		}
		a.session = s
	}
	return browser.Authenticate(ctx, a.session, a.cfg.BaseURL, creds, statePath)
}

func (a *lazyAuth) Close() {
	if a.session != nil {
		_ = a.session.Close()
	}
}
