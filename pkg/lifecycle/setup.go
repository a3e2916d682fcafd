package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tripqa/tripqa/pkg/browser"
	"github.com/tripqa/tripqa/pkg/files"
	"github.com/tripqa/tripqa/pkg/fixture"
	"github.com/tripqa/tripqa/pkg/git"
	"github.com/tripqa/tripqa/pkg/wait"
)

// AuthFunc logs an account in and saves its storage state to statePath.
type AuthFunc func(ctx context.Context, creds browser.Credentials, statePath string) error

// Setup prepares the workspace before tests run.
type Setup struct {
	Layout   Layout
	Switches Switches
	BaseURL  string
	Log      Logger

	API             UserAPI
	APIWaitTimeout  time.Duration // WaitForAPI budget, 1m if zero
	APIPollInterval time.Duration // 2s if zero
	SeedUsers       int

	Authenticate AuthFunc
	Accounts     map[string]browser.Credentials // role, like user or admin, to credentials
	LogFile      string                         // kept when results are cleaned

	describe func(path string) (git.Revision, error)
	now      func() time.Time
	newID    func() string
}

// Run executes setup tasks and returns the stored run state.
func (s *Setup) Run(ctx context.Context) (RunState, error) {
	state := RunState{RunID: s.id(), StartedAt: s.clock(), BaseURL: s.BaseURL}
	tasks := []Task{
		{Name: "clean old results", Enabled: s.Switches.CleanResults, Run: s.cleanResults},
		{Name: "create directories", Enabled: true, Fatal: true, Run: s.createDirs},
		{Name: "wait for api", Enabled: s.Switches.WaitForAPI, Fatal: true, Run: s.waitForAPI},
		{Name: "seed test users", Enabled: s.Switches.SetupTestData, Run: s.seedUsers},
		{Name: "save auth state", Enabled: s.Switches.SetupAuth, Run: s.saveAuth},
		{Name: "write run state", Enabled: true, Fatal: true, Run: func(context.Context) error {
			return s.writeState(&state)
		}},
	}
	if _, err := RunTasks(ctx, s.Log, tasks); err != nil {
		return state, err
	}
	s.Log.Print("run id %s, revision %s", state.RunID, state.Revision)
	return state, nil
}

func (s *Setup) cleanResults(context.Context) error {
	var keep []string
	if s.LogFile != "" {
		keep = append(keep, s.LogFile)
	}
	return errors.Join(
		files.CleanDir(s.Layout.Results(), keep...),
		files.ResetDir(s.Layout.Screenshots("actual")),
		files.ResetDir(s.Layout.Screenshots("diff")),
	)
}

func (s *Setup) createDirs(context.Context) error {
	return files.EnsureDirs(s.Layout.Root,
		s.Layout.path("auth"),
		s.Layout.Downloads(),
		s.Layout.Screenshots("actual"),
		s.Layout.Screenshots("expected"),
		s.Layout.Screenshots("diff"),
		s.Layout.Results(),
	)
}

func (s *Setup) waitForAPI(ctx context.Context) error {
	if s.API == nil {
		return errors.New("no api client")
	}
	timeout, interval := s.APIWaitTimeout, s.APIPollInterval
	if timeout <= 0 {
		timeout = time.Minute
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return wait.Until(ctx, s.API.Ping, timeout, interval)
}

func (s *Setup) seedUsers(ctx context.Context) error {
	if s.API == nil {
		return errors.New("no api client")
	}
	n := s.SeedUsers
	if n <= 0 {
		n = 5
	}
	users := make([]fixture.User, 0, n)
	for range n {
		u, err := s.API.CreateUser(ctx, fixture.NewUser())
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	if err := files.WriteJSON(s.Layout.GeneratedUsers(), users); err != nil {
		return err
	}
	s.Log.Print("seeded %d users", len(users))
	return nil
}

func (s *Setup) saveAuth(ctx context.Context) error {
	if s.Authenticate == nil {
		return errors.New("no authenticator")
	}
	roles := make([]string, 0, len(s.Accounts))
	for role := range s.Accounts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var errs []error
	saved := 0
	for _, role := range roles {
		creds := s.Accounts[role]
		if creds.Email == "" || creds.Password == "" {
			s.Log.Warn("no credentials for %s, skipped", role)
			continue
		}
		if err := s.Authenticate(ctx, creds, s.Layout.AuthState(role)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", role, err))
			continue
		}
		saved++
	}
	if saved > 0 {
		s.Log.Print("saved auth state for %d accounts", saved)
	}
	return errors.Join(errs...)
}

func (s *Setup) writeState(state *RunState) error {
	describe := s.describe
	if describe == nil {
		describe = git.Describe
	}
	rev, err := describe(s.Layout.Root)
	if err != nil {
		s.Log.Warn("no git revision: %v", err)
	}
	state.Revision = rev
	return files.WriteJSON(s.Layout.RunState(), state)
}

func (s *Setup) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Setup) id() string {
	if s.newID != nil {
		return s.newID()
	}
	return uuid.NewString()
}
