package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripqa/tripqa/pkg/config"
	"github.com/tripqa/tripqa/pkg/lifecycle"
	"github.com/tripqa/tripqa/pkg/progress"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		name    string
		o       opts
		want    string
		errPart string
	}{
		{name: "setup", o: opts{Setup: true}, want: "setup"},
		{name: "teardown", o: opts{Teardown: true}, want: "teardown"},
		{name: "test", o: opts{Test: true}, want: "test"},
		{name: "report", o: opts{Report: "events.json"}, want: "report"},
		{name: "scroll", o: opts{Scroll: "https://firsttrip.com"}, want: "scroll"},
		{name: "none", o: opts{}, errPart: "is required"},
		{name: "two", o: opts{Setup: true, Teardown: true}, errPart: "only one command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := command(tc.o)
			if tc.errPart != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errPart)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOpts_EnvSwitches(t *testing.T) {
	t.Setenv("CLEAN_RESULTS", "true")
	t.Setenv("SETUP_AUTH", "true")
	t.Setenv("TEST_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("TEST_ADMIN_PASSWORD", "secret")

	var o opts
	_, err := flags.NewParser(&o, flags.Default&^flags.PrintErrors).ParseArgs([]string{"--setup", "--archive-results"})
	require.NoError(t, err)

	sw := switches(o.Tasks)
	assert.True(t, sw.CleanResults)
	assert.True(t, sw.SetupAuth)
	assert.True(t, sw.ArchiveResults)
	assert.False(t, sw.WaitForAPI)

	acc := accounts(o.Accounts)
	assert.Equal(t, "admin@example.com", acc["admin"].Email)
	assert.Empty(t, acc["user"].Email)
}

func TestOpts_SuiteDefaults(t *testing.T) {
	var o opts
	_, err := flags.NewParser(&o, flags.Default&^flags.PrintErrors).ParseArgs([]string{"--test", "--run", "TestFlight"})
	require.NoError(t, err)

	assert.True(t, o.Test)
	assert.Equal(t, []string{"./e2e/..."}, o.Suite.Packages)
	assert.Equal(t, []string{"e2e"}, o.Suite.Tags)
	assert.Equal(t, 1, o.Suite.Count)
	assert.Equal(t, 30*time.Minute, o.Suite.Timeout)
	assert.Equal(t, "TestFlight", o.Suite.Run)
}

func TestRunTest_SetupFailureIgnoresOldEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	layout := lifecycle.Layout{Root: t.TempDir()}
	require.NoError(t, os.MkdirAll(layout.Results(), 0o750))
	old := `{"Action":"run","Package":"e2e","Test":"TestOld"}
{"Action":"pass","Package":"e2e","Test":"TestOld","Elapsed":0.1}
`
	require.NoError(t, os.WriteFile(layout.Events(), []byte(old), 0o600))

	log, err := progress.NewLogger(progress.Config{Dir: t.TempDir(), Command: "test", NoColor: true})
	require.NoError(t, err)
	defer log.Close()

	cfg := &config.Config{Values: config.Values{APIBaseURL: srv.URL, APIWaitTimeoutMs: 50}}
	o := opts{Test: true, Events: filepath.Join(t.TempDir(), "stale.json")}
	o.Tasks.WaitForAPI = true
	o.Tasks.GenerateSummary = true

	err = runTest(context.Background(), o, cfg, layout, log)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "setup: wait for api: "), "got %q", err)
	assert.NotContains(t, err.Error(), "setup: setup:")
	assert.NoFileExists(t, layout.Events(), "events of an earlier run are removed")
	assert.NoFileExists(t, layout.Summary(), "no summary without results of this run")
	assert.NoFileExists(t, layout.Report())
}
