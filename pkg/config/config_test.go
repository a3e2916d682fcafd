package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripqa/tripqa/pkg/poll"
)

func Test_defaultsFS(t *testing.T) {
	data, err := defaultsFS.ReadFile("defaults/config")
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url")
	assert.Contains(t, string(data), "scroll_idle_ms")
	assert.Contains(t, string(data), "end_marker_text")
}

func TestLoad_WithCustomDir(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "custom-config")

	cfg, err := Load(configDir)
	require.NoError(t, err)

	assert.Equal(t, configDir, cfg.ConfigDir())
	assert.FileExists(t, filepath.Join(configDir, "config"))
	assert.Equal(t, "https://firsttrip.com", cfg.BaseURL)
	assert.Equal(t, "0,255,0", cfg.Colors.Setup)
}

func TestLoad_KeepsUserConfig(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "tripqa")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("timeout_ms = 9999\n"), 0o600))

	cfg, err := Load(configDir)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.TimeoutMs)
	assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.APIBaseURL)

	data, err := os.ReadFile(filepath.Join(configDir, "config"))
	require.NoError(t, err)
	assert.Equal(t, "timeout_ms = 9999\n", string(data), "existing config is never overwritten")
}

func TestLoad_InvalidConfig(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config"), []byte("scroll_max_steps = -1"), 0o600))

	_, err := Load(configDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scroll_max_steps")
}

func TestDefaultConfigDir(t *testing.T) {
	assert.Contains(t, DefaultConfigDir(), "tripqa")
}

func TestLocalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	globalDir := filepath.Join(tmpDir, "global")
	localDir := filepath.Join(tmpDir, ".tripqa")
	require.NoError(t, os.MkdirAll(globalDir, 0o700))
	require.NoError(t, os.MkdirAll(localDir, 0o700))

	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config"),
		[]byte("base_url = https://global.example.com\nscroll_step_px = 700\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "config"),
		[]byte("base_url = https://local.example.com\ncolor_fail = #010203\n"), 0o600))

	cfg, err := loadWithLocal(globalDir, localDir)
	require.NoError(t, err)

	assert.Equal(t, globalDir, cfg.ConfigDir())
	assert.Equal(t, localDir, cfg.LocalDir())
	assert.Equal(t, "https://local.example.com", cfg.BaseURL)
	assert.Equal(t, 700, cfg.ScrollStepPx)
	assert.Equal(t, "1,2,3", cfg.Colors.Fail)

	t.Run("no local dir", func(t *testing.T) {
		cfg, err := loadWithLocal(globalDir, "")
		require.NoError(t, err)
		assert.Empty(t, cfg.LocalDir())
		assert.Equal(t, "https://global.example.com", cfg.BaseURL)
	})
}

func TestLoad_SymlinkedConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	realDir := filepath.Join(tmpDir, "dotfiles", "tripqa-config")
	require.NoError(t, os.MkdirAll(realDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "config"), []byte("scroll_max_steps = 42\n"), 0o600))

	symlinkDir := filepath.Join(tmpDir, "config-symlink")
	require.NoError(t, os.Symlink(realDir, symlinkDir))

	cfg, err := loadWithLocal(symlinkDir, "")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.ScrollMaxSteps)
	assert.Equal(t, symlinkDir, cfg.ConfigDir())
}

func TestConfig_ApplyEnv(t *testing.T) {
	cfg, err := loadWithLocal(t.TempDir(), "")
	require.NoError(t, err)

	env := map[string]string{"BASE_URL": "https://qa.firsttrip.com", "HEADLESS": "false", "API_BASE_URL": ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "https://qa.firsttrip.com", cfg.BaseURL)
	assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.APIBaseURL, "empty env is ignored")
	assert.False(t, cfg.Headless)

	env["HEADLESS"] = "sometimes"
	require.Error(t, cfg.ApplyEnv(lookup))
}

func TestConfig_Durations(t *testing.T) {
	cfg, err := loadWithLocal(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, time.Second, cfg.MarkerTimeout())
	assert.Equal(t, time.Duration(0), cfg.SlowMo())
	cfg.SlowMoMs = 250
	assert.Equal(t, 250*time.Millisecond, cfg.SlowMo())
	assert.Equal(t, time.Minute, cfg.APIWaitTimeout())
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout())
	assert.Equal(t, filepath.Join("screenshots", "actual"), cfg.ScreenshotsPath("actual"))

	pc := cfg.PollConfig()
	assert.Equal(t, poll.Config{StepSize: 500, StepInterval: time.Second, IdleThreshold: 3 * time.Second, MaxSteps: 200}, pc)
	require.NoError(t, pc.Validate())
}
