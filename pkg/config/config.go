// Package config loads tripqa settings from ini files with embedded defaults.
// Lookup order is local project config (.tripqa/config), then the global config
// directory, then the defaults compiled into the binary.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tripqa/tripqa/pkg/poll"
)

//go:embed defaults/config
var defaultsFS embed.FS

const localDirName = ".tripqa"

// Config is the resolved configuration of a run.
type Config struct {
	Values
	Colors ColorConfig

	configDir string
	localDir  string
}

// DefaultConfigDir returns ~/.config/tripqa, or a relative fallback if home is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "tripqa")
	}
	return filepath.Join(home, ".config", "tripqa")
}

// Load installs defaults into configDir if needed and loads the config,
// honoring .tripqa/config in the current directory. empty configDir means DefaultConfigDir.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := installDefaults(defaultsFS, configDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	localDir := ""
	if info, err := os.Stat(localDirName); err == nil && info.IsDir() {
		localDir = localDirName
	}
	return loadWithLocal(configDir, localDir)
}

// loadWithLocal loads config from globalDir with an optional localDir override.
// neither directory has to exist.
func loadWithLocal(globalDir, localDir string) (*Config, error) {
	localPath := ""
	if localDir != "" {
		localPath = filepath.Join(localDir, "config")
	}
	values, err := newValuesLoader(defaultsFS).Load(localPath, filepath.Join(globalDir, "config"))
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}
	colors, err := loadColors(defaultsFS, localPath, filepath.Join(globalDir, "config"))
	if err != nil {
		return nil, fmt.Errorf("load colors: %w", err)
	}
	return &Config{Values: values, Colors: colors, configDir: globalDir, localDir: localDir}, nil
}

// ConfigDir returns the global config directory in use.
func (c *Config) ConfigDir() string { return c.configDir }

// LocalDir returns the project-local config directory, empty if none.
func (c *Config) LocalDir() string { return c.localDir }

// ApplyEnv overrides values from environment variables, the way CI jobs
// point a suite at another deployment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BASE_URL"); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup("API_BASE_URL"); ok && v != "" {
		c.APIBaseURL = v
	}
	if v, ok := lookup("HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS %q: %w", v, err)
		}
		c.Headless, c.HeadlessSet = b, true
	}
	return nil
}

// Timeout is the default action and navigation timeout.
func (c *Config) Timeout() time.Duration { return ms(c.TimeoutMs) }

// SlowMo delays browser actions, only a headed browser uses it.
func (c *Config) SlowMo() time.Duration { return ms(c.SlowMoMs) }

// MarkerTimeout is how long a single end-marker probe waits.
func (c *Config) MarkerTimeout() time.Duration { return ms(c.MarkerTimeoutMs) }

// APIWaitTimeout bounds waiting for the API to become ready in setup.
func (c *Config) APIWaitTimeout() time.Duration { return ms(c.APIWaitTimeoutMs) }

// NotifyTimeout bounds sending of each notification.
func (c *Config) NotifyTimeout() time.Duration { return ms(c.NotifyTimeoutMs) }

// PollConfig builds the result-list scrolling parameters.
func (c *Config) PollConfig() poll.Config {
	return poll.Config{
		StepSize:      float64(c.ScrollStepPx),
		StepInterval:  ms(c.ScrollIntervalMs),
		IdleThreshold: ms(c.ScrollIdleMs),
		MaxSteps:      c.ScrollMaxSteps,
	}
}

// ScreenshotsPath returns path of a screenshot subdirectory, like "actual".
func (c *Config) ScreenshotsPath(sub string) string {
	return filepath.Join(c.ScreenshotsDir, sub)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
