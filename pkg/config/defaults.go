package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// installDefaults writes the embedded default config into configDir unless a config is already there.
// the dir and file are user only, the file may hold notification tokens.
func installDefaults(defaults fs.FS, configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := fs.ReadFile(defaults, "defaults/config")
	if err != nil {
		return fmt.Errorf("read embedded config: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(configDir, "config"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // config path
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close config file: %w", err)
	}
	return nil
}
