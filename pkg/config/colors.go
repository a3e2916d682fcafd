package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// ColorConfig holds console colors as "r,g,b" strings, parsed from #rrggbb in config.
type ColorConfig struct {
	Setup     string
	Teardown  string
	Report    string
	Pass      string
	Fail      string
	Warn      string
	Error     string
	Timestamp string
	Info      string
}

var colorKeys = []struct {
	key   string
	field func(*ColorConfig) *string
}{
	{"color_setup", func(c *ColorConfig) *string { return &c.Setup }},
	{"color_teardown", func(c *ColorConfig) *string { return &c.Teardown }},
	{"color_report", func(c *ColorConfig) *string { return &c.Report }},
	{"color_pass", func(c *ColorConfig) *string { return &c.Pass }},
	{"color_fail", func(c *ColorConfig) *string { return &c.Fail }},
	{"color_warn", func(c *ColorConfig) *string { return &c.Warn }},
	{"color_error", func(c *ColorConfig) *string { return &c.Error }},
	{"color_timestamp", func(c *ColorConfig) *string { return &c.Timestamp }},
	{"color_info", func(c *ColorConfig) *string { return &c.Info }},
}

// loadColors layers embedded defaults, the global and the local config file, later ones win.
// missing files are skipped.
func loadColors(defaults fs.FS, localPath, globalPath string) (ColorConfig, error) {
	data, err := fs.ReadFile(defaults, "defaults/config")
	if err != nil {
		return ColorConfig{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	res, err := parseColors(data)
	if err != nil {
		return ColorConfig{}, fmt.Errorf("embedded defaults: %w", err)
	}

	for _, path := range []string{globalPath, localPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path) //nolint:gosec // config path
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return ColorConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
		layer, err := parseColors(data)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("%s: %w", path, err)
		}
		res.mergeFrom(&layer)
	}
	return res, nil
}

func parseColors(data []byte) (ColorConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return ColorConfig{}, fmt.Errorf("parse config: %w", err)
	}
	var c ColorConfig
	sec := f.Section("")
	for _, ck := range colorKeys {
		v := strings.TrimSpace(sec.Key(ck.key).String())
		if v == "" {
			continue
		}
		r, g, b, err := parseHexColor(v)
		if err != nil {
			return ColorConfig{}, fmt.Errorf("invalid %s: %w", ck.key, err)
		}
		*ck.field(&c) = fmt.Sprintf("%d,%d,%d", r, g, b)
	}
	return c, nil
}

// parseHexColor parses "#rrggbb".
func parseHexColor(s string) (r, g, b int, err error) {
	if !strings.HasPrefix(s, "#") {
		return 0, 0, 0, errors.New("hex color must start with #")
	}
	if len(s) != 7 {
		return 0, 0, 0, errors.New("hex color must be 7 characters, like #ff0000")
	}
	raw, err := hex.DecodeString(s[1:])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return int(raw[0]), int(raw[1]), int(raw[2]), nil
}

// mergeFrom copies the non-empty colors of src.
func (c *ColorConfig) mergeFrom(src *ColorConfig) {
	for _, ck := range colorKeys {
		if v := *ck.field(src); v != "" {
			*ck.field(c) = v
		}
	}
}
