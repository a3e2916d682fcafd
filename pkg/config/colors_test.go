package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadColors_EmbeddedOnly(t *testing.T) {
	colors, err := loadColors(defaultsFS, "", "")
	require.NoError(t, err)

	assert.Equal(t, "0,255,0", colors.Setup, "setup color should be green (#00ff00)")
	assert.Equal(t, "0,255,255", colors.Teardown, "teardown color should be cyan (#00ffff)")
	assert.Equal(t, "208,150,217", colors.Report, "report color should be light magenta (#d096d9)")
	assert.Equal(t, "95,215,95", colors.Pass)
	assert.Equal(t, "255,95,95", colors.Fail)
	assert.Equal(t, "255,197,109", colors.Warn)
	assert.Equal(t, "255,0,0", colors.Error)
	assert.Equal(t, "138,138,138", colors.Timestamp)
	assert.Equal(t, "180,180,180", colors.Info)
}

func TestLoadColors_LocalOverridesGlobal(t *testing.T) {
	tmpDir := t.TempDir()
	globalConfig := filepath.Join(tmpDir, "global-config")
	localConfig := filepath.Join(tmpDir, "local-config")

	require.NoError(t, os.WriteFile(globalConfig, []byte("color_setup = #ff0000\ncolor_error = #00ff00\n"), 0o600))
	require.NoError(t, os.WriteFile(localConfig, []byte("color_setup = #0000ff\n"), 0o600))

	colors, err := loadColors(defaultsFS, localConfig, globalConfig)
	require.NoError(t, err)

	assert.Equal(t, "0,0,255", colors.Setup)      // local
	assert.Equal(t, "0,255,0", colors.Error)      // global
	assert.Equal(t, "0,255,255", colors.Teardown) // embedded
}

func TestLoadColors_InvalidColor(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		errPart string
	}{
		{name: "missing hash", config: "color_setup = ff0000", errPart: "color_setup"},
		{name: "wrong length", config: "color_pass = #fff", errPart: "color_pass"},
		{name: "invalid chars", config: "color_fail = #gggggg", errPart: "color_fail"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config")
			require.NoError(t, os.WriteFile(configPath, []byte(tc.config), 0o600))

			_, err := loadColors(defaultsFS, "", configPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestParseHexColor(t *testing.T) {
	r, g, b, err := parseHexColor("#AaBbCc")
	require.NoError(t, err)
	assert.Equal(t, []int{170, 187, 204}, []int{r, g, b})

	for in, errPart := range map[string]string{
		"":         "must start with #",
		"ff0000":   "must start with #",
		"#fff":     "must be 7 characters",
		"#ff00000": "must be 7 characters",
		"#zz0000":  "invalid hex color",
	} {
		_, _, _, err := parseHexColor(in)
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), errPart, in)
	}
}

func TestInstallDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tripqa")
	require.NoError(t, installDefaults(defaultsFS, dir))

	info, err := os.Stat(filepath.Join(dir, "config"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), []byte("headless = false\n"), 0o600))
	require.NoError(t, installDefaults(defaultsFS, dir), "second install keeps the file")
	data, err := os.ReadFile(filepath.Join(dir, "config"))
	require.NoError(t, err)
	assert.Equal(t, "headless = false\n", string(data))
}

func TestColorConfig_mergeFrom(t *testing.T) {
	dst := &ColorConfig{Setup: "1,1,1", Error: "2,2,2"}
	dst.mergeFrom(&ColorConfig{Setup: "3,3,3", Pass: "4,4,4"})

	assert.Equal(t, "3,3,3", dst.Setup, "setup should be overwritten")
	assert.Equal(t, "4,4,4", dst.Pass, "pass should be set")
	assert.Equal(t, "2,2,2", dst.Error, "error should be preserved")
}
