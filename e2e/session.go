// Package e2e runs the flight search browser suite and the live JSONPlaceholder api suite.
package e2e

import (
	"path/filepath"

	"github.com/tripqa/tripqa/pkg/browser"
	"github.com/tripqa/tripqa/pkg/config"
)

// sessionConfig builds browser launch options from config.
// E2E_HEADLESS and E2E_SKIP_INSTALL override it for a single run.
func sessionConfig(c *config.Config, lookup func(string) (string, bool)) browser.SessionConfig {
	sc := browser.SessionConfig{Headless: c.Headless, SlowMo: c.SlowMo(), Install: true}
	if v, ok := lookup("E2E_HEADLESS"); ok && v != "" {
		sc.Headless = v != "false"
	}
	if v, ok := lookup("E2E_SKIP_INSTALL"); ok {
		sc.Install = v != "true"
	}
	return sc
}

// criteriaPath resolves criteria_file against the suite root, one level above this package.
// empty means the built-in criteria.
func criteriaPath(c *config.Config) string {
	if c.CriteriaFile == "" || filepath.IsAbs(c.CriteriaFile) {
		return c.CriteriaFile
	}
	return filepath.Join("..", c.CriteriaFile)
}
