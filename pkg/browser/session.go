// Package browser drives chromium through playwright for the end-to-end suites.
// it holds the browser session, a base page object with timeout-aware actions,
// and the scroll-until-stable helper used on infinitely loading result lists.
package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// SessionConfig controls how the browser is launched.
type SessionConfig struct {
	Headless bool
	SlowMo   time.Duration // applied only when headed, for visual observation
	Install  bool          // download the playwright driver and chromium first
}

// Session owns a playwright driver and a chromium browser.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

// Launch starts playwright and chromium.
func Launch(cfg SessionConfig) (*Session, error) {
	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("run playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if !cfg.Headless && cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(float64(cfg.SlowMo / time.Millisecond))
	}

	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Session{pw: pw, browser: b}, nil
}

// ContextOptions configures an isolated browser context.
type ContextOptions struct {
	Width, Height int    // viewport, defaults to 1920x1080
	BaseURL       string // resolves relative navigation
	StorageState  string // path to a saved storage state, optional
}

// NewContext creates an isolated context with its own cookies and storage.
func (s *Session) NewContext(opts ContextOptions) (playwright.BrowserContext, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1920, 1080
	}
	co := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	}
	if opts.BaseURL != "" {
		co.BaseURL = playwright.String(opts.BaseURL)
	}
	if opts.StorageState != "" {
		co.StorageStatePath = playwright.String(opts.StorageState)
	}
	bctx, err := s.browser.NewContext(co)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	return bctx, nil
}

// NewPage opens a page in a fresh context. closing the returned page closes its context.
func (s *Session) NewPage(opts ContextOptions, pageOpts ...Option) (*Page, error) {
	bctx, err := s.NewContext(opts)
	if err != nil {
		return nil, err
	}
	p, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page := NewPage(p, pageOpts...)
	page.owned = bctx
	return page, nil
}

// Close stops the browser and the playwright driver.
func (s *Session) Close() error {
	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}
