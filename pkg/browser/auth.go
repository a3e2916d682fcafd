package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Credentials are the login form inputs.
type Credentials struct {
	Email    string
	Password string
}

// ErrNoCredentials is returned when email or password is empty.
var ErrNoCredentials = errors.New("email and password are required")

// Authenticate logs in through the site login form and saves the storage state to statePath,
// so suites can start already signed in via ContextOptions.StorageState.
func Authenticate(ctx context.Context, s *Session, baseURL string, creds Credentials, statePath string) error {
	if creds.Email == "" || creds.Password == "" {
		return ErrNoCredentials
	}
	page, err := s.NewPage(ContextOptions{BaseURL: baseURL})
	if err != nil {
		return err
	}
	defer page.Close()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := page.Navigate(strings.TrimRight(baseURL, "/") + "/login"); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := page.Fill(page.ByTestID("email-input"), creds.Email); err != nil {
		return fmt.Errorf("authenticate: email: %w", err)
	}
	if err := page.Fill(page.ByTestID("password-input"), creds.Password); err != nil {
		return fmt.Errorf("authenticate: password: %w", err)
	}
	if err := page.Click(page.ByTestID("login-button")); err != nil {
		return fmt.Errorf("authenticate: submit: %w", err)
	}
	if err := page.Raw().WaitForURL("**/dashboard", playwright.PageWaitForURLOptions{Timeout: page.ms()}); err != nil {
		return fmt.Errorf("authenticate: wait for dashboard: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(statePath), 0o750); err != nil {
		return fmt.Errorf("create auth dir: %w", err)
	}
	if _, err := page.owned.StorageState(statePath); err != nil {
		return fmt.Errorf("save storage state: %w", err)
	}
	return nil
}

// Cleanup clears cookies, local storage and session storage of the page's context.
func Cleanup(p *Page) error {
	if err := p.Raw().Context().ClearCookies(); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	if _, err := p.Raw().Evaluate(`() => { localStorage.clear(); sessionStorage.clear(); }`); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}
