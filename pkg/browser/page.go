package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultTimeout applies to page actions unless WithTimeout is given.
const DefaultTimeout = 30 * time.Second

// Page is a base page object over a playwright page.
// every action waits for its target to be visible first, bounded by the page timeout.
type Page struct {
	pw            playwright.Page
	timeout       time.Duration
	screenshotDir string
	owned         playwright.BrowserContext // closed with the page when set
}

// Option configures a Page.
type Option func(*Page)

// WithTimeout sets the action and navigation timeout.
func WithTimeout(d time.Duration) Option { return func(p *Page) { p.timeout = d } }

// WithScreenshotDir sets where Screenshot writes files.
func WithScreenshotDir(dir string) Option { return func(p *Page) { p.screenshotDir = dir } }

// NewPage wraps a playwright page.
func NewPage(p playwright.Page, opts ...Option) *Page {
	res := &Page{pw: p, timeout: DefaultTimeout, screenshotDir: filepath.Join("test-results", "screenshots")}
	for _, o := range opts {
		o(res)
	}
	return res
}

// Raw returns the underlying playwright page.
func (p *Page) Raw() playwright.Page { return p.pw }

// Timeout returns the page action timeout.
func (p *Page) Timeout() time.Duration { return p.timeout }

func (p *Page) ms() *float64 { return ms(p.timeout) }

func ms(d time.Duration) *float64 { return playwright.Float(float64(d / time.Millisecond)) }

// Locator returns a locator for a css or text selector.
func (p *Page) Locator(selector string) playwright.Locator { return p.pw.Locator(selector) }

// ByTestID returns a locator for a data-testid value.
func (p *Page) ByTestID(id string) playwright.Locator { return p.pw.GetByTestId(id) }

// ByText returns a locator for visible text.
func (p *Page) ByText(text string) playwright.Locator { return p.pw.GetByText(text) }

// ByLabel returns a locator for an aria label or form label.
func (p *Page) ByLabel(label string) playwright.Locator { return p.pw.GetByLabel(label) }

// ByRole returns a locator for an aria role with an accessible name.
func (p *Page) ByRole(role playwright.AriaRole, name string) playwright.Locator {
	return p.pw.GetByRole(role, playwright.PageGetByRoleOptions{Name: name})
}

// Navigate loads url and waits for DOMContentLoaded.
func (p *Page) Navigate(url string) error {
	if _, err := p.pw.Goto(url, playwright.PageGotoOptions{
		Timeout:   p.ms(),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitForNetworkIdle waits until there are no network connections for 500ms.
func (p *Page) WaitForNetworkIdle(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	if err := p.pw.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(timeout),
	}); err != nil {
		return fmt.Errorf("wait for network idle: %w", err)
	}
	return nil
}

// WaitForPageLoad waits for DOMContentLoaded.
func (p *Page) WaitForPageLoad() error {
	if err := p.pw.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: p.ms(),
	}); err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	return nil
}

// WaitVisible waits for the locator to become visible.
func (p *Page) WaitVisible(loc playwright.Locator) error {
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: p.ms(),
	}); err != nil {
		return fmt.Errorf("wait visible: %w", err)
	}
	return nil
}

// Click clicks a visible element.
func (p *Page) Click(loc playwright.Locator) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// ForceClick clicks without actionability checks, for elements covered by overlays.
func (p *Page) ForceClick(loc playwright.Locator) error {
	if err := loc.Click(playwright.LocatorClickOptions{Force: playwright.Bool(true), Timeout: p.ms()}); err != nil {
		return fmt.Errorf("force click: %w", err)
	}
	return nil
}

// Fill replaces the value of an input.
func (p *Page) Fill(loc playwright.Locator, text string) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if err := loc.Fill(text, playwright.LocatorFillOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("fill: %w", err)
	}
	return nil
}

// Press sends a key to an element, like "Enter" or "Control+A".
func (p *Page) Press(loc playwright.Locator, key string) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if err := loc.Press(key, playwright.LocatorPressOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// Hover moves the mouse over an element.
func (p *Page) Hover(loc playwright.Locator) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if err := loc.Hover(playwright.LocatorHoverOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	return nil
}

// Check ticks a checkbox or radio.
func (p *Page) Check(loc playwright.Locator) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if err := loc.Check(playwright.LocatorCheckOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("check: %w", err)
	}
	return nil
}

// Uncheck clears a checkbox.
func (p *Page) Uncheck(loc playwright.Locator) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if err := loc.Uncheck(playwright.LocatorUncheckOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("uncheck: %w", err)
	}
	return nil
}

// SelectOption selects options of a <select> by value or label.
func (p *Page) SelectOption(loc playwright.Locator, values ...string) error {
	if err := p.WaitVisible(loc); err != nil {
		return err
	}
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Values: &values},
		playwright.LocatorSelectOptionOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("select option %v: %w", values, err)
	}
	return nil
}

// Text returns the text content of a visible element.
func (p *Page) Text(loc playwright.Locator) (string, error) {
	if err := p.WaitVisible(loc); err != nil {
		return "", err
	}
	text, err := loc.TextContent(playwright.LocatorTextContentOptions{Timeout: p.ms()})
	if err != nil {
		return "", fmt.Errorf("text content: %w", err)
	}
	return text, nil
}

// InputValue returns the current value of an input.
func (p *Page) InputValue(loc playwright.Locator) (string, error) {
	if err := p.WaitVisible(loc); err != nil {
		return "", err
	}
	v, err := loc.InputValue(playwright.LocatorInputValueOptions{Timeout: p.ms()})
	if err != nil {
		return "", fmt.Errorf("input value: %w", err)
	}
	return v, nil
}

// IsVisible reports whether the element becomes visible within timeout. errors count as not visible.
func (p *Page) IsVisible(loc playwright.Locator, timeout time.Duration) bool {
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	}); err != nil {
		return false
	}
	visible, err := loc.IsVisible()
	return err == nil && visible
}

// IsHidden reports whether the element is hidden or detached within timeout.
func (p *Page) IsHidden(loc playwright.Locator, timeout time.Duration) bool {
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: ms(timeout),
	})
	return err == nil
}

// Title returns the document title.
func (p *Page) Title() (string, error) {
	t, err := p.pw.Title()
	if err != nil {
		return "", fmt.Errorf("get title: %w", err)
	}
	return t, nil
}

// URL returns the current page url.
func (p *Page) URL() string { return p.pw.URL() }

// ScrollIntoView scrolls the element into the viewport if needed.
func (p *Page) ScrollIntoView(loc playwright.Locator) error {
	if err := loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: p.ms()}); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	return nil
}

// ScrollToTop scrolls the window to the top.
func (p *Page) ScrollToTop() error {
	if _, err := p.pw.Evaluate(`() => window.scrollTo(0, 0)`); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return nil
}

// ScrollToBottom scrolls the window to the current end of the document.
func (p *Page) ScrollToBottom() error {
	if _, err := p.pw.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// Screenshot saves a png named name into the screenshot dir and returns its path.
func (p *Page) Screenshot(name string, fullPage bool) (string, error) {
	if err := os.MkdirAll(p.screenshotDir, 0o750); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(p.screenshotDir, name+".png")
	if _, err := p.pw.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	}); err != nil {
		return "", fmt.Errorf("screenshot %s: %w", name, err)
	}
	return path, nil
}

// WaitForPopup runs action and returns the page it opened, once loaded.
func (p *Page) WaitForPopup(action func() error) (playwright.Page, error) {
	popup, err := p.pw.Context().ExpectPage(action, playwright.BrowserContextExpectPageOptions{Timeout: p.ms()})
	if err != nil {
		return nil, fmt.Errorf("wait for popup: %w", err)
	}
	if err := popup.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: p.ms(),
	}); err != nil {
		return nil, fmt.Errorf("wait for popup load: %w", err)
	}
	return popup, nil
}

// SetViewport resizes the viewport.
func (p *Page) SetViewport(width, height int) error {
	if err := p.pw.SetViewportSize(width, height); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// Close closes the page, and its context when the page was opened by Session.NewPage.
func (p *Page) Close() error {
	err := p.pw.Close()
	if p.owned != nil {
		err = errors.Join(err, p.owned.Close())
	}
	if err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}
