package flight

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/tripqa/tripqa/pkg/browser"
	"github.com/tripqa/tripqa/pkg/poll"
)

// SignInText is the text of the login page opened when selecting a flight as a guest.
const SignInText = "Sign InSign in to your accountEmail*Sign In with PasswordSend OTPOr Sign In"

// ResultsConfig controls how the results list is scrolled.
type ResultsConfig struct {
	Scroll        poll.Config
	EndMarker     string        // text shown below the last result
	MarkerTimeout time.Duration // per-step wait for the marker
}

// ResultsPage is the flight search results list.
type ResultsPage struct {
	page    *browser.Page
	cfg     ResultsConfig
	filters playwright.Locator
	cards   playwright.Locator
}

// NewResultsPage makes a results page object.
func NewResultsPage(p *browser.Page, cfg ResultsConfig) *ResultsPage {
	if cfg.EndMarker == "" {
		cfg.EndMarker = "End of Search Results"
	}
	if cfg.MarkerTimeout <= 0 {
		cfg.MarkerTimeout = time.Second
	}
	return &ResultsPage{
		page:    p,
		cfg:     cfg,
		filters: p.ByTestID("airline-filter-list"),
		cards:   p.Locator(`[data-testid^="flight_card_"]`),
	}
}

// Cards returns the flight card locator.
func (r *ResultsPage) Cards() playwright.Locator { return r.cards }

// FilterByAirline toggles an airline in the filter list.
func (r *ResultsPage) FilterByAirline(name string) error {
	if err := r.page.WaitForNetworkIdle(0); err != nil {
		return err
	}
	if err := r.page.ForceClick(r.filters.GetByText(name)); err != nil {
		return fmt.Errorf("filter by %s: %w", name, err)
	}
	return nil
}

// ScrollUntilEndOfResults scrolls the list until the end marker shows up or the page stops growing.
func (r *ResultsPage) ScrollUntilEndOfResults(ctx context.Context) (poll.Result, error) {
	marker := r.page.ByText(r.cfg.EndMarker)
	res, err := browser.ScrollToEnd(ctx, r.page.Raw(), r.cfg.Scroll, browser.MarkerProbe(marker, r.cfg.MarkerTimeout))
	if err != nil {
		return res, err
	}
	if res.Outcome == poll.Completed {
		if err := r.page.WaitForNetworkIdle(0); err != nil {
			return res, err
		}
	}
	return res, nil
}

// AllPrices returns prices of all cards, in page order.
func (r *ResultsPage) AllPrices() ([]int, error) {
	return r.prices(r.cards)
}

// PricesForAirline returns prices of cards mentioning the airline.
func (r *ResultsPage) PricesForAirline(name string) ([]int, error) {
	return r.prices(r.cards.Filter(playwright.LocatorFilterOptions{HasText: name}))
}

func (r *ResultsPage) prices(cards playwright.Locator) ([]int, error) {
	count, err := cards.Count()
	if err != nil {
		return nil, fmt.Errorf("count cards: %w", err)
	}
	prices := make([]int, 0, count)
	for i := range count {
		text, err := cards.Nth(i).Locator(`[data-testid="price-section"] .font-bold p`).First().
			TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(float64(r.page.Timeout().Milliseconds()))})
		if err != nil {
			return nil, fmt.Errorf("price of card %d: %w", i, err)
		}
		p, err := ParsePrice(text)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// ClickLastCardSelect selects the last flight and returns the page it opens.
func (r *ResultsPage) ClickLastCardSelect() (playwright.Page, error) {
	if err := r.page.WaitVisible(r.cards.First()); err != nil {
		return nil, fmt.Errorf("no flight cards: %w", err)
	}
	count, err := r.cards.Count()
	if err != nil {
		return nil, fmt.Errorf("count cards: %w", err)
	}
	last := r.cards.Nth(count - 1)
	if err := r.page.ScrollIntoView(last); err != nil {
		return nil, err
	}
	selectButton := last.Locator(`[data-testid="select-button"]`, playwright.LocatorLocatorOptions{HasText: "Select"}).First()
	return r.page.WaitForPopup(func() error { return r.page.Click(selectButton) })
}

// DeselectAndSelectAgain toggles the filter of two airlines and returns the refreshed prices.
// the filter entries carry a price suffix, so they are matched by "<name>৳".
func (r *ResultsPage) DeselectAndSelectAgain(off, on string) ([]int, error) {
	for _, name := range []string{off, on} {
		entry := r.filters.Locator("div").Filter(playwright.LocatorFilterOptions{HasText: name + "৳"}).First()
		if err := r.page.Click(entry); err != nil {
			return nil, fmt.Errorf("toggle %s: %w", name, err)
		}
	}
	return r.AllPrices()
}

// ExpectSignIn waits for the sign in form on the popup page.
func ExpectSignIn(popup playwright.Page, timeout time.Duration) error {
	err := popup.GetByText(SignInText).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("sign in form not shown: %w", err)
	}
	return nil
}

// CloseSignIn closes the sign in popup and brings the results page back.
func (r *ResultsPage) CloseSignIn(popup playwright.Page) error {
	if err := popup.Close(); err != nil {
		return fmt.Errorf("close sign in: %w", err)
	}
	if err := r.page.Raw().BringToFront(); err != nil {
		return fmt.Errorf("bring results to front: %w", err)
	}
	return r.page.WaitVisible(r.cards.First())
}
