// Package flight has page objects for the firsttrip.com flight search and results pages.
package flight

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/tripqa/tripqa/pkg/browser"
)

// maxMonthSkips bounds datepicker navigation towards a target month.
const maxMonthSkips = 24

// monthCheckTimeout is how long the datepicker header gets to show the target month.
const monthCheckTimeout = 150 * time.Millisecond

// SearchPage is the flight search form.
type SearchPage struct {
	page     *browser.Page
	baseURL  string
	criteria Criteria

	searchButton  playwright.Locator
	fromCity      playwright.Locator
	toCity        playwright.Locator
	departureDate playwright.Locator
	returnDate    playwright.Locator
	traveller     playwright.Locator
	adultAdd      playwright.Locator
}

// NewSearchPage makes a search page object. criteria supplies airport names for the autocomplete.
func NewSearchPage(p *browser.Page, baseURL string, c Criteria) *SearchPage {
	return &SearchPage{
		page:          p,
		baseURL:       strings.TrimRight(baseURL, "/"),
		criteria:      c,
		searchButton:  p.ByTestID("search-flight-button"),
		fromCity:      p.ByTestID("departure-airport-input-form-1"),
		toCity:        p.ByTestID("destination-airport-input-form-1"),
		departureDate: p.Locator("button").Filter(playwright.LocatorFilterOptions{HasText: "Departure"}),
		returnDate:    p.ByTestID("flight-return-date-selector"),
		traveller:     p.ByText("1 Traveller"),
		adultAdd:      p.ByTestID("adult-number-add-button").GetByAltText("image"),
	}
}

// Goto opens the search page and waits for the search button.
func (s *SearchPage) Goto() error {
	if err := s.page.Navigate(s.baseURL + "/"); err != nil {
		return err
	}
	return s.page.WaitVisible(s.searchButton)
}

// FillFrom types the departure city and picks its airport from the suggestions.
func (s *SearchPage) FillFrom(city string) error {
	return s.fillAirport(s.fromCity, city)
}

// FillTo types the destination city and picks its airport from the suggestions.
func (s *SearchPage) FillTo(city string) error {
	return s.fillAirport(s.toCity, city)
}

func (s *SearchPage) fillAirport(input playwright.Locator, city string) error {
	option, err := s.criteria.AirportOption(city)
	if err != nil {
		return err
	}
	if err := s.page.Click(input); err != nil {
		return fmt.Errorf("open airport input: %w", err)
	}
	if err := s.page.Fill(input, city); err != nil {
		return fmt.Errorf("type city %s: %w", city, err)
	}
	if err := s.page.Click(s.page.ByText(option)); err != nil {
		return fmt.Errorf("pick airport %s: %w", option, err)
	}
	return nil
}

// SelectDepartureDate opens the departure datepicker and picks the date.
func (s *SearchPage) SelectDepartureDate(d time.Time) error {
	return s.pickDate(s.departureDate, d)
}

// SelectReturnDate opens the return datepicker and picks the date.
func (s *SearchPage) SelectReturnDate(d time.Time) error {
	return s.pickDate(s.returnDate, d)
}

func (s *SearchPage) pickDate(opener playwright.Locator, d time.Time) error {
	if err := s.page.Click(opener); err != nil {
		return fmt.Errorf("open datepicker: %w", err)
	}
	if err := s.page.WaitVisible(s.page.Locator(".react-datepicker").First()); err != nil {
		return fmt.Errorf("datepicker: %w", err)
	}

	header := s.page.Locator(".react-datepicker__current-month").
		Filter(playwright.LocatorFilterOptions{HasText: MonthHeader(d)})
	next := s.page.Locator(`button.react-datepicker__navigation--next[aria-label="Next Month"]`)
	found := false
	for range maxMonthSkips {
		if s.page.IsVisible(header.First(), monthCheckTimeout) {
			found = true
			break
		}
		if err := s.page.Click(next); err != nil {
			return fmt.Errorf("next month: %w", err)
		}
	}
	if !found && !s.page.IsVisible(header.First(), monthCheckTimeout) {
		return fmt.Errorf("month %s not reached in %d steps", MonthHeader(d), maxMonthSkips)
	}

	if err := s.page.Click(s.page.ByLabel(DateLabel(d)).First()); err != nil {
		return fmt.Errorf("pick %s: %w", d.Format(DateLayout), err)
	}
	return nil
}

// SetAdults opens the traveller panel and raises the adult count from 1 to n.
func (s *SearchPage) SetAdults(n int) error {
	if err := s.page.Click(s.traveller); err != nil {
		return fmt.Errorf("open travellers: %w", err)
	}
	for i := 1; i < n; i++ {
		if err := s.page.Click(s.adultAdd); err != nil {
			return fmt.Errorf("add adult %d: %w", i+1, err)
		}
	}
	return nil
}

// SelectClass picks a cabin class by case-insensitive name.
func (s *SearchPage) SelectClass(class string) error {
	if err := s.page.Click(s.page.ByText("Economy").First()); err != nil {
		return fmt.Errorf("open class list: %w", err)
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(class))
	option := s.page.Raw().GetByRole(*playwright.AriaRoleOption, playwright.PageGetByRoleOptions{Name: re}).
		Or(s.page.Locator("text=" + class))
	if err := s.page.Click(option.First()); err != nil {
		return fmt.Errorf("select class %s: %w", class, err)
	}
	return nil
}

// Fill runs the whole form for c without submitting it.
func (s *SearchPage) Fill(c Criteria) error {
	steps := []func() error{
		func() error { return s.FillFrom(c.From) },
		func() error { return s.FillTo(c.To) },
		func() error { return s.SelectDepartureDate(c.DepartureDate.Time) },
	}
	if !c.ReturnDate.IsZero() {
		steps = append(steps, func() error { return s.SelectReturnDate(c.ReturnDate.Time) })
	}
	steps = append(steps, func() error { return s.SetAdults(c.Adults) })
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Search submits the form and waits for the network to settle.
func (s *SearchPage) Search() error {
	if err := s.page.Click(s.searchButton); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return s.page.WaitForNetworkIdle(0)
}
