package flight

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed criteria.yml
var defaultCriteria []byte

// DateLayout is the date format used in criteria files and search urls.
const DateLayout = "2006-01-02"

// Date is a calendar day decoded from a YYYY-MM-DD yaml scalar.
type Date struct{ time.Time }

// UnmarshalYAML parses YYYY-MM-DD.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse(DateLayout, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid date %q, want YYYY-MM-DD", node.Line, node.Value)
	}
	d.Time = t
	return nil
}

// String returns the date as YYYY-MM-DD, empty for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Airport describes how an airport shows up in the autocomplete list.
type Airport struct {
	Name    string `yaml:"name"`
	Code    string `yaml:"code"`
	Country string `yaml:"country"` // Bangladesh if empty
}

// Criteria is a flight search definition.
type Criteria struct {
	From          string             `yaml:"from"`
	To            string             `yaml:"to"`
	DepartureDate Date               `yaml:"departure_date"`
	ReturnDate    Date               `yaml:"return_date"`
	Adults        int                `yaml:"adults"`
	Class         string             `yaml:"class"`
	Airlines      map[string]string  `yaml:"airlines"` // short key to display name
	Airports      map[string]Airport `yaml:"airports"` // keyed by city
}

// DefaultCriteria returns the built-in search.
func DefaultCriteria() (Criteria, error) {
	return parseCriteria(defaultCriteria)
}

// LoadCriteria reads criteria from a yaml file. an empty path gives DefaultCriteria.
func LoadCriteria(path string) (Criteria, error) {
	if path == "" {
		return DefaultCriteria()
	}
	data, err := os.ReadFile(path) //nolint:gosec // path from config
	if err != nil {
		return Criteria{}, fmt.Errorf("read criteria: %w", err)
	}
	c, err := parseCriteria(data)
	if err != nil {
		return Criteria{}, fmt.Errorf("criteria %s: %w", path, err)
	}
	return c, nil
}

func parseCriteria(data []byte) (Criteria, error) {
	var c Criteria
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Criteria{}, fmt.Errorf("parse criteria: %w", err)
	}
	if c.Adults == 0 {
		c.Adults = 1
	}
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// Validate checks required fields.
func (c Criteria) Validate() error {
	var errs []error
	if c.From == "" {
		errs = append(errs, errors.New("from is required"))
	}
	if c.To == "" {
		errs = append(errs, errors.New("to is required"))
	}
	if c.From != "" && c.From == c.To {
		errs = append(errs, errors.New("from and to must differ"))
	}
	if c.DepartureDate.IsZero() {
		errs = append(errs, errors.New("departure_date is required"))
	}
	if !c.ReturnDate.IsZero() && c.ReturnDate.Before(c.DepartureDate.Time) {
		errs = append(errs, errors.New("return_date is before departure_date"))
	}
	if c.Adults < 1 || c.Adults > 9 {
		errs = append(errs, fmt.Errorf("adults must be 1..9, got %d", c.Adults))
	}
	return errors.Join(errs...)
}

// Airline returns the display name for a short airline key, or the key itself.
func (c Criteria) Airline(key string) string {
	if name, ok := c.Airlines[key]; ok {
		return name
	}
	return key
}

// AirportOption returns the autocomplete entry text for a city,
// e.g. "Dhaka, BangladeshHazrat Shahjalal International AirportDAC".
func (c Criteria) AirportOption(city string) (string, error) {
	a, ok := c.Airports[city]
	if !ok {
		return "", fmt.Errorf("no airport for %q", city)
	}
	country := a.Country
	if country == "" {
		country = "Bangladesh"
	}
	return city + ", " + country + a.Name + a.Code, nil
}

// SearchURL builds a deep link to the results page, skipping the search form.
func SearchURL(baseURL string, c Criteria) (string, error) {
	from, ok := c.Airports[c.From]
	if !ok {
		return "", fmt.Errorf("no airport for %q", c.From)
	}
	to, ok := c.Airports[c.To]
	if !ok {
		return "", fmt.Errorf("no airport for %q", c.To)
	}

	q := url.Values{}
	q.Set("type", "1")
	q.Set("departure_id", from.Code)
	q.Set("arrival_id", to.Code)
	q.Set("outbound_date", c.DepartureDate.String())
	if !c.ReturnDate.IsZero() {
		q.Set("return_date", c.ReturnDate.String())
	}
	q.Set("adults", strconv.Itoa(c.Adults))
	q.Set("travel_class", "1")
	q.Set("fare_type", "1")
	return strings.TrimRight(baseURL, "/") + "/flights?" + q.Encode(), nil
}
