package flight

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParsePrice keeps only the digits of a price label, "BDT 8,500" and "৳8,500" both give 8500.
func ParsePrice(text string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	if digits == "" {
		return 0, fmt.Errorf("no digits in price %q", strings.TrimFunc(text, unicode.IsSpace))
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return v, nil
}

// Ordinal formats a day of month: 1st, 2nd, 3rd, 4th, 11th, 22nd.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// DateLabel is the aria label of a datepicker day, e.g. "Choose Tuesday, September 23rd, 2025".
func DateLabel(t time.Time) string {
	return fmt.Sprintf("Choose %s, %s %s, %d", t.Weekday(), t.Month(), Ordinal(t.Day()), t.Year())
}

// MonthHeader is the datepicker header text for the month of t, e.g. "September 2025".
func MonthHeader(t time.Time) string {
	return fmt.Sprintf("%s %d", t.Month(), t.Year())
}
