package core

import (
	"strings"
	"time"
)

// dateLayout is the canonical textual form of a Date.
const dateLayout = "2006-01-02"

// Date is a calendar date with day precision. The zero value is invalid.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates a wall-clock instant to its calendar date.
func Today(now time.Time) Date {
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses the canonical YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Year returns the calendar year.
func (d Date) Year() int { return d.Time.Year() }

// Month returns the calendar month, 1-12.
func (d Date) Month() int { return int(d.Time.Month()) }

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// String renders the canonical YYYY-MM-DD form.
func (d Date) String() string { return d.Time.Format(dateLayout) }

// SameMonth reports whether both dates fall in the same calendar
// year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year() == other.Year() && d.Month() == other.Month()
}

// InMonth reports whether the date falls in the given year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

// PreviousMonth returns the year and month immediately preceding the
// date's month. January rolls to December of the previous year.
func (d Date) PreviousMonth() (year, month int) {
	year, month = d.Year(), d.Month()-1
	if month < 1 {
		month = 12
		year--
	}
	return year, month
}

// MarshalJSON encodes the date as a quoted YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
