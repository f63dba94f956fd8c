package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Activity is a single logged record of type, duration and calendar date.
type Activity struct {
	ID          string
	Type        string
	DurationMin float64
	Date        Date
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return FormatDateForInput(d)
}

// FormatDateForInput renders d the way a date input field expects it: the year
// as-is, month and day zero-padded to two digits.
func FormatDateForInput(d Date) string {
	return fmt.Sprintf("%d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate accepts YYYY-MM-DD, or an RFC3339 timestamp whose own calendar day is kept.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}, errors.Wrap(ErrInvalidInput, "date is required")
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return DateOf(t), nil
	}
	return Date{}, errors.Wrapf(ErrInvalidInput, "unparseable date %q", raw)
}

// ActivityInput holds raw field values as collected from a form.
type ActivityInput struct {
	Type     string
	Duration string
	Date     string
}

// ParseInput converts raw field values. Duration only has to be numeric; its sign
// is not checked and the type may be empty.
func ParseInput(input ActivityInput) (string, float64, Date, error) {
	duration, err := strconv.ParseFloat(strings.TrimSpace(input.Duration), 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return "", 0, Date{}, errors.Wrapf(ErrInvalidInput, "duration %q is not a number", input.Duration)
	}
	date, err := ParseDate(input.Date)
	if err != nil {
		return "", 0, Date{}, err
	}
	return input.Type, duration, date, nil
}
