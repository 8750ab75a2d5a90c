package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for stay dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDate  = errors.New("daterange: invalid date")
)

// DateRange represents a half-open interval [From, To); the checkout day is not billed.
type DateRange struct {
	From time.Time
	To   time.Time
}

func New(from, to time.Time) (DateRange, error) {
	dr := DateRange{From: from.UTC(), To: to.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(from, to string) (DateRange, error) {
	start, err := ParseDate(from)
	if err != nil {
		return DateRange{}, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return DateRange{}, err
	}
	return New(start, end)
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t.UTC(), nil
}

func (dr DateRange) Validate() error {
	if dr.To.IsZero() || dr.From.IsZero() {
		return ErrInvalidRange
	}
	if !dr.To.After(dr.From) {
		return ErrInvalidRange
	}
	return nil
}

// Days returns the billable day count. A partial day counts as a whole day.
func (dr DateRange) Days() int {
	if !dr.To.After(dr.From) {
		return 0
	}
	d := dr.To.Sub(dr.From)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
