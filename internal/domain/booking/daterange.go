package booking

import (
	"errors"
	"time"

	"staypay/internal/domain/shared/daterange"
)

var ErrStartInPast = errors.New("booking: stay starts in the past")

// ValidateNewStay rejects stays whose first night is before today. Revisions of
// running stays skip this check.
func ValidateNewStay(dr daterange.DateRange, now time.Time) error {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := dr.From.UTC()
	startDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	if startDay.Before(today) {
		return ErrStartInPast
	}
	return nil
}
