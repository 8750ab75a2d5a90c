package daterange_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/domain/shared/daterange"
)

func TestParse(t *testing.T) {
	dr, err := daterange.Parse("2026-01-01", "2026-04-11")
	require.NoError(t, err)
	assert.Equal(t, 100, dr.Days())
	assert.Equal(t, time.UTC, dr.From.Location())
}

func TestParse_Errors(t *testing.T) {
	_, err := daterange.Parse("2026-13-01", "2026-04-11")
	assert.ErrorIs(t, err, daterange.ErrInvalidDate)

	_, err = daterange.Parse("2026-04-11", "2026-04-11")
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	_, err = daterange.Parse("2026-04-12", "2026-04-11")
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestDays_PartialDayCountsAsWhole(t *testing.T) {
	from := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	dr, err := daterange.New(from, from.Add(49*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Days())

	assert.Equal(t, 0, daterange.DateRange{}.Days())
}
