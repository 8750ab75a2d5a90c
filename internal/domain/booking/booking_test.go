package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/domain/booking"
	"staypay/internal/domain/pricing"
	"staypay/internal/domain/rates"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

var now = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)

func rateTable(t *testing.T) *rates.RateTable {
	t.Helper()
	tbl, err := rates.NewRateTable(rates.CreateParams{
		OfferingID: "prop-1",
		Currency:   "GBP",
		BookingFee: 15000,
		Tiers: []rates.RateTier{
			{Kind: rates.TierMonth, UnitPrice: money.Must(90000, "GBP")},
			{Kind: rates.TierDay, UnitPrice: money.Must(4000, "GBP")},
		},
	})
	require.NoError(t, err)
	return tbl
}

func priced(t *testing.T, from, to string) (daterange.DateRange, pricing.Calculation) {
	t.Helper()
	dr, err := daterange.Parse(from, to)
	require.NoError(t, err)
	calc, err := pricing.Decompose(rateTable(t), dr)
	require.NoError(t, err)
	return dr, calc
}

func newBooking(t *testing.T) *booking.Booking {
	t.Helper()
	dr, calc := priced(t, "2026-01-31", "2026-05-11")
	plan, err := schedule.Schedule(schedule.PlanInput{
		Calculation: calc,
		BookingFee:  calc.BookingFee,
		Start:       dr.From,
		Option:      schedule.UpfrontFeeOnly,
	})
	require.NoError(t, err)
	b, err := booking.NewBooking(booking.CreateParams{
		ID:            "bk-1",
		OfferingID:    "prop-1",
		GuestID:       "guest-1",
		PaymentOption: schedule.UpfrontFeeOnly,
		Range:         dr,
		Calculation:   calc,
		Plan:          plan,
		CreatedAt:     now,
	})
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newBooking(t)

	assert.Equal(t, int64(15000), b.UpfrontAmountDue.Amount)
	assert.Len(t, b.Milestones, 3)
	assert.Equal(t, int64(0), b.Version)

	evs := b.PendingEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, "booking.confirmed", evs[0].EventName())
	assert.Equal(t, "bk-1", evs[0].AggregateID())
}

func TestNewBooking_RequiresIdentity(t *testing.T) {
	_, err := booking.NewBooking(booking.CreateParams{OfferingID: "p", GuestID: "g"})
	assert.ErrorIs(t, err, booking.ErrIDRequired)

	_, err = booking.NewBooking(booking.CreateParams{ID: "b", OfferingID: "p"})
	assert.ErrorIs(t, err, booking.ErrGuestRequired)
}

func TestRecordPayment(t *testing.T) {
	b := newBooking(t)
	b.Drain()
	paidAt := now.Add(time.Hour)

	changed, err := b.RecordPayment(1, "pay-1", paidAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, schedule.StatusPaid, b.Milestones[0].Status)
	assert.Equal(t, paidAt, b.Milestones[0].PaidAt)
	assert.Equal(t, int64(103333), b.PaidTotal().Amount)
	require.Len(t, b.PendingEvents(), 1)

	changed, err = b.RecordPayment(1, "pay-1", paidAt)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, b.PendingEvents(), 1)

	_, err = b.RecordPayment(1, "pay-other", paidAt)
	assert.ErrorIs(t, err, booking.ErrMilestoneNotPayable)

	_, err = b.RecordPayment(9, "pay-9", paidAt)
	assert.ErrorIs(t, err, booking.ErrMilestoneNotFound)

	_, err = b.RecordPayment(2, " ", paidAt)
	assert.ErrorIs(t, err, booking.ErrPaymentRefRequired)
}

func TestRevise_ReplacesUnpaidMilestones(t *testing.T) {
	b := newBooking(t)
	b.Drain()
	_, err := b.RecordPayment(1, "pay-1", now)
	require.NoError(t, err)
	b.Drain()

	dr, calc := priced(t, "2026-01-31", "2026-06-10")
	rec, err := b.Revise(booking.ReviseParams{
		Range:         dr,
		PaymentOption: schedule.UpfrontFeeOnly,
		Calculation:   calc,
		Now:           now,
	})
	require.NoError(t, err)

	assert.Equal(t, dr, b.Range)
	assert.Equal(t, calc.Subtotal, b.Calculation.Subtotal)
	assert.Len(t, rec.Cancelled, 2)
	require.Len(t, b.Milestones, 4)
	assert.Equal(t, schedule.StatusPaid, b.Milestones[0].Status)
	assert.Equal(t, "pay-1", b.Milestones[0].PaymentRef)
	assert.Equal(t, 4, b.Milestones[3].Sequence)

	evs := b.Drain()
	require.Len(t, evs, 1)
	revised, ok := evs[0].(booking.BookingRevised)
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, revised.CancelledSequences)
}

func TestRevise_OverpaidLeavesBookingUnchanged(t *testing.T) {
	b := newBooking(t)
	_, err := b.RecordPayment(1, "pay-1", now)
	require.NoError(t, err)
	_, err = b.RecordPayment(2, "pay-2", now)
	require.NoError(t, err)
	before := b.Clone()
	b.Drain()

	dr, calc := priced(t, "2026-01-31", "2026-02-10")
	_, err = b.Revise(booking.ReviseParams{Range: dr, PaymentOption: schedule.UpfrontFeeOnly, Calculation: calc, Now: now})
	assert.ErrorIs(t, err, schedule.ErrOverpaidAfterEdit)
	assert.Equal(t, before, b)
	assert.Empty(t, b.PendingEvents())
}

func TestValidateNewStay(t *testing.T) {
	dr, _ := priced(t, "2026-01-10", "2026-01-12")
	assert.NoError(t, booking.ValidateNewStay(dr, now))

	dr, _ = priced(t, "2026-01-09", "2026-01-12")
	assert.ErrorIs(t, booking.ValidateNewStay(dr, now), booking.ErrStartInPast)
}

func TestClone_IsDetached(t *testing.T) {
	b := newBooking(t)
	clone := b.Clone()
	clone.Milestones[0].Status = schedule.StatusPaid

	assert.Equal(t, schedule.StatusScheduled, b.Milestones[0].Status)
	assert.Empty(t, clone.PendingEvents())
}
