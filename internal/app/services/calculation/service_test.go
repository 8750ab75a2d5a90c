package calculation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/services/calculation"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	"staypay/internal/domain/rates"
	"staypay/internal/domain/shared/money"
	infraoutbox "staypay/internal/infra/outbox"
	"staypay/internal/infra/storage/memory"
)

var now = time.Date(2026, time.January, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *calculation.Service
	store *memory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	discounted := money.Must(90000, "GBP")
	table, err := rates.NewRateTable(rates.CreateParams{
		OfferingID: "prop-1",
		RoomID:     "room-1",
		Currency:   "GBP",
		BookingFee: 15000,
		Deposit:    50000,
		Tiers: []rates.RateTier{
			{Kind: rates.TierMonth, UnitPrice: money.Must(95000, "GBP"), Discounted: &discounted},
			{Kind: rates.TierDay, UnitPrice: money.Must(4000, "GBP")},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRateTable(context.Background(), table))

	empty, err := rates.NewRateTable(rates.CreateParams{OfferingID: "prop-empty", Currency: "GBP"})
	require.NoError(t, err)
	require.NoError(t, store.UpsertRateTable(context.Background(), empty))

	ids := 0
	svc := calculation.New(calculation.Deps{
		UoWFactory:  memory.Factory{Store: store},
		Idempotency: memory.NewIdempotencyStore(),
		Locker:      memory.NewLocker(),
		Notifier:    infraoutbox.NewSignal(),
		Timeout:     5 * time.Second,
		Now:         func() time.Time { return now },
		NewID: func() string {
			ids++
			return fmt.Sprintf("bk-%d", ids)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return fixture{svc: svc, store: store}
}

func confirmRequest(from, to string) calculation.ConfirmRequest {
	return calculation.ConfirmRequest{
		QuoteRequest:  calculation.QuoteRequest{OfferingID: "prop-1", RoomID: "room-1", FromDate: from, ToDate: to},
		PaymentOption: "upfront_fee_only",
		PaymentMethod: "card",
		UserID:        "guest-1",
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Quote(context.Background(), calculation.QuoteRequest{
		OfferingID: "prop-1", RoomID: "room-1", FromDate: "2026-01-01", ToDate: "2026-04-11",
	})
	require.NoError(t, err)
	assert.Equal(t, "3100.00", quote.Total)
	assert.Equal(t, "month", quote.PriceType)
	assert.Equal(t, 100, quote.NumberOfDays)
	assert.Equal(t, "150.00", quote.BookingFee)
	assert.Equal(t, "500.00", quote.Deposit)
	require.Len(t, quote.Breakdown, 2)
	assert.Equal(t, "3 months", quote.Breakdown[0].Description)
	assert.True(t, quote.Breakdown[0].Discounted)
	assert.Equal(t, "10 days", quote.Breakdown[1].Description)

	assert.Empty(t, f.store.Outbox().Records(), "quotes never write")
}

func TestQuote_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]struct {
		req  calculation.QuoteRequest
		code calculation.Code
	}{
		"reversed range": {calculation.QuoteRequest{OfferingID: "prop-1", RoomID: "room-1", FromDate: "2026-02-01", ToDate: "2026-01-01"}, calculation.CodeInvalidRange},
		"bad date":       {calculation.QuoteRequest{OfferingID: "prop-1", RoomID: "room-1", FromDate: "tomorrow", ToDate: "2026-01-01"}, calculation.CodeInvalidRange},
		"unknown room":   {calculation.QuoteRequest{OfferingID: "prop-1", RoomID: "room-9", FromDate: "2026-01-01", ToDate: "2026-01-05"}, calculation.CodeOfferingNotFound},
		"no tiers":       {calculation.QuoteRequest{OfferingID: "prop-empty", FromDate: "2026-01-01", ToDate: "2026-01-05"}, calculation.CodeNoApplicableTier},
		"no offering":    {calculation.QuoteRequest{FromDate: "2026-01-01", ToDate: "2026-01-05"}, calculation.CodeInvalidRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Quote(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, calculation.Describe(err).Code)
		})
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed, err := f.svc.Confirm(ctx, confirmRequest("2026-01-31", "2026-05-11"))
	require.NoError(t, err)

	assert.Equal(t, "bk-1", confirmed.BookingID)
	assert.Equal(t, "150.00", confirmed.UpfrontAmountDue)
	assert.Equal(t, "500.00", confirmed.Deposit)
	require.Len(t, confirmed.Milestones, 3)
	assert.Equal(t, "1033.33", confirmed.Milestones[0].Amount)
	assert.Equal(t, "1033.34", confirmed.Milestones[2].Amount)
	assert.Equal(t, "2026-02-28", confirmed.Milestones[1].DueDate)

	records := f.store.Outbox().Records()
	require.Len(t, records, 1)
	assert.Equal(t, "booking.confirmed", records[0].Name)
	assert.Equal(t, "bk-1", records[0].Aggregate)

	view, err := f.svc.GetBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "guest-1", view.GuestID)
	assert.Equal(t, "0.00", view.PaidTotal)
	assert.Equal(t, int64(1), view.Version)
}

func TestConfirm_PayInFull(t *testing.T) {
	f := newFixture(t)
	req := confirmRequest("2026-01-31", "2026-05-11")
	req.PaymentOption = "pay_in_full"

	confirmed, err := f.svc.Confirm(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "3250.00", confirmed.UpfrontAmountDue)
	assert.Empty(t, confirmed.Milestones)
}

func TestConfirm_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, confirmRequest("2026-01-09", "2026-02-09"))
	assert.Equal(t, calculation.CodeStartInPast, calculation.Describe(err).Code)

	req := confirmRequest("2026-02-01", "2026-03-01")
	req.PaymentOption = "monthly"
	_, err = f.svc.Confirm(ctx, req)
	assert.Equal(t, calculation.CodeInvalidPaymentOption, calculation.Describe(err).Code)

	assert.Empty(t, f.store.Outbox().Records())
}

func TestConfirm_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := confirmRequest("2026-01-31", "2026-05-11")
	req.IdempotencyKey = "client-key-1"

	first, err := f.svc.Confirm(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Confirm(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, "bk-1", first.BookingID)
	assert.Len(t, f.store.Outbox().Records(), 1)

	req.IdempotencyKey = "client-key-2"
	third, err := f.svc.Confirm(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.BookingID, third.BookingID)
}

func TestReviseBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed, err := f.svc.Confirm(ctx, confirmRequest("2026-01-31", "2026-05-11"))
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, calculation.PaymentConfirmation{
		EventID: "evt-1", BookingID: confirmed.BookingID, Sequence: 1, PaymentRef: "pay-1",
	})
	require.NoError(t, err)

	revised, err := f.svc.ReviseBooking(ctx, calculation.ReviseRequest{
		BookingID: confirmed.BookingID,
		FromDate:  "2026-01-31",
		ToDate:    "2026-06-10",
	})
	require.NoError(t, err)

	assert.Equal(t, "upfront_fee_only", revised.PaymentOption)
	assert.Equal(t, "4000.00", revised.Quote.Total)
	require.Len(t, revised.Milestones, 4)
	assert.Equal(t, "paid", revised.Milestones[0].Status)
	assert.Equal(t, "pay-1", revised.Milestones[0].PaymentRef)
	assert.Equal(t, 4, revised.Milestones[3].SequenceNumber)
	require.Len(t, revised.Cancelled, 2)
	assert.Equal(t, "cancelled", revised.Cancelled[0].Status)
	assert.Equal(t, int64(3), revised.Version)

	names := make([]string, 0)
	for _, rec := range f.store.Outbox().Records() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"booking.confirmed", "booking.milestone_paid", "booking.revised"}, names)
}

func TestReviseBooking_OverpaidWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed, err := f.svc.Confirm(ctx, confirmRequest("2026-01-31", "2026-05-11"))
	require.NoError(t, err)
	for seq := 1; seq <= 2; seq++ {
		_, err := f.svc.RecordPayment(ctx, calculation.PaymentConfirmation{
			EventID: fmt.Sprintf("evt-%d", seq), BookingID: confirmed.BookingID, Sequence: seq, PaymentRef: fmt.Sprintf("pay-%d", seq),
		})
		require.NoError(t, err)
	}
	before, err := f.svc.GetBooking(ctx, confirmed.BookingID)
	require.NoError(t, err)
	outboxBefore := len(f.store.Outbox().Records())

	_, err = f.svc.ReviseBooking(ctx, calculation.ReviseRequest{BookingID: confirmed.BookingID, FromDate: "2026-01-31", ToDate: "2026-02-10"})
	require.Error(t, err)
	failure := calculation.Describe(err)
	assert.Equal(t, calculation.CodeOverpaidAfterEdit, failure.Code)
	assert.Contains(t, failure.Message, "refund")

	after, err := f.svc.GetBooking(ctx, confirmed.BookingID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.store.Outbox().Records(), outboxBefore)
}

func TestReviseBooking_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ReviseBooking(context.Background(), calculation.ReviseRequest{BookingID: "missing", FromDate: "2026-02-01", ToDate: "2026-02-05"})
	assert.Equal(t, calculation.CodeBookingNotFound, calculation.Describe(err).Code)
}

func TestRecordPayment_Dedupes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	confirmed, err := f.svc.Confirm(ctx, confirmRequest("2026-01-31", "2026-05-11"))
	require.NoError(t, err)

	payment := calculation.PaymentConfirmation{EventID: "evt-1", BookingID: confirmed.BookingID, Sequence: 2, PaymentRef: "pay-2", PaidAt: now}
	first, err := f.svc.RecordPayment(ctx, payment)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "paid", first.Status)

	again, err := f.svc.RecordPayment(ctx, payment)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	payment.EventID = "evt-redelivered"
	sameRef, err := f.svc.RecordPayment(ctx, payment)
	require.NoError(t, err)
	assert.True(t, sameRef.Duplicate)

	payment.EventID = "evt-other"
	payment.PaymentRef = "pay-other"
	_, err = f.svc.RecordPayment(ctx, payment)
	assert.Equal(t, calculation.CodeMilestoneNotPayable, calculation.Describe(err).Code)

	payment.Sequence = 7
	_, err = f.svc.RecordPayment(ctx, payment)
	assert.Equal(t, calculation.CodeMilestoneNotFound, calculation.Describe(err).Code)

	view, err := f.svc.GetBooking(ctx, confirmed.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "1033.33", view.PaidTotal)

	paid := 0
	for _, rec := range f.store.Outbox().Records() {
		if rec.Name == "booking.milestone_paid" {
			paid++
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Payload, &body))
		}
	}
	assert.Equal(t, 1, paid)
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err  error
		code calculation.Code
	}{
		{fmt.Errorf("load: %w", domainbooking.ErrBookingNotFound), calculation.CodeBookingNotFound},
		{uow.Persistence(domainbooking.ErrConcurrentUpdate), calculation.CodeConcurrentUpdate},
		{uow.Persistence(errors.New("connection reset")), calculation.CodePersistenceFailure},
		{context.DeadlineExceeded, calculation.CodeTimeout},
		{errors.New("something odd"), calculation.CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, calculation.Describe(tc.err).Code, tc.err.Error())
	}
	assert.Equal(t, "internal error", calculation.Describe(errors.New("secret detail")).Message)
	assert.Equal(t, calculation.Failure{}, calculation.Describe(nil))
}
