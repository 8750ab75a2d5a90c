package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	bookingapp "staypay/internal/app/handlers/booking"
	"staypay/internal/app/handlers/support"
	"staypay/internal/app/middleware"
	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
)

const recordMilestonePaymentKey = "payments.record_milestone"

var ErrEventIDRequired = errors.New("payments: event id required")

// RecordMilestonePaymentCommand is the only way a milestone becomes paid. It
// arrives from the payment provider's event stream or from an operator.
type RecordMilestonePaymentCommand struct {
	EventID    string
	BookingID  string
	Sequence   int
	PaymentRef string
	PaidAt     time.Time
}

func (RecordMilestonePaymentCommand) Key() string { return recordMilestonePaymentKey }

func (c RecordMilestonePaymentCommand) LockKey() string { return bookingapp.LockKey(c.BookingID) }

func (c RecordMilestonePaymentCommand) Validate() error {
	switch {
	case strings.TrimSpace(c.EventID) == "":
		return ErrEventIDRequired
	case strings.TrimSpace(c.BookingID) == "":
		return domainbooking.ErrIDRequired
	case strings.TrimSpace(c.PaymentRef) == "":
		return domainbooking.ErrPaymentRefRequired
	}
	return nil
}

type RecordMilestonePaymentHandler struct {
	UoWFactory uow.UoWFactory
	Encoder    appoutbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *RecordMilestonePaymentHandler) Handle(ctx context.Context, cmd RecordMilestonePaymentCommand) (*dto.MilestonePayment, error) {
	result := dto.MilestonePayment{
		BookingID:      cmd.BookingID,
		SequenceNumber: cmd.Sequence,
		PaymentRef:     cmd.PaymentRef,
	}
	paidAt := cmd.PaidAt
	if paidAt.IsZero() {
		paidAt = h.now()
	}

	err := support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		seen, err := unit.Inbox().Seen(ctx, cmd.EventID)
		if err != nil {
			return uow.Persistence(err)
		}
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return support.Storage(err)
		}
		changed := false
		if !seen {
			if changed, err = b.RecordPayment(cmd.Sequence, cmd.PaymentRef, paidAt); err != nil {
				return err
			}
		}
		result.Duplicate = !changed
		for _, m := range dto.MapMilestones(b.Milestones) {
			if m.SequenceNumber == cmd.Sequence {
				result.Status = m.Status
				result.PaidAt = m.PaidAt
			}
		}
		if !changed {
			return nil
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return support.Storage(err)
		}
		return uow.Persistence(appoutbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain()))
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "milestone payment recorded",
			"booking_id", cmd.BookingID,
			"sequence", cmd.Sequence,
			"payment_ref", cmd.PaymentRef,
			"duplicate", result.Duplicate)
	}
	return &result, nil
}

func (h *RecordMilestonePaymentHandler) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now().UTC()
}

var (
	_ commands.Handler[RecordMilestonePaymentCommand, *dto.MilestonePayment] = (*RecordMilestonePaymentHandler)(nil)
	_ middleware.LockedCommand                                               = RecordMilestonePaymentCommand{}
)
