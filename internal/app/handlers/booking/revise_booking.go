package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	"staypay/internal/app/handlers/support"
	"staypay/internal/app/middleware"
	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
)

const reviseBookingKey = "booking.revise"

// ReviseBookingCommand changes the dates or payment option of a booking and
// reconciles its schedule. An empty PaymentOption keeps the current one.
type ReviseBookingCommand struct {
	BookingID     string
	FromDate      string
	ToDate        string
	PaymentOption string
}

func (ReviseBookingCommand) Key() string { return reviseBookingKey }

func (c ReviseBookingCommand) LockKey() string { return LockKey(c.BookingID) }

func (c ReviseBookingCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return domainbooking.ErrIDRequired
	}
	if strings.TrimSpace(c.PaymentOption) == "" {
		return nil
	}
	_, err := schedule.ParsePaymentOption(c.PaymentOption)
	return err
}

type ReviseBookingHandler struct {
	UoWFactory uow.UoWFactory
	Encoder    appoutbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *ReviseBookingHandler) Handle(ctx context.Context, cmd ReviseBookingCommand) (*dto.RevisedBooking, error) {
	dr, err := daterange.Parse(cmd.FromDate, cmd.ToDate)
	if err != nil {
		return nil, err
	}

	var result dto.RevisedBooking
	err = support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return support.Storage(err)
		}
		option := b.PaymentOption
		if strings.TrimSpace(cmd.PaymentOption) != "" {
			if option, err = schedule.ParsePaymentOption(cmd.PaymentOption); err != nil {
				return err
			}
		}
		_, calc, err := price(ctx, unit, b.OfferingID, b.RoomID, dr)
		if err != nil {
			return err
		}
		rec, err := b.Revise(domainbooking.ReviseParams{
			Range:         dr,
			PaymentOption: option,
			Calculation:   calc,
			Now:           nowFunc(h.Now),
		})
		if err != nil {
			return err
		}
		if err := save(ctx, unit, h.Encoder, b); err != nil {
			return err
		}
		result = dto.MapRevisedBooking(b, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "booking revised",
			"booking_id", result.BookingID,
			"total", result.Quote.Total,
			"cancelled", len(result.Cancelled),
			"milestones", len(result.Milestones),
			"warnings", len(result.Warnings))
	}
	return &result, nil
}

var (
	_ commands.Handler[ReviseBookingCommand, *dto.RevisedBooking] = (*ReviseBookingHandler)(nil)
	_ middleware.LockedCommand                                     = ReviseBookingCommand{}
)
