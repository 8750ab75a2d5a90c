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
	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
)

const confirmBookingKey = "booking.confirm"

// ConfirmBookingCommand re-prices the stay server-side and stores the booking
// with its installment schedule.
type ConfirmBookingCommand struct {
	BookingID       string
	OfferingID      string
	RoomID          string
	FromDate        string
	ToDate          string
	PaymentOption   string
	PaymentMethod   string
	GuestID         string
	Phone           string
	IdempotencyKeyV string
}

func (ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (ConfirmBookingCommand) ResultPrototype() any { return &dto.ConfirmedBooking{} }

func (c ConfirmBookingCommand) LockKey() string { return LockKey(c.BookingID) }

func (c ConfirmBookingCommand) Validate() error {
	if strings.TrimSpace(c.OfferingID) == "" {
		return domainrates.ErrOfferingRequired
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return domainbooking.ErrGuestRequired
	}
	_, err := schedule.ParsePaymentOption(c.PaymentOption)
	return err
}

type ConfirmBookingHandler struct {
	UoWFactory uow.UoWFactory
	Encoder    appoutbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.ConfirmedBooking, error) {
	dr, err := daterange.Parse(cmd.FromDate, cmd.ToDate)
	if err != nil {
		return nil, err
	}
	option, err := schedule.ParsePaymentOption(cmd.PaymentOption)
	if err != nil {
		return nil, err
	}
	now := nowFunc(h.Now)
	if err := domainbooking.ValidateNewStay(dr, now); err != nil {
		return nil, err
	}

	var result dto.ConfirmedBooking
	err = support.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		table, calc, err := price(ctx, unit, cmd.OfferingID, cmd.RoomID, dr)
		if err != nil {
			return err
		}
		plan, err := schedule.Schedule(schedule.PlanInput{
			Calculation: calc,
			BookingFee:  calc.BookingFee,
			Deposit:     calc.Deposit,
			Start:       dr.From,
			Option:      option,
		})
		if err != nil {
			return err
		}
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:            domainbooking.BookingID(cmd.BookingID),
			OfferingID:    table.OfferingID,
			RoomID:        table.RoomID,
			GuestID:       cmd.GuestID,
			Phone:         cmd.Phone,
			PaymentMethod: cmd.PaymentMethod,
			PaymentOption: option,
			Range:         dr,
			Calculation:   calc,
			Plan:          plan,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		if err := save(ctx, unit, h.Encoder, b); err != nil {
			return err
		}
		result = dto.MapConfirmedBooking(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "booking confirmed",
			"booking_id", result.BookingID,
			"offering_id", cmd.OfferingID,
			"total", result.Quote.Total,
			"milestones", len(result.Milestones))
	}
	return &result, nil
}

var (
	_ commands.Handler[ConfirmBookingCommand, *dto.ConfirmedBooking] = (*ConfirmBookingHandler)(nil)
	_ middleware.IdempotentCommand                                    = ConfirmBookingCommand{}
	_ middleware.LockedCommand                                        = ConfirmBookingCommand{}
)
