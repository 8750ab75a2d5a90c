package calculation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	bookingapp "staypay/internal/app/handlers/booking"
	paymentsapp "staypay/internal/app/handlers/payments"
	pricingapp "staypay/internal/app/handlers/pricing"
	"staypay/internal/app/queries"
)

var ErrServiceMisconfigured = errors.New("calculation: command or query bus missing")

// bookingNamespace derives stable booking ids from client idempotency keys, so
// that two racing requests with the same key collide on the same aggregate.
var bookingNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("staypay.booking"))

// Service is the single entry point used by every transport. Each call is
// independent; the service holds no per-request state.
type Service struct {
	Commands commands.Bus
	Queries  queries.Bus
	NewID    func() string
}

type QuoteRequest struct {
	OfferingID string
	RoomID     string
	FromDate   string
	ToDate     string
}

type ConfirmRequest struct {
	QuoteRequest
	PaymentOption  string
	PaymentMethod  string
	UserID         string
	Phone          string
	IdempotencyKey string
}

type ReviseRequest struct {
	BookingID     string
	FromDate      string
	ToDate        string
	PaymentOption string
}

type PaymentConfirmation struct {
	EventID    string
	BookingID  string
	Sequence   int
	PaymentRef string
	PaidAt     time.Time
}

func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*dto.Quote, error) {
	if s.Queries == nil {
		return nil, ErrServiceMisconfigured
	}
	return queries.Ask[pricingapp.QuoteQuery, *dto.Quote](ctx, s.Queries, pricingapp.QuoteQuery{
		OfferingID: strings.TrimSpace(req.OfferingID),
		RoomID:     strings.TrimSpace(req.RoomID),
		FromDate:   req.FromDate,
		ToDate:     req.ToDate,
	})
}

func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*dto.ConfirmedBooking, error) {
	if s.Commands == nil {
		return nil, ErrServiceMisconfigured
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	return commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.ConfirmedBooking](ctx, s.Commands, bookingapp.ConfirmBookingCommand{
		BookingID:       s.bookingID(key),
		OfferingID:      strings.TrimSpace(req.OfferingID),
		RoomID:          strings.TrimSpace(req.RoomID),
		FromDate:        req.FromDate,
		ToDate:          req.ToDate,
		PaymentOption:   req.PaymentOption,
		PaymentMethod:   req.PaymentMethod,
		GuestID:         req.UserID,
		Phone:           req.Phone,
		IdempotencyKeyV: key,
	})
}

func (s *Service) ReviseBooking(ctx context.Context, req ReviseRequest) (*dto.RevisedBooking, error) {
	if s.Commands == nil {
		return nil, ErrServiceMisconfigured
	}
	return commands.Dispatch[bookingapp.ReviseBookingCommand, *dto.RevisedBooking](ctx, s.Commands, bookingapp.ReviseBookingCommand{
		BookingID:     strings.TrimSpace(req.BookingID),
		FromDate:      req.FromDate,
		ToDate:        req.ToDate,
		PaymentOption: req.PaymentOption,
	})
}

func (s *Service) RecordPayment(ctx context.Context, p PaymentConfirmation) (*dto.MilestonePayment, error) {
	if s.Commands == nil {
		return nil, ErrServiceMisconfigured
	}
	return commands.Dispatch[paymentsapp.RecordMilestonePaymentCommand, *dto.MilestonePayment](ctx, s.Commands, paymentsapp.RecordMilestonePaymentCommand{
		EventID:    strings.TrimSpace(p.EventID),
		BookingID:  strings.TrimSpace(p.BookingID),
		Sequence:   p.Sequence,
		PaymentRef: strings.TrimSpace(p.PaymentRef),
		PaidAt:     p.PaidAt,
	})
}

func (s *Service) GetBooking(ctx context.Context, bookingID string) (*dto.BookingView, error) {
	if s.Queries == nil {
		return nil, ErrServiceMisconfigured
	}
	return queries.Ask[bookingapp.GetBookingQuery, *dto.BookingView](ctx, s.Queries, bookingapp.GetBookingQuery{
		BookingID: strings.TrimSpace(bookingID),
	})
}

func (s *Service) bookingID(idempotencyKey string) string {
	if idempotencyKey != "" {
		return uuid.NewSHA1(bookingNamespace, []byte(idempotencyKey)).String()
	}
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
