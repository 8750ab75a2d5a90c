package booking

import (
	"time"

	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

type BookingConfirmed struct {
	BookingID        BookingID           `json:"booking_id"`
	OfferingID       string              `json:"offering_id"`
	RoomID           string              `json:"room_id,omitempty"`
	GuestID          string              `json:"guest_id"`
	Range            daterange.DateRange `json:"range"`
	Subtotal         money.Money         `json:"subtotal"`
	UpfrontAmountDue money.Money         `json:"upfront_amount_due"`
	Milestones       int                 `json:"milestones"`
	At               time.Time           `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingRevised struct {
	BookingID          BookingID           `json:"booking_id"`
	Range              daterange.DateRange `json:"range"`
	Subtotal           money.Money         `json:"subtotal"`
	UpfrontAmountDue   money.Money         `json:"upfront_amount_due"`
	CancelledSequences []int               `json:"cancelled_sequences"`
	Milestones         int                 `json:"milestones"`
	Warnings           []string            `json:"warnings,omitempty"`
	At                 time.Time           `json:"at"`
}

func (e BookingRevised) EventName() string     { return "booking.revised" }
func (e BookingRevised) AggregateID() string   { return string(e.BookingID) }
func (e BookingRevised) OccurredAt() time.Time { return e.At }

type MilestonePaid struct {
	BookingID  BookingID   `json:"booking_id"`
	Sequence   int         `json:"sequence"`
	Amount     money.Money `json:"amount"`
	PaymentRef string      `json:"payment_ref"`
	At         time.Time   `json:"at"`
}

func (e MilestonePaid) EventName() string     { return "booking.milestone_paid" }
func (e MilestonePaid) AggregateID() string   { return string(e.BookingID) }
func (e MilestonePaid) OccurredAt() time.Time { return e.At }
