package dto

import (
	"time"

	domainbooking "staypay/internal/domain/booking"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
)

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(daterange.DateLayout)
}

type Milestone struct {
	SequenceNumber int    `json:"sequence_number"`
	DueDate        string `json:"due_date"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	PaidAt         string `json:"paid_at,omitempty"`
	PaymentRef     string `json:"payment_ref,omitempty"`
}

func MapMilestones(ms []schedule.Milestone) []Milestone {
	out := make([]Milestone, 0, len(ms))
	for _, m := range ms {
		item := Milestone{
			SequenceNumber: m.Sequence,
			DueDate:        FormatDate(m.DueDate),
			Amount:         FormatAmount(m.Amount),
			Status:         string(m.Status),
			PaymentRef:     m.PaymentRef,
		}
		if !m.PaidAt.IsZero() {
			item.PaidAt = m.PaidAt.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}
	return out
}

type ConfirmedBooking struct {
	BookingID        string      `json:"booking_id"`
	PaymentOption    string      `json:"payment_option"`
	UpfrontAmountDue string      `json:"upfront_amount_due"`
	Deposit          string      `json:"deposit"`
	Currency         string      `json:"currency"`
	Quote            Quote       `json:"quote"`
	Milestones       []Milestone `json:"milestones"`
}

type RevisedBooking struct {
	BookingID        string      `json:"booking_id"`
	PaymentOption    string      `json:"payment_option"`
	UpfrontAmountDue string      `json:"upfront_amount_due"`
	Currency         string      `json:"currency"`
	Quote            Quote       `json:"quote"`
	Milestones       []Milestone `json:"milestones"`
	Cancelled        []Milestone `json:"cancelled"`
	Warnings         []string    `json:"warnings"`
	Version          int64       `json:"version"`
}

// BookingView is the read model of a stored booking.
type BookingView struct {
	BookingID        string      `json:"booking_id"`
	OfferingID       string      `json:"offering_id"`
	RoomID           string      `json:"room_id,omitempty"`
	GuestID          string      `json:"user_id"`
	Phone            string      `json:"phone,omitempty"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	PaymentOption    string      `json:"payment_option"`
	Quote            Quote       `json:"quote"`
	UpfrontAmountDue string      `json:"upfront_amount_due"`
	PaidTotal        string      `json:"paid_total"`
	Currency         string      `json:"currency"`
	Milestones       []Milestone `json:"milestones"`
	Version          int64       `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func MapConfirmedBooking(b *domainbooking.Booking) ConfirmedBooking {
	return ConfirmedBooking{
		BookingID:        string(b.ID),
		PaymentOption:    string(b.PaymentOption),
		UpfrontAmountDue: FormatAmount(b.UpfrontAmountDue),
		Deposit:          FormatAmount(b.Calculation.Deposit),
		Currency:         b.Calculation.Subtotal.Currency,
		Quote:            MapQuote(b.OfferingID, b.RoomID, b.Range, b.Calculation),
		Milestones:       MapMilestones(b.Milestones),
	}
}

func MapRevisedBooking(b *domainbooking.Booking, rec schedule.Reconciliation) RevisedBooking {
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return RevisedBooking{
		BookingID:        string(b.ID),
		PaymentOption:    string(b.PaymentOption),
		UpfrontAmountDue: FormatAmount(b.UpfrontAmountDue),
		Currency:         b.Calculation.Subtotal.Currency,
		Quote:            MapQuote(b.OfferingID, b.RoomID, b.Range, b.Calculation),
		Milestones:       MapMilestones(b.Milestones),
		Cancelled:        MapMilestones(rec.Cancelled),
		Warnings:         warnings,
		Version:          b.Version,
	}
}

func MapBookingView(b *domainbooking.Booking) BookingView {
	return BookingView{
		BookingID:        string(b.ID),
		OfferingID:       b.OfferingID,
		RoomID:           b.RoomID,
		GuestID:          b.GuestID,
		Phone:            b.Phone,
		PaymentMethod:    b.PaymentMethod,
		PaymentOption:    string(b.PaymentOption),
		Quote:            MapQuote(b.OfferingID, b.RoomID, b.Range, b.Calculation),
		UpfrontAmountDue: FormatAmount(b.UpfrontAmountDue),
		PaidTotal:        FormatAmount(b.PaidTotal()),
		Currency:         b.Calculation.Subtotal.Currency,
		Milestones:       MapMilestones(b.Milestones),
		Version:          b.Version,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

type MilestonePayment struct {
	BookingID      string `json:"booking_id"`
	SequenceNumber int    `json:"sequence_number"`
	Status         string `json:"status"`
	PaidAt         string `json:"paid_at,omitempty"`
	PaymentRef     string `json:"payment_ref"`
	Duplicate      bool   `json:"duplicate"`
}
