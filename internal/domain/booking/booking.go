package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staypay/internal/domain/pricing"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/events"
	"staypay/internal/domain/shared/money"
)

var (
	ErrBookingNotFound     = errors.New("booking: not found")
	ErrIDRequired          = errors.New("booking: id required")
	ErrGuestRequired       = errors.New("booking: guest id required")
	ErrOfferingRequired    = errors.New("booking: offering id required")
	ErrMilestoneNotFound   = errors.New("booking: milestone not found")
	ErrMilestoneNotPayable = errors.New("booking: milestone cannot be marked paid")
	ErrPaymentRefRequired  = errors.New("booking: payment reference required")
	ErrConcurrentUpdate    = errors.New("booking: concurrent update")
)

type BookingID string

// Booking is a confirmed stay with its priced snapshot and installment schedule.
// Milestones are replaced as a whole on every revision; paid ones survive.
type Booking struct {
	ID               BookingID
	OfferingID       string
	RoomID           string
	GuestID          string
	Phone            string
	PaymentMethod    string
	PaymentOption    schedule.PaymentOption
	Range            daterange.DateRange
	Calculation      pricing.Calculation
	UpfrontAmountDue money.Money
	Milestones       []schedule.Milestone
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.Recorder
}

// Repository loads and atomically stores a booking together with its milestones.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
}

type CreateParams struct {
	ID            BookingID
	OfferingID    string
	RoomID        string
	GuestID       string
	Phone         string
	PaymentMethod string
	PaymentOption schedule.PaymentOption
	Range         daterange.DateRange
	Calculation   pricing.Calculation
	Plan          schedule.Plan
	CreatedAt     time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if strings.TrimSpace(params.OfferingID) == "" {
		return nil, ErrOfferingRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:               params.ID,
		OfferingID:       strings.TrimSpace(params.OfferingID),
		RoomID:           strings.TrimSpace(params.RoomID),
		GuestID:          strings.TrimSpace(params.GuestID),
		Phone:            strings.TrimSpace(params.Phone),
		PaymentMethod:    strings.TrimSpace(params.PaymentMethod),
		PaymentOption:    params.PaymentOption,
		Range:            params.Range,
		Calculation:      params.Calculation.Copy(),
		UpfrontAmountDue: params.Plan.UpfrontAmountDue,
		Milestones:       schedule.CopyMilestones(params.Plan.Milestones),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	b.Record(BookingConfirmed{
		BookingID:        b.ID,
		OfferingID:       b.OfferingID,
		RoomID:           b.RoomID,
		GuestID:          b.GuestID,
		Range:            b.Range,
		Subtotal:         b.Calculation.Subtotal,
		UpfrontAmountDue: b.UpfrontAmountDue,
		Milestones:       len(b.Milestones),
		At:               now,
	})
	return b, nil
}

type ReviseParams struct {
	Range         daterange.DateRange
	PaymentOption schedule.PaymentOption
	Calculation   pricing.Calculation
	Now           time.Time
}

// Revise reconciles the schedule against a new calculation. On failure the
// booking is left unchanged.
func (b *Booking) Revise(params ReviseParams) (schedule.Reconciliation, error) {
	if err := params.Range.Validate(); err != nil {
		return schedule.Reconciliation{}, err
	}
	previous := b.Calculation.Copy()
	rec, err := schedule.Reschedule(schedule.RescheduleInput{
		Existing:    schedule.CopyMilestones(b.Milestones),
		Previous:    &previous,
		Calculation: params.Calculation,
		BookingFee:  params.Calculation.BookingFee,
		Start:       params.Range.From,
		Option:      params.PaymentOption,
	})
	if err != nil {
		return schedule.Reconciliation{}, err
	}
	now := params.Now.UTC()
	b.Range = params.Range
	b.PaymentOption = params.PaymentOption
	b.Calculation = params.Calculation.Copy()
	b.UpfrontAmountDue = rec.UpfrontAmountDue
	b.Milestones = schedule.CopyMilestones(rec.Milestones)
	b.UpdatedAt = now

	cancelled := make([]int, len(rec.Cancelled))
	for i, m := range rec.Cancelled {
		cancelled[i] = m.Sequence
	}
	b.Record(BookingRevised{
		BookingID:          b.ID,
		Range:              b.Range,
		Subtotal:           b.Calculation.Subtotal,
		UpfrontAmountDue:   b.UpfrontAmountDue,
		CancelledSequences: cancelled,
		Milestones:         len(b.Milestones),
		Warnings:           append([]string(nil), rec.Warnings...),
		At:                 now,
	})
	return rec, nil
}

// RecordPayment marks a scheduled milestone as paid. Replaying the same
// payment reference is a no-op and reports changed=false.
func (b *Booking) RecordPayment(sequence int, paymentRef string, paidAt time.Time) (changed bool, err error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return false, ErrPaymentRefRequired
	}
	idx := -1
	for i, m := range b.Milestones {
		if m.Sequence == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, fmt.Errorf("%w: sequence %d", ErrMilestoneNotFound, sequence)
	}
	m := b.Milestones[idx]
	switch m.Status {
	case schedule.StatusPaid:
		if m.PaymentRef == paymentRef {
			return false, nil
		}
		return false, fmt.Errorf("%w: sequence %d already paid", ErrMilestoneNotPayable, sequence)
	case schedule.StatusScheduled:
	default:
		return false, fmt.Errorf("%w: sequence %d is %s", ErrMilestoneNotPayable, sequence, m.Status)
	}
	paidAt = paidAt.UTC()
	m.Status = schedule.StatusPaid
	m.PaidAt = paidAt
	m.PaymentRef = paymentRef
	b.Milestones[idx] = m
	b.UpdatedAt = paidAt
	b.Record(MilestonePaid{
		BookingID:  b.ID,
		Sequence:   sequence,
		Amount:     m.Amount,
		PaymentRef: paymentRef,
		At:         paidAt,
	})
	return true, nil
}

// PaidTotal sums the paid milestones.
func (b *Booking) PaidTotal() money.Money {
	total := money.Zero(b.Calculation.Subtotal.Currency)
	for _, m := range b.Milestones {
		if m.IsPaid() {
			total.Amount += m.Amount.Amount
		}
	}
	return total
}

// Clone returns a deep copy without pending events; stores hand out clones so
// callers never mutate stored state in place.
func (b *Booking) Clone() *Booking {
	clone := &Booking{
		ID:               b.ID,
		OfferingID:       b.OfferingID,
		RoomID:           b.RoomID,
		GuestID:          b.GuestID,
		Phone:            b.Phone,
		PaymentMethod:    b.PaymentMethod,
		PaymentOption:    b.PaymentOption,
		Range:            b.Range,
		Calculation:      b.Calculation.Copy(),
		UpfrontAmountDue: b.UpfrontAmountDue,
		Milestones:       schedule.CopyMilestones(b.Milestones),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
	return clone
}
