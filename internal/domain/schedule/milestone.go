package schedule

import (
	"fmt"
	"strings"
	"time"

	"staypay/internal/domain/shared/money"
)

// PaymentOption selects how the stay subtotal is collected.
type PaymentOption string

const (
	UpfrontFeeOnly PaymentOption = "upfront_fee_only"
	PayInFull      PaymentOption = "pay_in_full"
)

func (o PaymentOption) Valid() bool {
	return o == UpfrontFeeOnly || o == PayInFull
}

func ParsePaymentOption(raw string) (PaymentOption, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(UpfrontFeeOnly), "upfront", "fee_only":
		return UpfrontFeeOnly, nil
	case string(PayInFull), "full":
		return PayInFull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentOption, raw)
	}
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Milestone is one future installment of a booking.
type Milestone struct {
	Sequence   int
	DueDate    time.Time
	Amount     money.Money
	Status     Status
	PaidAt     time.Time
	PaymentRef string
}

func (m Milestone) IsPaid() bool {
	return m.Status == StatusPaid
}

// CopyMilestones returns a detached copy of the slice.
func CopyMilestones(in []Milestone) []Milestone {
	if in == nil {
		return nil
	}
	return append([]Milestone(nil), in...)
}
