package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"staypay/internal/domain/pricing"
	"staypay/internal/domain/rates"
	"staypay/internal/domain/shared/money"
)

var (
	ErrOverpaidAfterEdit    = errors.New("schedule: revised total is below the amount already paid")
	ErrInvalidPaymentOption = errors.New("schedule: unknown payment option")
	ErrStartRequired        = errors.New("schedule: start date is required")
	ErrEmptyCalculation     = errors.New("schedule: calculation has no priced lines")
)

// PlanInput describes an initial schedule request.
type PlanInput struct {
	Calculation pricing.Calculation
	BookingFee  money.Money
	Deposit     money.Money
	Start       time.Time
	Option      PaymentOption
}

// Plan is the initial split of a booking total into an upfront amount and installments.
// The deposit is carried for display only and never enters the installments.
type Plan struct {
	UpfrontAmountDue money.Money
	Deposit          money.Money
	Milestones       []Milestone
}

// Schedule splits a calculation into the upfront amount and dated milestones.
func Schedule(in PlanInput) (Plan, error) {
	if err := validate(in.Calculation, in.Start, in.Option); err != nil {
		return Plan{}, err
	}
	plan := Plan{Deposit: in.Deposit}
	if in.Option == PayInFull {
		upfront, err := in.BookingFee.Add(in.Calculation.Subtotal)
		if err != nil {
			return Plan{}, err
		}
		plan.UpfrontAmountDue = upfront
		return plan, nil
	}
	if _, err := in.BookingFee.Add(in.Calculation.Subtotal); err != nil {
		return Plan{}, err
	}
	plan.UpfrontAmountDue = in.BookingFee
	milestones, err := installments(in.Calculation.Subtotal, dueDates(in.Calculation, in.Start), 1)
	if err != nil {
		return Plan{}, err
	}
	plan.Milestones = milestones
	return plan, nil
}

// RescheduleInput describes a reconciliation after a booking edit. Previous is
// the calculation the existing milestones were generated from; it only feeds
// warnings and may be nil.
type RescheduleInput struct {
	Existing    []Milestone
	Previous    *pricing.Calculation
	Calculation pricing.Calculation
	BookingFee  money.Money
	Start       time.Time
	Option      PaymentOption
}

// Reconciliation is the replacement milestone set. Milestones holds the
// preserved paid milestones followed by the new installments; Cancelled lists
// the unpaid milestones that were discarded.
type Reconciliation struct {
	UpfrontAmountDue money.Money
	Milestones       []Milestone
	Cancelled        []Milestone
	Warnings         []string
}

// Reschedule rebuilds the unpaid part of a schedule. Paid milestones are kept
// untouched and their sum is deducted from the new subtotal; the unpaid
// balance is spread over the slots the paid milestones do not occupy.
func Reschedule(in RescheduleInput) (Reconciliation, error) {
	if err := validate(in.Calculation, in.Start, in.Option); err != nil {
		return Reconciliation{}, err
	}
	subtotal := in.Calculation.Subtotal

	var paid, cancelled []Milestone
	lastSeq := 0
	for _, m := range in.Existing {
		switch m.Status {
		case StatusPaid:
			paid = append(paid, m)
			if m.Sequence > lastSeq {
				lastSeq = m.Sequence
			}
		case StatusScheduled:
			c := m
			c.Status = StatusCancelled
			cancelled = append(cancelled, c)
		}
	}
	sort.Slice(paid, func(i, j int) bool { return paid[i].Sequence < paid[j].Sequence })

	paidAmounts := make([]money.Money, len(paid))
	for i, m := range paid {
		paidAmounts[i] = m.Amount
	}
	paidSum, err := money.Sum(subtotal.Currency, paidAmounts...)
	if err != nil {
		return Reconciliation{}, err
	}
	remaining, err := subtotal.Sub(paidSum)
	if err != nil {
		return Reconciliation{}, err
	}
	if remaining.IsNegative() {
		return Reconciliation{}, fmt.Errorf("%w: paid %d, revised subtotal %d %s",
			ErrOverpaidAfterEdit, paidSum.Amount, subtotal.Amount, subtotal.Currency)
	}

	out := Reconciliation{
		Milestones: CopyMilestones(paid),
		Cancelled:  cancelled,
		Warnings:   changeWarnings(in.Previous, in.Calculation),
	}

	// UpfrontAmountDue is the upfront figure of the new plan, not a balance;
	// collected upfront payments are not tracked here.
	if in.Option == PayInFull {
		upfront, err := in.BookingFee.Add(remaining)
		if err != nil {
			return Reconciliation{}, err
		}
		out.UpfrontAmountDue = upfront
		return out, nil
	}
	if _, err := in.BookingFee.Add(remaining); err != nil {
		return Reconciliation{}, err
	}
	out.UpfrontAmountDue = in.BookingFee

	if remaining.IsZero() {
		if len(paid) > 0 {
			out.Warnings = append(out.Warnings, "paid installments already cover the revised total; no further installments are due")
		}
		return out, nil
	}

	slots := dueDates(in.Calculation, in.Start)
	var open []time.Time
	if len(paid) >= len(slots) {
		open = slots[len(slots)-1:]
		out.Warnings = append(out.Warnings, "the remaining balance is collected in a single installment")
	} else {
		open = slots[len(paid):]
	}
	fresh, err := installments(remaining, open, lastSeq+1)
	if err != nil {
		return Reconciliation{}, err
	}
	out.Milestones = append(out.Milestones, fresh...)
	return out, nil
}

func validate(calc pricing.Calculation, start time.Time, option PaymentOption) error {
	if !option.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentOption, option)
	}
	if start.IsZero() {
		return ErrStartRequired
	}
	if len(calc.Lines) == 0 || calc.Subtotal.Currency == "" {
		return ErrEmptyCalculation
	}
	return nil
}

func installments(total money.Money, dates []time.Time, firstSeq int) ([]Milestone, error) {
	parts, err := total.Split(len(dates))
	if err != nil {
		return nil, err
	}
	out := make([]Milestone, len(dates))
	for i, due := range dates {
		out[i] = Milestone{
			Sequence: firstSeq + i,
			DueDate:  due,
			Amount:   parts[i],
			Status:   StatusScheduled,
		}
	}
	return out, nil
}

// dueDates lays out installment slots by the dominant tier: one per billed
// month on the start day-of-month, one per billed week, or a single slot the
// day after the start for day-priced stays.
func dueDates(calc pricing.Calculation, start time.Time) []time.Time {
	start = truncateDay(start)
	n := calc.DominantUnits()
	if n < 1 {
		n = 1
	}
	switch calc.DominantTier {
	case rates.TierMonth:
		out := make([]time.Time, n)
		for i := range out {
			out[i] = addMonthsClamped(start, i)
		}
		return out
	case rates.TierWeek:
		out := make([]time.Time, n)
		for i := range out {
			out[i] = start.AddDate(0, 0, 7*i)
		}
		return out
	default:
		return []time.Time{start.AddDate(0, 0, 1)}
	}
}

// addMonthsClamped keeps the start day-of-month, falling back to the last day
// of shorter months (Jan 31 -> Feb 29 -> Mar 31).
func addMonthsClamped(start time.Time, months int) time.Time {
	firstOfTarget := time.Date(start.Year(), start.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := start.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func changeWarnings(prev *pricing.Calculation, next pricing.Calculation) []string {
	if prev == nil {
		return nil
	}
	var out []string
	if next.Subtotal.Currency == prev.Subtotal.Currency && next.Subtotal.Amount < prev.Subtotal.Amount {
		out = append(out, "price decreased; the revised stay costs less than the original booking")
	}
	if prev.DominantTier != "" && prev.DominantTier != next.DominantTier {
		out = append(out, fmt.Sprintf("billing tier changed from %s to %s; the previous %s rate is no longer applicable",
			prev.DominantTier, next.DominantTier, prev.DominantTier))
	}
	return out
}
