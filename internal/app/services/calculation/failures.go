package calculation

import (
	"context"
	"errors"

	paymentsapp "staypay/internal/app/handlers/payments"
	"staypay/internal/app/policies"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainpricing "staypay/internal/domain/pricing"
	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

// ErrPersistenceFailure wraps storage errors; prior state is left untouched.
var ErrPersistenceFailure = uow.ErrPersistence

// Code is a stable, transport-independent failure identifier.
type Code string

const (
	CodeInvalidRange         Code = "InvalidRange"
	CodeInvalidRequest       Code = "InvalidRequest"
	CodeInvalidPaymentOption Code = "InvalidPaymentOption"
	CodeStartInPast          Code = "StartInPast"
	CodeNoApplicableTier     Code = "NoApplicableTier"
	CodeOfferingNotFound     Code = "OfferingNotFound"
	CodeBookingNotFound      Code = "BookingNotFound"
	CodeMilestoneNotFound    Code = "MilestoneNotFound"
	CodeMilestoneNotPayable  Code = "MilestoneNotPayable"
	CodeOverpaidAfterEdit    Code = "OverpaidAfterEdit"
	CodeConcurrentUpdate     Code = "ConcurrentUpdate"
	CodePersistenceFailure   Code = "PersistenceFailure"
	CodeTimeout              Code = "Timeout"
	CodeInternal             Code = "Internal"
)

// Failure is what a caller is shown when an operation fails.
type Failure struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type rule struct {
	targets []error
	code    Code
	message string
}

var rules = []rule{
	{[]error{daterange.ErrInvalidRange, daterange.ErrInvalidDate}, CodeInvalidRange,
		"check-out must be a valid date after check-in"},
	{[]error{domainbooking.ErrStartInPast}, CodeStartInPast,
		"the stay cannot start in the past"},
	{[]error{schedule.ErrInvalidPaymentOption}, CodeInvalidPaymentOption,
		"payment option must be upfront_fee_only or pay_in_full"},
	{[]error{domainpricing.ErrNoApplicableTier}, CodeNoApplicableTier,
		"this offering has no rates configured"},
	{[]error{domainrates.ErrOfferingNotFound}, CodeOfferingNotFound,
		"the room or property was not found"},
	{[]error{domainbooking.ErrBookingNotFound}, CodeBookingNotFound,
		"booking not found"},
	{[]error{domainbooking.ErrMilestoneNotFound}, CodeMilestoneNotFound,
		"installment not found"},
	{[]error{domainbooking.ErrMilestoneNotPayable}, CodeMilestoneNotPayable,
		"this installment cannot be marked as paid"},
	{[]error{schedule.ErrOverpaidAfterEdit}, CodeOverpaidAfterEdit,
		"the new stay costs less than what has already been paid; contact support to arrange a refund"},
	{[]error{domainbooking.ErrConcurrentUpdate, policies.ErrLockNotAcquired}, CodeConcurrentUpdate,
		"the booking was changed by another request; please retry"},
	{[]error{
		domainrates.ErrOfferingRequired, domainbooking.ErrIDRequired, domainbooking.ErrGuestRequired,
		domainbooking.ErrOfferingRequired, domainbooking.ErrPaymentRefRequired, paymentsapp.ErrEventIDRequired,
		money.ErrCurrencyMismatch,
	}, CodeInvalidRequest, "the request is incomplete or inconsistent"},
	{[]error{uow.ErrPersistence}, CodePersistenceFailure,
		"the booking could not be saved; nothing was changed, please try again"},
	{[]error{context.DeadlineExceeded}, CodeTimeout,
		"the request timed out"},
}

// Describe translates err into a Failure. Unknown errors become Internal and
// never leak their text.
func Describe(err error) Failure {
	if err == nil {
		return Failure{}
	}
	for _, r := range rules {
		for _, target := range r.targets {
			if errors.Is(err, target) {
				return Failure{Code: r.code, Message: r.message}
			}
		}
	}
	return Failure{Code: CodeInternal, Message: "internal error"}
}
