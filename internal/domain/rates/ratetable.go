package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staypay/internal/domain/shared/money"
)

var (
	ErrOfferingNotFound  = errors.New("rates: offering not found")
	ErrOfferingRequired  = errors.New("rates: offering id is required")
	ErrDuplicateTier     = errors.New("rates: duplicate tier kind")
	ErrUnknownTier       = errors.New("rates: unknown tier kind")
	ErrTooManyTiers      = errors.New("rates: at most three tiers are allowed")
	ErrNonPositivePrice  = errors.New("rates: unit price must be positive")
	ErrDiscountAboveUnit = errors.New("rates: discounted price must not exceed unit price")
	ErrNegativeFee       = errors.New("rates: booking fee and deposit must not be negative")
	ErrCurrencyMismatch  = errors.New("rates: all prices must share the table currency")
)

// TierKind is a billing unit: a day, a week or a month.
type TierKind string

const (
	TierDay   TierKind = "day"
	TierWeek  TierKind = "week"
	TierMonth TierKind = "month"
)

// TiersBySize lists tier kinds from the largest unit to the smallest.
var TiersBySize = []TierKind{TierMonth, TierWeek, TierDay}

// UnitDays is the number of days one unit of the tier covers.
func (k TierKind) UnitDays() int {
	switch k {
	case TierMonth:
		return 30
	case TierWeek:
		return 7
	case TierDay:
		return 1
	default:
		return 0
	}
}

// Rank orders tiers by unit size; larger units rank higher.
func (k TierKind) Rank() int {
	switch k {
	case TierMonth:
		return 3
	case TierWeek:
		return 2
	case TierDay:
		return 1
	default:
		return 0
	}
}

func (k TierKind) Valid() bool {
	return k.Rank() > 0
}

// ParseTierKind accepts the canonical names and a few common aliases.
func ParseTierKind(raw string) (TierKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "day", "daily", "night":
		return TierDay, nil
	case "week", "weekly":
		return TierWeek, nil
	case "month", "monthly":
		return TierMonth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, raw)
	}
}

// RateTier is one priced billing unit with an optional discounted price.
type RateTier struct {
	Kind       TierKind
	UnitPrice  money.Money
	Discounted *money.Money
}

// Effective returns the discounted price when set, otherwise the unit price.
func (t RateTier) Effective() money.Money {
	if t.Discounted != nil {
		return *t.Discounted
	}
	return t.UnitPrice
}

// RateTable holds the tiers and fees of one offering: a room or a whole property.
type RateTable struct {
	OfferingID string
	RoomID     string
	Currency   string
	Tiers      []RateTier
	BookingFee money.Money
	Deposit    money.Money
}

// Repository loads rate tables by offering. An empty roomID addresses the whole property.
type Repository interface {
	ByOffering(ctx context.Context, offeringID, roomID string) (*RateTable, error)
}

type CreateParams struct {
	OfferingID string
	RoomID     string
	Currency   string
	Tiers      []RateTier
	BookingFee int64
	Deposit    int64
}

// NewRateTable validates tier invariants. A table without tiers is valid but
// cannot price a stay.
func NewRateTable(params CreateParams) (*RateTable, error) {
	if strings.TrimSpace(params.OfferingID) == "" {
		return nil, ErrOfferingRequired
	}
	if len(params.Tiers) > len(TiersBySize) {
		return nil, ErrTooManyTiers
	}
	if params.BookingFee < 0 || params.Deposit < 0 {
		return nil, ErrNegativeFee
	}
	fee, err := money.New(params.BookingFee, params.Currency)
	if err != nil {
		return nil, err
	}
	deposit := money.Must(params.Deposit, fee.Currency)

	table := &RateTable{
		OfferingID: strings.TrimSpace(params.OfferingID),
		RoomID:     strings.TrimSpace(params.RoomID),
		Currency:   fee.Currency,
		BookingFee: fee,
		Deposit:    deposit,
	}
	seen := make(map[TierKind]struct{}, len(params.Tiers))
	for _, tier := range params.Tiers {
		if !tier.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier.Kind)
		}
		if _, dup := seen[tier.Kind]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTier, tier.Kind)
		}
		seen[tier.Kind] = struct{}{}
		if err := validateTier(tier, table.Currency); err != nil {
			return nil, err
		}
		table.Tiers = append(table.Tiers, copyTier(tier))
	}
	return table, nil
}

func validateTier(tier RateTier, currency string) error {
	if tier.UnitPrice.Currency != currency {
		return fmt.Errorf("%w: %s unit price", ErrCurrencyMismatch, tier.Kind)
	}
	if tier.UnitPrice.Amount <= 0 {
		return fmt.Errorf("%w: %s", ErrNonPositivePrice, tier.Kind)
	}
	if tier.Discounted == nil {
		return nil
	}
	if tier.Discounted.Currency != currency {
		return fmt.Errorf("%w: %s discounted price", ErrCurrencyMismatch, tier.Kind)
	}
	if tier.Discounted.Amount <= 0 {
		return fmt.Errorf("%w: %s discounted", ErrNonPositivePrice, tier.Kind)
	}
	if tier.Discounted.Amount > tier.UnitPrice.Amount {
		return fmt.Errorf("%w: %s", ErrDiscountAboveUnit, tier.Kind)
	}
	return nil
}

func copyTier(t RateTier) RateTier {
	out := RateTier{Kind: t.Kind, UnitPrice: t.UnitPrice}
	if t.Discounted != nil {
		d := *t.Discounted
		out.Discounted = &d
	}
	return out
}

// Tier returns the configured tier of the given kind.
func (t *RateTable) Tier(kind TierKind) (RateTier, bool) {
	for _, tier := range t.Tiers {
		if tier.Kind == kind {
			return tier, true
		}
	}
	return RateTier{}, false
}

// EffectiveUnitPrice returns the discounted price if set, else the standard
// price. The boolean is false when the tier is not configured.
func (t *RateTable) EffectiveUnitPrice(kind TierKind) (money.Money, bool) {
	tier, ok := t.Tier(kind)
	if !ok {
		return money.Money{}, false
	}
	return tier.Effective(), true
}

// HasTiers reports whether at least one tier can price a stay.
func (t *RateTable) HasTiers() bool {
	return len(t.Tiers) > 0
}

// Copy returns a deep copy safe to hand out of a store.
func (t *RateTable) Copy() *RateTable {
	clone := *t
	clone.Tiers = make([]RateTier, len(t.Tiers))
	for i, tier := range t.Tiers {
		clone.Tiers[i] = copyTier(tier)
	}
	return &clone
}
