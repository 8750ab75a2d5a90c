package pricing

import (
	"errors"
	"fmt"

	"staypay/internal/domain/rates"
	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

var (
	ErrNoApplicableTier = errors.New("pricing: offering has no usable rate")
	ErrMissingRateTable = errors.New("pricing: rate table is required")
)

// Line is one priced component of a stay, for example "3 months".
type Line struct {
	Tier       rates.TierKind
	Units      int
	UnitPrice  money.Money
	Total      money.Money
	Discounted bool
	Note       string
}

// Description renders the line the way the booking review screen shows it.
func (l Line) Description() string {
	unit := string(l.Tier)
	if l.Units != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", l.Units, unit)
}

// Calculation is the priced breakdown of a stay. Subtotal always equals the
// sum of the line totals; the booking fee and deposit are carried alongside.
type Calculation struct {
	Lines        []Line
	Subtotal     money.Money
	BookingFee   money.Money
	Deposit      money.Money
	DurationDays int
	DominantTier rates.TierKind
}

// Line returns the breakdown line of the given tier.
func (c Calculation) Line(kind rates.TierKind) (Line, bool) {
	for _, l := range c.Lines {
		if l.Tier == kind {
			return l, true
		}
	}
	return Line{}, false
}

// DominantUnits is the number of billed units of the dominant tier.
func (c Calculation) DominantUnits() int {
	l, ok := c.Line(c.DominantTier)
	if !ok {
		return 0
	}
	return l.Units
}

// Copy returns a calculation that shares no slices with the receiver.
func (c Calculation) Copy() Calculation {
	clone := c
	clone.Lines = append([]Line(nil), c.Lines...)
	return clone
}

// Decompose prices a stay by consuming whole months, then weeks, then days.
// Only configured tiers participate. Days left over after the largest tiers are
// billed as Day units; without a Day tier the leftover is rounded up into one
// extra unit of the smallest configured tier and the line carries a note.
func Decompose(table *rates.RateTable, dr daterange.DateRange) (Calculation, error) {
	if table == nil {
		return Calculation{}, ErrMissingRateTable
	}
	if err := dr.Validate(); err != nil {
		return Calculation{}, err
	}
	days := dr.Days()
	if days <= 0 {
		return Calculation{}, daterange.ErrInvalidRange
	}
	if !table.HasTiers() {
		return Calculation{}, ErrNoApplicableTier
	}

	counts := make(map[rates.TierKind]int, len(rates.TiersBySize))
	var smallest rates.TierKind
	remaining := days
	for _, kind := range rates.TiersBySize {
		if _, ok := table.Tier(kind); !ok {
			continue
		}
		smallest = kind
		size := kind.UnitDays()
		counts[kind] = remaining / size
		remaining -= counts[kind] * size
	}

	notes := make(map[rates.TierKind]string)
	if remaining > 0 {
		// Only reachable without a Day tier: remaining is below the smallest unit.
		size := smallest.UnitDays()
		extra := (remaining + size - 1) / size
		counts[smallest] += extra
		notes[smallest] = fmt.Sprintf("%d remaining day(s) rounded up to %d extra %s", remaining, extra, smallest)
	}

	calc := Calculation{
		BookingFee:   table.BookingFee,
		Deposit:      table.Deposit,
		DurationDays: days,
	}
	totals := make([]money.Money, 0, len(counts))
	for _, kind := range rates.TiersBySize {
		units := counts[kind]
		if units <= 0 {
			continue
		}
		tier, _ := table.Tier(kind)
		price := tier.Effective()
		line := Line{
			Tier:       kind,
			Units:      units,
			UnitPrice:  price,
			Total:      price.Multiply(int64(units)),
			Discounted: tier.Discounted != nil,
			Note:       notes[kind],
		}
		calc.Lines = append(calc.Lines, line)
		totals = append(totals, line.Total)
	}

	subtotal, err := money.Sum(table.Currency, totals...)
	if err != nil {
		return Calculation{}, err
	}
	calc.Subtotal = subtotal
	calc.DominantTier = dominantTier(calc.Lines)
	return calc, nil
}

// dominantTier picks the tier with the largest share of the subtotal; ties go
// to the larger unit. Lines arrive ordered Month, Week, Day.
func dominantTier(lines []Line) rates.TierKind {
	var best Line
	found := false
	for _, l := range lines {
		if !found || l.Total.Amount > best.Total.Amount ||
			(l.Total.Amount == best.Total.Amount && l.Tier.Rank() > best.Tier.Rank()) {
			best = l
			found = true
		}
	}
	return best.Tier
}
