package mongo

import (
	"time"

	domainpricing "staypay/internal/domain/pricing"
	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type lineDocument struct {
	Tier       string        `bson:"tier"`
	Units      int           `bson:"units"`
	UnitPrice  moneyDocument `bson:"unit_price"`
	Total      moneyDocument `bson:"total"`
	Discounted bool          `bson:"discounted"`
	Note       string        `bson:"note,omitempty"`
}

type calculationDocument struct {
	Lines        []lineDocument `bson:"lines"`
	Subtotal     moneyDocument  `bson:"subtotal"`
	BookingFee   moneyDocument  `bson:"booking_fee"`
	Deposit      moneyDocument  `bson:"deposit"`
	DurationDays int            `bson:"duration_days"`
	DominantTier string         `bson:"dominant_tier"`
}

func newCalculationDocument(c domainpricing.Calculation) calculationDocument {
	doc := calculationDocument{
		Subtotal:     newMoneyDocument(c.Subtotal),
		BookingFee:   newMoneyDocument(c.BookingFee),
		Deposit:      newMoneyDocument(c.Deposit),
		DurationDays: c.DurationDays,
		DominantTier: string(c.DominantTier),
	}
	for _, l := range c.Lines {
		doc.Lines = append(doc.Lines, lineDocument{
			Tier:       string(l.Tier),
			Units:      l.Units,
			UnitPrice:  newMoneyDocument(l.UnitPrice),
			Total:      newMoneyDocument(l.Total),
			Discounted: l.Discounted,
			Note:       l.Note,
		})
	}
	return doc
}

func (d calculationDocument) toCalculation() domainpricing.Calculation {
	calc := domainpricing.Calculation{
		Subtotal:     d.Subtotal.toMoney(),
		BookingFee:   d.BookingFee.toMoney(),
		Deposit:      d.Deposit.toMoney(),
		DurationDays: d.DurationDays,
		DominantTier: domainrates.TierKind(d.DominantTier),
	}
	for _, l := range d.Lines {
		calc.Lines = append(calc.Lines, domainpricing.Line{
			Tier:       domainrates.TierKind(l.Tier),
			Units:      l.Units,
			UnitPrice:  l.UnitPrice.toMoney(),
			Total:      l.Total.toMoney(),
			Discounted: l.Discounted,
			Note:       l.Note,
		})
	}
	return calc
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
