package dto

import (
	"staypay/internal/domain/pricing"
	"staypay/internal/domain/shared/daterange"
)

type BreakdownLine struct {
	Tier        string `json:"tier"`
	Description string `json:"description"`
	Units       int    `json:"units"`
	UnitPrice   string `json:"unit_price"`
	Discounted  bool   `json:"discounted,omitempty"`
	Note        string `json:"note,omitempty"`
	Total       string `json:"total"`
}

// Quote is the priced breakdown of a stay as shown before booking.
type Quote struct {
	OfferingID   string          `json:"offering_id"`
	RoomID       string          `json:"room_id,omitempty"`
	FromDate     string          `json:"from_date"`
	ToDate       string          `json:"to_date"`
	PriceType    string          `json:"price_type"`
	NumberOfDays int             `json:"number_of_days"`
	Breakdown    []BreakdownLine `json:"breakdown"`
	Total        string          `json:"total"`
	BookingFee   string          `json:"booking_fee"`
	Deposit      string          `json:"deposit"`
	Currency     string          `json:"currency"`
}

func MapQuote(offeringID, roomID string, dr daterange.DateRange, calc pricing.Calculation) Quote {
	q := Quote{
		OfferingID:   offeringID,
		RoomID:       roomID,
		FromDate:     FormatDate(dr.From),
		ToDate:       FormatDate(dr.To),
		PriceType:    string(calc.DominantTier),
		NumberOfDays: calc.DurationDays,
		Breakdown:    make([]BreakdownLine, 0, len(calc.Lines)),
		Total:        FormatAmount(calc.Subtotal),
		BookingFee:   FormatAmount(calc.BookingFee),
		Deposit:      FormatAmount(calc.Deposit),
		Currency:     calc.Subtotal.Currency,
	}
	for _, l := range calc.Lines {
		q.Breakdown = append(q.Breakdown, BreakdownLine{
			Tier:        string(l.Tier),
			Description: l.Description(),
			Units:       l.Units,
			UnitPrice:   FormatAmount(l.UnitPrice),
			Discounted:  l.Discounted,
			Note:        l.Note,
			Total:       FormatAmount(l.Total),
		})
	}
	return q
}
