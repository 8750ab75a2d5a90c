package pricing

import (
	"context"
	"strings"

	"staypay/internal/app/dto"
	"staypay/internal/app/handlers/support"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainpricing "staypay/internal/domain/pricing"
	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/shared/daterange"
)

const quoteKey = "pricing.quote"

// QuoteQuery prices a stay without persisting anything.
type QuoteQuery struct {
	OfferingID string
	RoomID     string
	FromDate   string
	ToDate     string
}

func (QuoteQuery) Key() string { return quoteKey }

func (q QuoteQuery) Validate() error {
	if strings.TrimSpace(q.OfferingID) == "" {
		return domainrates.ErrOfferingRequired
	}
	return nil
}

type QuoteHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (*dto.Quote, error) {
	dr, err := daterange.Parse(q.FromDate, q.ToDate)
	if err != nil {
		return nil, err
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	table, err := unit.RateTables().ByOffering(ctx, q.OfferingID, q.RoomID)
	if err != nil {
		return nil, support.Storage(err)
	}
	calc, err := domainpricing.Decompose(table, dr)
	if err != nil {
		return nil, err
	}
	quote := dto.MapQuote(table.OfferingID, table.RoomID, dr, calc)
	return &quote, nil
}

var _ queries.Handler[QuoteQuery, *dto.Quote] = (*QuoteHandler)(nil)
