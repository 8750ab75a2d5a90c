package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainrates "staypay/internal/domain/rates"
)

type RateTableRepository struct {
	col *mongo.Collection
}

func NewRateTableRepository(db *mongo.Database) *RateTableRepository {
	return &RateTableRepository{col: db.Collection("rate_tables")}
}

func rateTableID(offeringID, roomID string) string {
	return strings.TrimSpace(offeringID) + "|" + strings.TrimSpace(roomID)
}

func (r *RateTableRepository) ByOffering(ctx context.Context, offeringID, roomID string) (*domainrates.RateTable, error) {
	var doc rateTableDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": rateTableID(offeringID, roomID)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainrates.ErrOfferingNotFound, rateTableID(offeringID, roomID))
		}
		return nil, err
	}
	return doc.toTable(), nil
}

// UpsertRateTable replaces the table of an offering.
func (r *RateTableRepository) UpsertRateTable(ctx context.Context, table *domainrates.RateTable) error {
	doc := newRateTableDocument(table)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type rateTableDocument struct {
	ID         string         `bson:"_id"`
	OfferingID string         `bson:"offering_id"`
	RoomID     string         `bson:"room_id,omitempty"`
	Currency   string         `bson:"currency"`
	Tiers      []tierDocument `bson:"tiers"`
	BookingFee int64          `bson:"booking_fee"`
	Deposit    int64          `bson:"deposit"`
}

type tierDocument struct {
	Kind       string `bson:"kind"`
	UnitPrice  int64  `bson:"unit_price"`
	Discounted *int64 `bson:"discounted,omitempty"`
}

func newRateTableDocument(t *domainrates.RateTable) rateTableDocument {
	doc := rateTableDocument{
		ID:         rateTableID(t.OfferingID, t.RoomID),
		OfferingID: t.OfferingID,
		RoomID:     t.RoomID,
		Currency:   t.Currency,
		BookingFee: t.BookingFee.Amount,
		Deposit:    t.Deposit.Amount,
	}
	for _, tier := range t.Tiers {
		td := tierDocument{Kind: string(tier.Kind), UnitPrice: tier.UnitPrice.Amount}
		if tier.Discounted != nil {
			amount := tier.Discounted.Amount
			td.Discounted = &amount
		}
		doc.Tiers = append(doc.Tiers, td)
	}
	return doc
}

func (d rateTableDocument) toTable() *domainrates.RateTable {
	table := &domainrates.RateTable{
		OfferingID: d.OfferingID,
		RoomID:     d.RoomID,
		Currency:   d.Currency,
		BookingFee: moneyDocument{Amount: d.BookingFee, Currency: d.Currency}.toMoney(),
		Deposit:    moneyDocument{Amount: d.Deposit, Currency: d.Currency}.toMoney(),
	}
	for _, td := range d.Tiers {
		tier := domainrates.RateTier{
			Kind:      domainrates.TierKind(td.Kind),
			UnitPrice: moneyDocument{Amount: td.UnitPrice, Currency: d.Currency}.toMoney(),
		}
		if td.Discounted != nil {
			disc := moneyDocument{Amount: *td.Discounted, Currency: d.Currency}.toMoney()
			tier.Discounted = &disc
		}
		table.Tiers = append(table.Tiers, tier)
	}
	return table
}

var _ domainrates.Repository = (*RateTableRepository)(nil)
