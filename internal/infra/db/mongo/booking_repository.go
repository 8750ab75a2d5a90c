package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staypay/internal/domain/booking"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
)

// BookingRepository stores the booking header in agg_booking and its
// milestones as separate rows in booking_milestones. Both collections are
// written in the session transaction carried by ctx.
type BookingRepository struct {
	col        *mongo.Collection
	milestones *mongo.Collection
}

func NewBookingRepository(ctx context.Context, db *mongo.Database) (*BookingRepository, error) {
	milestones := db.Collection("booking_milestones")
	_, err := milestones.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "booking_id", Value: 1}, {Key: "sequence", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &BookingRepository{col: db.Collection("agg_booking"), milestones: milestones}, nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", domainbooking.ErrBookingNotFound, id)
		}
		return nil, err
	}
	cur, err := r.milestones.Find(ctx, bson.M{"booking_id": string(id)}, options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var rows []milestoneDocument
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return doc.toAggregate(rows), nil
}

// Save upserts the header guarded by its version and replaces every
// milestone row of the booking.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: booking %s", domainbooking.ErrConcurrentUpdate, b.ID)
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return fmt.Errorf("%w: booking %s", domainbooking.ErrConcurrentUpdate, b.ID)
	}
	if _, err := r.milestones.DeleteMany(ctx, bson.M{"booking_id": doc.ID}); err != nil {
		return err
	}
	if len(b.Milestones) > 0 {
		rows := make([]any, len(b.Milestones))
		for i, m := range b.Milestones {
			rows[i] = newMilestoneDocument(b.ID, m)
		}
		if _, err := r.milestones.InsertMany(ctx, rows); err != nil {
			return err
		}
	}
	b.Version = doc.Version
	return nil
}

type bookingDocument struct {
	ID               string              `bson:"_id"`
	OfferingID       string              `bson:"offering_id"`
	RoomID           string              `bson:"room_id,omitempty"`
	GuestID          string              `bson:"guest_id"`
	Phone            string              `bson:"phone,omitempty"`
	PaymentMethod    string              `bson:"payment_method,omitempty"`
	PaymentOption    string              `bson:"payment_option"`
	Range            rangeDocument       `bson:"range"`
	Calculation      calculationDocument `bson:"calculation"`
	UpfrontAmountDue moneyDocument       `bson:"upfront_amount_due"`
	CreatedAt        int64               `bson:"created_at"`
	UpdatedAt        int64               `bson:"updated_at"`
	Version          int64               `bson:"version"`
}

type rangeDocument struct {
	From int64 `bson:"from"`
	To   int64 `bson:"to"`
}

type milestoneDocument struct {
	BookingID  string        `bson:"booking_id"`
	Sequence   int           `bson:"sequence"`
	DueDate    int64         `bson:"due_date"`
	Amount     moneyDocument `bson:"amount"`
	Status     string        `bson:"status"`
	PaidAt     int64         `bson:"paid_at,omitempty"`
	PaymentRef string        `bson:"payment_ref,omitempty"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:               string(b.ID),
		OfferingID:       b.OfferingID,
		RoomID:           b.RoomID,
		GuestID:          b.GuestID,
		Phone:            b.Phone,
		PaymentMethod:    b.PaymentMethod,
		PaymentOption:    string(b.PaymentOption),
		Range:            rangeDocument{From: b.Range.From.UnixMilli(), To: b.Range.To.UnixMilli()},
		Calculation:      newCalculationDocument(b.Calculation),
		UpfrontAmountDue: newMoneyDocument(b.UpfrontAmountDue),
		CreatedAt:        timeToTimestamp(b.CreatedAt),
		UpdatedAt:        timeToTimestamp(b.UpdatedAt),
		Version:          b.Version,
	}
}

func newMilestoneDocument(id domainbooking.BookingID, m schedule.Milestone) milestoneDocument {
	return milestoneDocument{
		BookingID:  string(id),
		Sequence:   m.Sequence,
		DueDate:    m.DueDate.UnixMilli(),
		Amount:     newMoneyDocument(m.Amount),
		Status:     string(m.Status),
		PaidAt:     timeToTimestamp(m.PaidAt),
		PaymentRef: m.PaymentRef,
	}
}

func (d bookingDocument) toAggregate(rows []milestoneDocument) *domainbooking.Booking {
	agg := &domainbooking.Booking{
		ID:               domainbooking.BookingID(d.ID),
		OfferingID:       d.OfferingID,
		RoomID:           d.RoomID,
		GuestID:          d.GuestID,
		Phone:            d.Phone,
		PaymentMethod:    d.PaymentMethod,
		PaymentOption:    schedule.PaymentOption(d.PaymentOption),
		Range:            daterange.DateRange{From: timestampToTime(d.Range.From), To: timestampToTime(d.Range.To)},
		Calculation:      d.Calculation.toCalculation(),
		UpfrontAmountDue: d.UpfrontAmountDue.toMoney(),
		CreatedAt:        timestampToTime(d.CreatedAt),
		UpdatedAt:        timestampToTime(d.UpdatedAt),
		Version:          d.Version,
	}
	for _, row := range rows {
		agg.Milestones = append(agg.Milestones, schedule.Milestone{
			Sequence:   row.Sequence,
			DueDate:    timestampToTime(row.DueDate),
			Amount:     row.Amount.toMoney(),
			Status:     schedule.Status(row.Status),
			PaidAt:     timestampToTime(row.PaidAt),
			PaymentRef: row.PaymentRef,
		})
	}
	return agg
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
