package inbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store remembers the broker events a consumer has already applied. The mark
// joins the session transaction in ctx, so it commits with the effect.
type Store struct {
	col      *mongo.Collection
	consumer string
}

func NewStore(ctx context.Context, db *mongo.Database, consumer string) (*Store, error) {
	col := db.Collection("app_inbox")
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &Store{col: col, consumer: consumer}, nil
}

// Seen reports whether eventID was already processed and marks it otherwise.
// A write error aborts a Mongo transaction, so the lookup runs first; the
// unique index still catches a concurrent delivery at commit.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	filter := bson.M{"event_id": eventID, "consumer": s.consumer}
	err := s.col.FindOne(ctx, filter).Err()
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return false, err
	}
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}
