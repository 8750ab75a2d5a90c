package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"staypay/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stores encoded events in the same transaction as the aggregate.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// Notifier is told after a commit that new records are waiting, so the relay
// does not have to wait for its next poll.
type Notifier interface {
	Notify()
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{"aggregate-id": ev.AggregateID()},
	}, nil
}

// RecordDomainEvents encodes evs into box. A request id found in ctx is
// propagated as a header.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	requestID := RequestIDFromContext(ctx)
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if requestID != "" {
			if rec.Headers == nil {
				rec.Headers = map[string]string{}
			}
			rec.Headers["request-id"] = requestID
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

type requestIDKey struct{}

// WithRequestID stores the correlation id transports received with a request.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
