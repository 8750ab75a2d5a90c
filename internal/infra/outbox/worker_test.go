package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	"staypay/internal/infra/outbox"
	"staypay/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	mu       sync.Mutex
	fail     error
	messages []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func (p *fakeProducer) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

func commitRecords(t *testing.T, store *memory.Store, records ...appoutbox.EventRecord) {
	t.Helper()
	ctx := context.Background()
	unit, err := memory.Factory{Store: store}.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, unit.Outbox().Add(ctx, rec))
	}
	require.NoError(t, unit.Commit(ctx))
}

var occurred = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func record(id, name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"bk-1"}`),
		OccurredAt: occurred,
		Aggregate:  "bk-1",
		Headers:    map[string]string{"aggregate-id": "bk-1", "request-id": "req-7"},
	}
}

func newWorker(store *memory.Store, producer outbox.Producer) *outbox.Worker {
	return &outbox.Worker{
		Source:      store.Outbox(),
		Producer:    producer,
		TopicPrefix: "dev.",
		SourceURI:   "app://staypay-test",
		ID:          "worker-1",
		Backoff:     []time.Duration{time.Second, time.Minute},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDrain_PublishesCloudEvents(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("ev-1", "booking.confirmed"), record("ev-2", "booking.milestone_paid"))
	producer := &fakeProducer{}

	require.NoError(t, newWorker(store, producer).Drain(context.Background()))

	msgs := producer.sent()
	require.Len(t, msgs, 2)
	first := msgs[0]
	assert.Equal(t, "dev.booking.events.v1", first.topic)
	assert.Equal(t, "bk-1", first.key)
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])
	assert.Equal(t, "ev-1", first.headers["ce_id"])
	assert.Equal(t, "req-7", first.headers["request-id"])

	var evt map[string]any
	require.NoError(t, json.Unmarshal(first.payload, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "ev-1", evt["id"])
	assert.Equal(t, "booking.confirmed.v1", evt["type"])
	assert.Equal(t, "app://staypay-test", evt["source"])
	assert.Equal(t, "bk-1", evt["subject"])
	assert.Equal(t, "2026-01-10T12:00:00Z", evt["time"])
	assert.Equal(t, map[string]any{"booking_id": "bk-1"}, evt["data"])

	assert.Equal(t, "booking.milestone_paid.v1", msgs[1].headers["ce_type"])
	assert.Len(t, store.Outbox().Records(outbox.StateSent), 2)
}

func TestDrain_ReschedulesFailedPublishes(t *testing.T) {
	store := memory.NewStore()
	commitRecords(t, store, record("ev-1", "booking.confirmed"))
	producer := &fakeProducer{fail: errors.New("broker unavailable")}
	worker := newWorker(store, producer)

	require.NoError(t, worker.Drain(context.Background()))
	assert.Len(t, store.Outbox().Records(outbox.StateFailed), 1)

	// The retry is not due yet, so the next drain publishes nothing.
	producer.fail = nil
	require.NoError(t, worker.Drain(context.Background()))
	assert.Empty(t, producer.sent())

	commitRecords(t, store, record("ev-2", "booking.revised"))
	require.NoError(t, worker.Drain(context.Background()))
	require.Len(t, producer.sent(), 1)
	assert.Equal(t, "ev-2", producer.sent()[0].headers["ce_id"])
}

func TestDrain_RejectsInvalidPayload(t *testing.T) {
	store := memory.NewStore()
	bad := record("ev-1", "booking.confirmed")
	bad.Payload = []byte("not json")
	commitRecords(t, store, bad)
	producer := &fakeProducer{}

	require.NoError(t, newWorker(store, producer).Drain(context.Background()))
	assert.Empty(t, producer.sent())
	assert.Len(t, store.Outbox().Records(outbox.StateFailed), 1)
}

func TestRun_WakesOnSignal(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{}
	worker := newWorker(store, producer)
	worker.Interval = time.Hour
	worker.Wake = outbox.NewSignal()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	commitRecords(t, store, record("ev-1", "booking.confirmed"))
	worker.Wake.Notify()
	require.Eventually(t, func() bool { return len(producer.sent()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_RequiresDependencies(t *testing.T) {
	err := (&outbox.Worker{}).Run(context.Background())
	assert.ErrorIs(t, err, outbox.ErrWorkerNotConfigured)
}
