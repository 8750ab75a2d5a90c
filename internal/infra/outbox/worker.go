package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// LogProducer drains the outbox into the log when no broker is configured.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, _ map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "outbox event discarded", "topic", topic, "key", key, "bytes", len(payload))
	return nil
}

// Worker relays outbox records to the broker as CloudEvents. Delivery is at
// least once; consumers dedupe on the CloudEvent id.
type Worker struct {
	Source      Source
	Producer    Producer
	Wake        *Signal
	Interval    time.Duration
	TopicPrefix string
	SourceURI   string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Source == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.Wake.C():
		}
		if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger().Error("outbox relay failed", "worker", w.ID, "error", err)
		}
	}
}

// Drain publishes due records until none is left or a storage error occurs.
// Publish failures are rescheduled and do not stop the drain.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		env, err := w.Source.Claim(ctx, w.ID)
		if err != nil || env == nil {
			return err
		}
		if err := w.publish(ctx, env); err != nil {
			w.logger().Warn("outbox publish failed", "event_id", env.ID, "event", env.Name, "attempts", env.Attempts+1, "error", err)
			if markErr := w.Source.MarkFailed(ctx, env.ID, w.nextRetry(env.Attempts), err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		if err := w.Source.MarkSent(ctx, env.ID); err != nil {
			return err
		}
		w.logger().Debug("outbox event published", "event_id", env.ID, "event", env.Name)
	}
}

func (w *Worker) publish(ctx context.Context, env *Envelope) error {
	payload, headers, err := w.formatPayload(env)
	if err != nil {
		return err
	}
	return w.Producer.Publish(ctx, w.topicFor(env.Name), env.Aggregate, payload, headers)
}

func (w *Worker) formatPayload(env *Envelope) ([]byte, map[string]string, error) {
	var data json.RawMessage = env.Payload
	if !json.Valid(data) {
		return nil, nil, errors.New("outbox: payload is not valid json")
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              env.ID,
		"type":            env.Name + ".v1",
		"source":          w.sourceURI(),
		"subject":         env.Aggregate,
		"time":            env.OccurredAt.UTC().Format(time.RFC3339Nano),
		"datacontenttype": "application/json",
		"data":            data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_id":        env.ID,
		"ce_type":      env.Name + ".v1",
	}
	for k, v := range env.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return w.TopicPrefix + base + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	switch {
	case attempts < len(w.Backoff):
		return w.now().Add(w.Backoff[attempts])
	case len(w.Backoff) > 0:
		return w.now().Add(w.Backoff[len(w.Backoff)-1])
	default:
		return w.now().Add(5 * time.Second)
	}
}

func (w *Worker) sourceURI() string {
	if w.SourceURI != "" {
		return w.SourceURI
	}
	return "app://staypay"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
