package outbox

import (
	"context"
	"time"
)

// Envelope is an outbox record claimed for publishing.
type Envelope struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Source is the relay side of an outbox: records are claimed one at a time and
// then marked sent or failed with the time of the next attempt.
type Source interface {
	Claim(ctx context.Context, workerID string) (*Envelope, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// Signal wakes the worker between polls. Notify never blocks.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

func (s *Signal) Notify() {
	if s == nil {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Signal) C() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.ch
}
