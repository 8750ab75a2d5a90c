package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appoutbox "staypay/internal/app/outbox"
	infraoutbox "staypay/internal/infra/outbox"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	state       string
	attempts    int
	nextAttempt time.Time
	lastError   string
}

// Outbox is the committed outbox of the memory driver. Units append to it on
// commit; the relay worker claims from it.
type Outbox struct {
	mu      sync.Mutex
	entries map[string]*outboxEntry
	seq     []string
}

func NewOutbox() *Outbox {
	return &Outbox{entries: make(map[string]*outboxEntry)}
}

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, rec := range records {
		if _, dup := o.entries[rec.ID]; dup {
			continue
		}
		o.entries[rec.ID] = &outboxEntry{record: rec, state: infraoutbox.StateNew, nextAttempt: now}
		o.seq = append(o.seq, rec.ID)
	}
}

func (o *Outbox) Claim(_ context.Context, _ string) (*infraoutbox.Envelope, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range o.seq {
		e := o.entries[id]
		if e.state != infraoutbox.StateNew && e.state != infraoutbox.StateFailed {
			continue
		}
		if e.nextAttempt.After(now) {
			continue
		}
		e.state = infraoutbox.StateClaimed
		return &infraoutbox.Envelope{
			ID:         e.record.ID,
			Name:       e.record.Name,
			Payload:    append([]byte(nil), e.record.Payload...),
			OccurredAt: e.record.OccurredAt,
			Aggregate:  e.record.Aggregate,
			Headers:    copyHeaders(e.record.Headers),
			Attempts:   e.attempts,
		}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[id]; ok {
		e.state = infraoutbox.StateSent
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[id]; ok {
		e.state = infraoutbox.StateFailed
		e.attempts++
		e.nextAttempt = next
		e.lastError = errMsg
	}
	return nil
}

// Records returns the committed records in commit order, optionally filtered
// by state.
func (o *Outbox) Records(states ...string) []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	want := make(map[string]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	out := make([]appoutbox.EventRecord, 0, len(o.seq))
	for _, id := range o.seq {
		e := o.entries[id]
		if len(want) > 0 && !want[e.state] {
			continue
		}
		out = append(out, e.record)
	}
	return out
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = in[k]
	}
	return out
}

var _ infraoutbox.Source = (*Outbox)(nil)
