package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	appoutbox "staypay/internal/app/outbox"
	infraoutbox "staypay/internal/infra/outbox"
)

type outboxWriter struct {
	q querier
}

func (w *outboxWriter) Add(ctx context.Context, rec appoutbox.EventRecord) error {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = w.q.ExecContext(ctx, `
	INSERT INTO outbox_events (id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.Name, rec.Payload, rec.OccurredAt, rec.Aggregate, headers, infraoutbox.StateNew, now, now)
	return err
}

// OutboxSource is the relay side of outbox_events. Concurrent relays skip
// rows another relay has locked.
type OutboxSource struct {
	DB       *sql.DB
	ClaimTTL time.Duration
}

func (s *OutboxSource) Claim(ctx context.Context, workerID string) (*infraoutbox.Envelope, error) {
	ttl := s.ClaimTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := time.Now().UTC()
	var (
		env     infraoutbox.Envelope
		headers []byte
	)
	err := s.DB.QueryRowContext(ctx, `
	UPDATE outbox_events SET state = $1, claimed_by = $2, claimed_at = $3
	WHERE id = (
		SELECT id FROM outbox_events
		WHERE (state IN ($4, $5) AND next_attempt_at <= $3)
			OR (state = $1 AND claimed_at <= $6)
		ORDER BY next_attempt_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, name, payload, occurred_at, aggregate, headers, attempts
	`, infraoutbox.StateClaimed, workerID, now, infraoutbox.StateNew, infraoutbox.StateFailed, now.Add(-ttl)).Scan(
		&env.ID, &env.Name, &env.Payload, &env.OccurredAt, &env.Aggregate, &headers, &env.Attempts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(headers, &env.Headers); err != nil {
		return nil, err
	}
	env.OccurredAt = env.OccurredAt.UTC()
	return &env, nil
}

func (s *OutboxSource) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE outbox_events SET state = $2, sent_at = $3 WHERE id = $1`,
		id, infraoutbox.StateSent, time.Now().UTC())
	return err
}

func (s *OutboxSource) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `
	UPDATE outbox_events SET state = $2, next_attempt_at = $3, last_error = $4, attempts = attempts + 1
	WHERE id = $1
	`, id, infraoutbox.StateFailed, next, errMsg)
	return err
}

type inboxMarker struct {
	q        querier
	consumer string
}

// Seen marks eventID as processed and reports whether it already was.
func (m *inboxMarker) Seen(ctx context.Context, eventID string) (bool, error) {
	res, err := m.q.ExecContext(ctx, `
	INSERT INTO inbox_events (event_id, consumer, received_at) VALUES ($1, $2, $3)
	ON CONFLICT DO NOTHING
	`, eventID, m.consumer, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

var _ infraoutbox.Source = (*OutboxSource)(nil)
