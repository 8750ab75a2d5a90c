package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staypay/internal/app/middleware"
)

type IdempotencyStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s *IdempotencyStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec := middleware.IdempotencyRecord{Key: key}
	err := s.DB.QueryRowContext(ctx, `
	SELECT payload, occurred_at, expires_at FROM idempotency_keys WHERE key = $1 AND expires_at > $2
	`, key, s.now()).Scan(&rec.Payload, &rec.OccurredAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

// Save stores the record and drops expired keys.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO idempotency_keys (key, payload, occurred_at, expires_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (key) DO UPDATE
	SET payload = EXCLUDED.payload, occurred_at = EXCLUDED.occurred_at, expires_at = EXCLUDED.expires_at
	`, rec.Key, rec.Payload, rec.OccurredAt, rec.ExpiresAt)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, s.now())
	return err
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
