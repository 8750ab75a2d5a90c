package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"staypay/internal/app/policies"
)

// Locker is the single-process BookingLocker. Like the Redis locker it never
// waits: a held key fails fast with ErrLockNotAcquired.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	now   func() time.Time
	count uint64
}

type lease struct {
	token   uint64
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]lease), now: time.Now}
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (policies.Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && cur.expires.After(now) {
		return nil, fmt.Errorf("%w: %s", policies.ErrLockNotAcquired, key)
	}
	l.count++
	token := l.count
	l.held[key] = lease{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

var _ policies.BookingLocker = (*Locker)(nil)
