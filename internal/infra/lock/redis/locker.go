package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"staypay/internal/app/policies"
)

const keyPrefix = "staypay:lock:"

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired lease never releases a newer holder's lock.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Locker implements BookingLocker with SET NX PX leases.
type Locker struct {
	client   goredis.Cmdable
	newToken func() string
}

func NewLocker(client goredis.Cmdable) *Locker {
	return &Locker{client: client, newToken: uuid.NewString}
}

// WithTokens replaces the lease token generator.
func (l *Locker) WithTokens(fn func() string) *Locker {
	l.newToken = fn
	return l
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (policies.Release, error) {
	token := l.newToken()
	redisKey := keyPrefix + key
	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", policies.ErrLockNotAcquired, key)
	}
	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err(); err != nil && err != goredis.Nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		return nil
	}, nil
}

// Ping reports whether the Redis server answers.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ policies.BookingLocker = (*Locker)(nil)
