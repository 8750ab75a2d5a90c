package policies

import (
	"context"
	"errors"
	"time"
)

var ErrLockNotAcquired = errors.New("policies: booking is locked by another request")

// Release gives a lock back. Releasing an expired lock is not an error.
type Release func(ctx context.Context) error

// BookingLocker serialises writers of the same booking across processes.
type BookingLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}
