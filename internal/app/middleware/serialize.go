package middleware

import (
	"context"
	"time"

	"staypay/internal/app/commands"
	"staypay/internal/app/policies"
)

// LockedCommand names the resource a command mutates. Commands returning an
// empty key run unlocked.
type LockedCommand interface {
	LockKey() string
}

// Serialize holds a lock on the command's resource for the whole dispatch,
// including commit. It must sit outside Transaction.
func Serialize(locker policies.BookingLocker, ttl time.Duration) CommandMiddleware {
	if locker == nil {
		panic("middleware: booking locker required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			lc, ok := cmd.(LockedCommand)
			if !ok || lc.LockKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			release, err := locker.Acquire(ctx, lc.LockKey(), ttl)
			if err != nil {
				return nil, err
			}
			defer func() {
				_ = release(context.WithoutCancel(ctx))
			}()
			return next.Dispatch(ctx, cmd)
		})
	}
}
