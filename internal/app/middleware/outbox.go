package middleware

import (
	"context"

	"staypay/internal/app/commands"
	"staypay/internal/app/outbox"
)

// OutboxNotify wakes the outbox relay once a command has committed. It must
// sit outside Transaction so that the records are visible to the relay.
func OutboxNotify(n outbox.Notifier) CommandMiddleware {
	if n == nil {
		panic("middleware: outbox notifier required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			n.Notify()
			return res, nil
		})
	}
}
