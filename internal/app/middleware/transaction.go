package middleware

import (
	"context"

	"staypay/internal/app/commands"
	"staypay/internal/app/uow"
)

// ReadOnlyCommand lets a command ask for a read-only transaction.
type ReadOnlyCommand interface {
	ReadOnly() bool
}

// Transaction runs the handler inside a unit of work that is committed on
// success and rolled back on any error or panic. A unit already present in
// the context is reused.
func Transaction(factory uow.UoWFactory) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, ok := uow.FromContext(ctx); ok {
				return next.Dispatch(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if ro, ok := cmd.(ReadOnlyCommand); ok {
				opts.ReadOnly = ro.ReadOnly()
			}
			unit, execCtx, err := uow.Begin(ctx, factory, opts)
			if err != nil {
				return nil, err
			}
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(context.WithoutCancel(execCtx))
				}
			}()

			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, uow.Persistence(err)
			}
			committed = true
			return res, nil
		})
	}
}
