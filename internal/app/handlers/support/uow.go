package support

import (
	"context"
	"errors"

	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainrates "staypay/internal/domain/rates"
)

// BeginReadOnlyUnit reuses the unit found in ctx or opens a read-only one.
// The returned cleanup is nil when the unit was reused.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	unit, execCtx, err := uow.Begin(ctx, factory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	cleanup := func() {
		_ = unit.Rollback(context.WithoutCancel(execCtx))
	}
	return unit, execCtx, cleanup, nil
}

// RunInUnit runs fn inside the unit found in ctx. Without one, fn gets a new
// unit that is committed when fn succeeds and rolled back otherwise.
func RunInUnit(ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) error) error {
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	unit, execCtx, err := uow.Begin(ctx, factory, uow.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(execCtx, unit); err != nil {
		_ = unit.Rollback(context.WithoutCancel(execCtx))
		return err
	}
	return uow.Persistence(unit.Commit(execCtx))
}

// Storage marks repository failures as persistence failures. Lookups that
// found nothing and version conflicts are domain outcomes and pass through.
func Storage(err error) error {
	switch {
	case err == nil,
		errors.Is(err, domainrates.ErrOfferingNotFound),
		errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainbooking.ErrConcurrentUpdate):
		return err
	}
	return uow.Persistence(err)
}
