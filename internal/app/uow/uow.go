package uow

import (
	"context"
	"errors"
	"fmt"

	appoutbox "staypay/internal/app/outbox"
	domainbooking "staypay/internal/domain/booking"
	domainrates "staypay/internal/domain/rates"
)

// ErrPersistence marks failures of the storage layer itself: begin, load,
// save or commit. Work inside a failed unit is rolled back.
var ErrPersistence = errors.New("uow: persistence failure")

// Inbox records consumed external events so that re-deliveries are skipped.
type Inbox interface {
	// Seen marks eventID as consumed and reports whether it already was.
	Seen(ctx context.Context, eventID string) (bool, error)
}

// UnitOfWork coordinates repositories inside one transaction boundary.
type UnitOfWork interface {
	RateTables() domainrates.Repository
	Bookings() domainbooking.Repository
	Outbox() appoutbox.Outbox
	Inbox() Inbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// Persistence wraps err with ErrPersistence unless it is nil or already marked.
func Persistence(err error) error {
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
