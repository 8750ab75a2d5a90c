package postgres

import (
	"context"
	"database/sql"
	"errors"

	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainrates "staypay/internal/domain/rates"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory opens one database/sql transaction per unit of work. Every
// repository of a unit runs its statements on that transaction.
type Factory struct {
	DB       *sql.DB
	Consumer string
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx, consumer: f.Consumer}, nil
}

type Unit struct {
	tx       *sql.Tx
	consumer string
}

func (u *Unit) RateTables() domainrates.Repository { return &RateTableRepository{q: u.tx} }
func (u *Unit) Bookings() domainbooking.Repository { return &BookingRepository{q: u.tx} }
func (u *Unit) Outbox() appoutbox.Outbox           { return &outboxWriter{q: u.tx} }
func (u *Unit) Inbox() uow.Inbox                   { return &inboxMarker{q: u.tx, consumer: u.consumer} }

func (u *Unit) Commit(context.Context) error {
	return u.tx.Commit()
}

func (u *Unit) Rollback(context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var _ uow.UoWFactory = Factory{}
