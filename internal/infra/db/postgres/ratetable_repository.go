package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/shared/money"
)

type RateTableRepository struct {
	q  querier
	db *sql.DB
}

func NewRateTableRepository(db *sql.DB) *RateTableRepository {
	return &RateTableRepository{q: db, db: db}
}

func (r *RateTableRepository) ByOffering(ctx context.Context, offeringID, roomID string) (*domainrates.RateTable, error) {
	offeringID, roomID = strings.TrimSpace(offeringID), strings.TrimSpace(roomID)
	rows, err := r.q.QueryContext(ctx, `
	SELECT t.currency, t.booking_fee, t.deposit, r.kind, r.unit_price, r.discounted
	FROM rate_tables t
	LEFT JOIN rate_tiers r ON r.offering_id = t.offering_id AND r.room_id = t.room_id
	WHERE t.offering_id = $1 AND t.room_id = $2
	`, offeringID, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var table *domainrates.RateTable
	for rows.Next() {
		var (
			currency     string
			fee, deposit int64
			kind         sql.NullString
			unit         sql.NullInt64
			discounted   sql.NullInt64
		)
		if err := rows.Scan(&currency, &fee, &deposit, &kind, &unit, &discounted); err != nil {
			return nil, err
		}
		if table == nil {
			table = &domainrates.RateTable{
				OfferingID: offeringID,
				RoomID:     roomID,
				Currency:   currency,
				BookingFee: money.Money{Amount: fee, Currency: currency},
				Deposit:    money.Money{Amount: deposit, Currency: currency},
			}
		}
		if !kind.Valid {
			continue
		}
		tier := domainrates.RateTier{
			Kind:      domainrates.TierKind(kind.String),
			UnitPrice: money.Money{Amount: unit.Int64, Currency: currency},
		}
		if discounted.Valid {
			d := money.Money{Amount: discounted.Int64, Currency: currency}
			tier.Discounted = &d
		}
		table.Tiers = append(table.Tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: %s|%s", domainrates.ErrOfferingNotFound, offeringID, roomID)
	}
	return table, nil
}

// UpsertRateTable replaces the table and its tiers in one transaction.
func (r *RateTableRepository) UpsertRateTable(ctx context.Context, table *domainrates.RateTable) error {
	if r.db == nil {
		return ErrUnitOfWorkNotConfigured
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO rate_tables (offering_id, room_id, currency, booking_fee, deposit)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (offering_id, room_id) DO UPDATE
	SET currency = EXCLUDED.currency, booking_fee = EXCLUDED.booking_fee, deposit = EXCLUDED.deposit
	`, table.OfferingID, table.RoomID, table.Currency, table.BookingFee.Amount, table.Deposit.Amount)
	if err != nil {
		return fmt.Errorf("postgres: upsert rate table %s: %w", table.OfferingID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rate_tiers WHERE offering_id = $1 AND room_id = $2`, table.OfferingID, table.RoomID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO rate_tiers (offering_id, room_id, kind, unit_price, discounted)
	VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, tier := range table.Tiers {
		var discounted sql.NullInt64
		if tier.Discounted != nil {
			discounted = sql.NullInt64{Int64: tier.Discounted.Amount, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, table.OfferingID, table.RoomID, string(tier.Kind), tier.UnitPrice.Amount, discounted); err != nil {
			return fmt.Errorf("postgres: insert %s tier of %s: %w", tier.Kind, table.OfferingID, err)
		}
	}
	return tx.Commit()
}

var _ domainrates.Repository = (*RateTableRepository)(nil)
