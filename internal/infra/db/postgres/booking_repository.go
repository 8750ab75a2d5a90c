package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	domainbooking "staypay/internal/domain/booking"
	domainpricing "staypay/internal/domain/pricing"
	domainrates "staypay/internal/domain/rates"
	"staypay/internal/domain/schedule"
	"staypay/internal/domain/shared/daterange"
	"staypay/internal/domain/shared/money"
)

const uniqueViolation = "23505"

type BookingRepository struct {
	q querier
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	query := `
	SELECT offering_id, room_id, guest_id, phone, payment_method, payment_option,
		from_date, to_date, calculation, upfront_amount, currency, created_at, updated_at, version
	FROM bookings WHERE id = $1
	`
	var (
		b        = &domainbooking.Booking{ID: id}
		option   string
		calcJSON []byte
		upfront  int64
		currency string
	)
	err := r.q.QueryRowContext(ctx, query, string(id)).Scan(
		&b.OfferingID, &b.RoomID, &b.GuestID, &b.Phone, &b.PaymentMethod, &option,
		&b.Range.From, &b.Range.To, &calcJSON, &upfront, &currency, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domainbooking.ErrBookingNotFound, id)
		}
		return nil, err
	}
	var calc calculationRow
	if err := json.Unmarshal(calcJSON, &calc); err != nil {
		return nil, fmt.Errorf("postgres: decode calculation of %s: %w", id, err)
	}
	b.PaymentOption = schedule.PaymentOption(option)
	b.Range = daterange.DateRange{From: b.Range.From.UTC(), To: b.Range.To.UTC()}
	b.Calculation = calc.toCalculation()
	b.UpfrontAmountDue = money.Money{Amount: upfront, Currency: currency}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()

	milestones, err := r.milestones(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Milestones = milestones
	return b, nil
}

func (r *BookingRepository) milestones(ctx context.Context, id domainbooking.BookingID) ([]schedule.Milestone, error) {
	rows, err := r.q.QueryContext(ctx, `
	SELECT sequence, due_date, amount, currency, status, paid_at, payment_ref
	FROM booking_milestones WHERE booking_id = $1 ORDER BY sequence
	`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Milestone
	for rows.Next() {
		var (
			m        schedule.Milestone
			currency string
			status   string
			paidAt   sql.NullTime
		)
		if err := rows.Scan(&m.Sequence, &m.DueDate, &m.Amount.Amount, &currency, &status, &paidAt, &m.PaymentRef); err != nil {
			return nil, err
		}
		m.DueDate = m.DueDate.UTC()
		m.Amount.Currency = currency
		m.Status = schedule.Status(status)
		if paidAt.Valid {
			m.PaidAt = paidAt.Time.UTC()
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Save writes the header guarded by its version and replaces every milestone
// row of the booking. It must run on a transaction.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	calcJSON, err := json.Marshal(newCalculationRow(b.Calculation))
	if err != nil {
		return err
	}
	next := b.Version + 1
	var res sql.Result
	if b.Version == 0 {
		res, err = r.q.ExecContext(ctx, `
		INSERT INTO bookings (id, offering_id, room_id, guest_id, phone, payment_method, payment_option,
			from_date, to_date, calculation, upfront_amount, currency, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
		`, string(b.ID), b.OfferingID, b.RoomID, b.GuestID, b.Phone, b.PaymentMethod, string(b.PaymentOption),
			b.Range.From, b.Range.To, calcJSON, b.UpfrontAmountDue.Amount, b.UpfrontAmountDue.Currency,
			b.CreatedAt, b.UpdatedAt, next)
	} else {
		res, err = r.q.ExecContext(ctx, `
		UPDATE bookings
		SET payment_option = $3, from_date = $4, to_date = $5, calculation = $6,
			upfront_amount = $7, currency = $8, updated_at = $9, version = $10
		WHERE id = $1 AND version = $2
		`, string(b.ID), b.Version, string(b.PaymentOption), b.Range.From, b.Range.To, calcJSON,
			b.UpfrontAmountDue.Amount, b.UpfrontAmountDue.Currency, b.UpdatedAt, next)
	}
	if err != nil {
		return mapWriteError(err, b.ID)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: booking %s", domainbooking.ErrConcurrentUpdate, b.ID)
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM booking_milestones WHERE booking_id = $1`, string(b.ID)); err != nil {
		return err
	}
	if len(b.Milestones) > 0 {
		stmt, err := r.q.PrepareContext(ctx, `
		INSERT INTO booking_milestones (booking_id, sequence, due_date, amount, currency, status, paid_at, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return fmt.Errorf("postgres: prepare milestone insert: %w", err)
		}
		defer stmt.Close()
		for _, m := range b.Milestones {
			if _, err := stmt.ExecContext(ctx, string(b.ID), m.Sequence, m.DueDate, m.Amount.Amount,
				m.Amount.Currency, string(m.Status), nullTime(m.PaidAt), m.PaymentRef); err != nil {
				return fmt.Errorf("postgres: insert milestone %d of %s: %w", m.Sequence, b.ID, mapWriteError(err, b.ID))
			}
		}
	}
	b.Version = next
	return nil
}

func mapWriteError(err error, id domainbooking.BookingID) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: booking %s", domainbooking.ErrConcurrentUpdate, id)
	}
	return err
}

type calculationRow struct {
	Lines        []lineRow `json:"lines"`
	Currency     string    `json:"currency"`
	Subtotal     int64     `json:"subtotal"`
	BookingFee   int64     `json:"booking_fee"`
	Deposit      int64     `json:"deposit"`
	DurationDays int       `json:"duration_days"`
	DominantTier string    `json:"dominant_tier"`
}

type lineRow struct {
	Tier       string `json:"tier"`
	Units      int    `json:"units"`
	UnitPrice  int64  `json:"unit_price"`
	Total      int64  `json:"total"`
	Discounted bool   `json:"discounted,omitempty"`
	Note       string `json:"note,omitempty"`
}

func newCalculationRow(c domainpricing.Calculation) calculationRow {
	row := calculationRow{
		Currency:     c.Subtotal.Currency,
		Subtotal:     c.Subtotal.Amount,
		BookingFee:   c.BookingFee.Amount,
		Deposit:      c.Deposit.Amount,
		DurationDays: c.DurationDays,
		DominantTier: string(c.DominantTier),
	}
	for _, l := range c.Lines {
		row.Lines = append(row.Lines, lineRow{
			Tier:       string(l.Tier),
			Units:      l.Units,
			UnitPrice:  l.UnitPrice.Amount,
			Total:      l.Total.Amount,
			Discounted: l.Discounted,
			Note:       l.Note,
		})
	}
	return row
}

func (r calculationRow) toCalculation() domainpricing.Calculation {
	m := func(amount int64) money.Money { return money.Money{Amount: amount, Currency: r.Currency} }
	calc := domainpricing.Calculation{
		Subtotal:     m(r.Subtotal),
		BookingFee:   m(r.BookingFee),
		Deposit:      m(r.Deposit),
		DurationDays: r.DurationDays,
		DominantTier: domainrates.TierKind(r.DominantTier),
	}
	for _, l := range r.Lines {
		calc.Lines = append(calc.Lines, domainpricing.Line{
			Tier:       domainrates.TierKind(l.Tier),
			Units:      l.Units,
			UnitPrice:  m(l.UnitPrice),
			Total:      m(l.Total),
			Discounted: l.Discounted,
			Note:       l.Note,
		})
	}
	return calc
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
