package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"staypay/internal/app/dto"
	"staypay/internal/domain/rates"
	"staypay/internal/domain/shared/money"
)

// RateTableWriter is implemented by every store that can be seeded.
type RateTableWriter interface {
	UpsertRateTable(ctx context.Context, table *rates.RateTable) error
}

type rateTableFixture struct {
	OfferingID string        `json:"offering_id"`
	RoomID     string        `json:"room_id"`
	Currency   string        `json:"currency"`
	BookingFee string        `json:"booking_fee"`
	Deposit    string        `json:"deposit"`
	Tiers      []tierFixture `json:"tiers"`
}

type tierFixture struct {
	Kind       string `json:"kind"`
	UnitPrice  string `json:"unit_price"`
	Discounted string `json:"discounted_price"`
}

// Load reads rate tables from a JSON file. Prices are decimal strings in the
// table currency, e.g. "900.00".
func Load(path string) ([]*rates.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func Decode(data []byte) ([]*rates.RateTable, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var raw []rateTableFixture
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rate fixtures: %w", err)
	}
	tables := make([]*rates.RateTable, 0, len(raw))
	for i, fx := range raw {
		table, err := fx.toTable()
		if err != nil {
			return nil, fmt.Errorf("rate fixture %d (%s): %w", i, fx.OfferingID, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (fx rateTableFixture) toTable() (*rates.RateTable, error) {
	params := rates.CreateParams{
		OfferingID: fx.OfferingID,
		RoomID:     fx.RoomID,
		Currency:   fx.Currency,
	}
	var err error
	if params.BookingFee, err = optionalAmount(fx.BookingFee, fx.Currency); err != nil {
		return nil, err
	}
	if params.Deposit, err = optionalAmount(fx.Deposit, fx.Currency); err != nil {
		return nil, err
	}
	for _, t := range fx.Tiers {
		kind, err := rates.ParseTierKind(t.Kind)
		if err != nil {
			return nil, err
		}
		unit, err := dto.ParseAmount(t.UnitPrice, fx.Currency)
		if err != nil {
			return nil, err
		}
		tier := rates.RateTier{Kind: kind, UnitPrice: money.Must(unit, fx.Currency)}
		if strings.TrimSpace(t.Discounted) != "" {
			disc, err := dto.ParseAmount(t.Discounted, fx.Currency)
			if err != nil {
				return nil, err
			}
			d := money.Must(disc, fx.Currency)
			tier.Discounted = &d
		}
		params.Tiers = append(params.Tiers, tier)
	}
	return rates.NewRateTable(params)
}

func optionalAmount(raw, currency string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return dto.ParseAmount(raw, currency)
}

// Seed loads path into w. A missing file is not an error.
func Seed(ctx context.Context, w RateTableWriter, path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tables, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("rate fixtures file not found, skipping", "path", path)
			return 0, nil
		}
		return 0, err
	}
	for _, table := range tables {
		if err := w.UpsertRateTable(ctx, table); err != nil {
			return 0, fmt.Errorf("store rate table %s: %w", table.OfferingID, err)
		}
		logger.Debug("rate table imported", "offering_id", table.OfferingID, "room_id", table.RoomID, "tiers", len(table.Tiers))
	}
	logger.Info("rate fixtures imported", "path", path, "count", len(tables))
	return len(tables), nil
}

// DefaultPath returns the first existing conventional fixtures location.
func DefaultPath() string {
	candidates := []string{
		filepath.Join("data", "rate_tables.json"),
		filepath.Join("..", "data", "rate_tables.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
