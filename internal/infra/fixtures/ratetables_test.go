package fixtures_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/domain/rates"
	"staypay/internal/infra/fixtures"
	"staypay/internal/infra/storage/memory"
)

func TestDecode(t *testing.T) {
	tables, err := fixtures.Decode([]byte(`[{
		"offering_id": "prop-1", "room_id": "r-1", "currency": "GBP",
		"booking_fee": "150", "deposit": "500.00",
		"tiers": [{"kind": "monthly", "unit_price": "950.00", "discounted_price": "900"}, {"kind": "day", "unit_price": "40.00"}]
	}]`))
	require.NoError(t, err)
	require.Len(t, tables, 1)

	table := tables[0]
	assert.Equal(t, int64(15000), table.BookingFee.Amount)
	assert.Equal(t, int64(50000), table.Deposit.Amount)
	month, ok := table.EffectiveUnitPrice(rates.TierMonth)
	require.True(t, ok)
	assert.Equal(t, int64(90000), month.Amount)
	day, ok := table.EffectiveUnitPrice(rates.TierDay)
	require.True(t, ok)
	assert.Equal(t, int64(4000), day.Amount)
}

func TestDecode_RejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"too many decimals": `[{"offering_id":"p","currency":"GBP","tiers":[{"kind":"day","unit_price":"40.001"}]}]`,
		"unknown tier":      `[{"offering_id":"p","currency":"GBP","tiers":[{"kind":"hour","unit_price":"4"}]}]`,
		"duplicate tier":    `[{"offering_id":"p","currency":"GBP","tiers":[{"kind":"day","unit_price":"4"},{"kind":"daily","unit_price":"5"}]}]`,
		"discount above":    `[{"offering_id":"p","currency":"GBP","tiers":[{"kind":"day","unit_price":"4","discounted_price":"5"}]}]`,
		"missing offering":  `[{"currency":"GBP","tiers":[]}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fixtures.Decode([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"offering_id":"p","currency":"EUR","tiers":[{"kind":"week","unit_price":"420"}]}]`), 0o600))

	store := memory.NewStore()
	n, err := fixtures.Seed(context.Background(), store, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = fixtures.Seed(context.Background(), store, filepath.Join(dir, "missing.json"), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBundledFixturesAreValid(t *testing.T) {
	tables, err := fixtures.Load(filepath.Join("..", "..", "..", "data", "rate_tables.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, tables)
}
