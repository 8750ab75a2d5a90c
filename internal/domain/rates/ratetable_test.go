package rates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/domain/rates"
	"staypay/internal/domain/shared/money"
)

func gbp(amount int64) money.Money { return money.Must(amount, "GBP") }

func ptr(m money.Money) *money.Money { return &m }

func TestNewRateTable(t *testing.T) {
	table, err := rates.NewRateTable(rates.CreateParams{
		OfferingID: " prop-1 ",
		RoomID:     "room-2",
		Currency:   "gbp",
		BookingFee: 15000,
		Deposit:    50000,
		Tiers: []rates.RateTier{
			{Kind: rates.TierMonth, UnitPrice: gbp(95000), Discounted: ptr(gbp(90000))},
			{Kind: rates.TierDay, UnitPrice: gbp(4000)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "prop-1", table.OfferingID)
	assert.Equal(t, "GBP", table.Currency)

	month, ok := table.EffectiveUnitPrice(rates.TierMonth)
	require.True(t, ok)
	assert.Equal(t, int64(90000), month.Amount)

	day, ok := table.EffectiveUnitPrice(rates.TierDay)
	require.True(t, ok)
	assert.Equal(t, int64(4000), day.Amount)

	_, ok = table.EffectiveUnitPrice(rates.TierWeek)
	assert.False(t, ok)
}

func TestNewRateTable_Invariants(t *testing.T) {
	cases := map[string]struct {
		params rates.CreateParams
		want   error
	}{
		"missing offering": {
			params: rates.CreateParams{Currency: "GBP"},
			want:   rates.ErrOfferingRequired,
		},
		"duplicate tier": {
			params: rates.CreateParams{OfferingID: "p", Currency: "GBP", Tiers: []rates.RateTier{
				{Kind: rates.TierDay, UnitPrice: gbp(1)},
				{Kind: rates.TierDay, UnitPrice: gbp(2)},
			}},
			want: rates.ErrDuplicateTier,
		},
		"unknown tier": {
			params: rates.CreateParams{OfferingID: "p", Currency: "GBP", Tiers: []rates.RateTier{
				{Kind: "hour", UnitPrice: gbp(1)},
			}},
			want: rates.ErrUnknownTier,
		},
		"discount above unit": {
			params: rates.CreateParams{OfferingID: "p", Currency: "GBP", Tiers: []rates.RateTier{
				{Kind: rates.TierWeek, UnitPrice: gbp(100), Discounted: ptr(gbp(101))},
			}},
			want: rates.ErrDiscountAboveUnit,
		},
		"zero price": {
			params: rates.CreateParams{OfferingID: "p", Currency: "GBP", Tiers: []rates.RateTier{
				{Kind: rates.TierWeek, UnitPrice: gbp(0)},
			}},
			want: rates.ErrNonPositivePrice,
		},
		"foreign currency": {
			params: rates.CreateParams{OfferingID: "p", Currency: "GBP", Tiers: []rates.RateTier{
				{Kind: rates.TierWeek, UnitPrice: money.Must(100, "EUR")},
			}},
			want: rates.ErrCurrencyMismatch,
		},
		"negative fee": {
			params: rates.CreateParams{OfferingID: "p", Currency: "GBP", BookingFee: -1},
			want:   rates.ErrNegativeFee,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rates.NewRateTable(tc.params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseTierKind(t *testing.T) {
	kind, err := rates.ParseTierKind("Monthly")
	require.NoError(t, err)
	assert.Equal(t, rates.TierMonth, kind)
	assert.Equal(t, 30, kind.UnitDays())

	_, err = rates.ParseTierKind("fortnight")
	assert.ErrorIs(t, err, rates.ErrUnknownTier)
}

func TestCopy_IsDetached(t *testing.T) {
	table, err := rates.NewRateTable(rates.CreateParams{OfferingID: "p", Currency: "GBP", Tiers: []rates.RateTier{
		{Kind: rates.TierDay, UnitPrice: gbp(100), Discounted: ptr(gbp(90))},
	}})
	require.NoError(t, err)

	clone := table.Copy()
	clone.Tiers[0].Discounted.Amount = 10

	price, _ := table.EffectiveUnitPrice(rates.TierDay)
	assert.Equal(t, int64(90), price.Amount)
}
