package dto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staypay/internal/app/dto"
	"staypay/internal/domain/shared/money"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1033.33", dto.FormatAmount(money.Must(103333, "GBP")))
	assert.Equal(t, "0.05", dto.FormatAmount(money.Must(5, "EUR")))
	assert.Equal(t, "-12.50", dto.FormatAmount(money.Must(-1250, "USD")))
	assert.Equal(t, "1500", dto.FormatAmount(money.Must(1500, "JPY")))
	assert.Equal(t, "1.250", dto.FormatAmount(money.Must(1250, "KWD")))
}

func TestParseAmount(t *testing.T) {
	cases := map[string]struct {
		raw      string
		currency string
		want     int64
	}{
		"whole":       {"150", "GBP", 15000},
		"two places":  {"950.25", "GBP", 95025},
		"one place":   {" 40.5 ", "GBP", 4050},
		"zero minor":  {"1500", "JPY", 1500},
		"three minor": {"1.25", "KWD", 1250},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := dto.ParseAmount(tc.raw, tc.currency)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	_, err := dto.ParseAmount("40.001", "GBP")
	assert.ErrorIs(t, err, dto.ErrInvalidAmount)

	_, err = dto.ParseAmount("12.5", "JPY")
	assert.ErrorIs(t, err, dto.ErrInvalidAmount)

	_, err = dto.ParseAmount("forty", "GBP")
	assert.ErrorIs(t, err, dto.ErrInvalidAmount)
}
