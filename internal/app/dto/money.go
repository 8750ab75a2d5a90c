package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"staypay/internal/domain/shared/money"
)

var ErrInvalidAmount = errors.New("dto: invalid decimal amount")

// minorUnitExponent lists ISO-4217 currencies whose minor unit is not 1/100.
var minorUnitExponent = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// Exponent returns the number of minor-unit digits of currency.
func Exponent(currency string) int32 {
	if exp, ok := minorUnitExponent[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// FormatAmount renders minor units as a fixed-point decimal string: 103333 GBP -> "1033.33".
func FormatAmount(m money.Money) string {
	exp := Exponent(m.Currency)
	return decimal.New(m.Amount, -exp).StringFixed(exp)
}

// ParseAmount converts a decimal string into minor units of currency. More
// fractional digits than the currency allows are rejected.
func ParseAmount(raw, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	minor := d.Shift(Exponent(currency))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q has too many decimal places for %s", ErrInvalidAmount, raw, currency)
	}
	return minor.IntPart(), nil
}
