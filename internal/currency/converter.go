// Package currency provides the conversion collaborator used when a
// balance's holding currency differs from the payee's payout currency, and
// helpers for the processors' native amount representations.
package currency

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Converter maps an amount in minor units from one currency to another as
// of a given date. Implementations are pure: no side effects, same inputs
// give the same output.
type Converter interface {
	Convert(amountCents int64, from, to string, date time.Time) (int64, error)
}

// zeroDecimalCurrencies are ISO 4217 currencies whose minor unit equals the
// major unit. Processors expect their amounts unscaled.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

// IsZeroDecimal reports whether the currency has no minor unit.
func IsZeroDecimal(code string) bool {
	return zeroDecimalCurrencies[strings.ToUpper(code)]
}

// UnitsForProcessor formats an amount in cents as the integer amount the
// processor expects: unchanged for two-decimal currencies, divided by 100
// for zero-decimal ones.
func UnitsForProcessor(amountCents int64, code string) int64 {
	if IsZeroDecimal(code) {
		return amountCents / 100
	}
	return amountCents
}

// CentsFromProcessor is the inverse of UnitsForProcessor.
func CentsFromProcessor(units int64, code string) int64 {
	if IsZeroDecimal(code) {
		return units * 100
	}
	return units
}

// FormatDecimal renders an amount in cents as the processor-native decimal
// string, e.g. 1050 USD cents -> "10.50", 1050 JPY "cents" -> "10".
func FormatDecimal(amountCents int64, code string) string {
	if IsZeroDecimal(code) {
		return decimal.NewFromInt(amountCents / 100).String()
	}
	return decimal.NewFromInt(amountCents).Shift(-2).StringFixed(2)
}

// RatePair keys a conversion direction.
type RatePair struct {
	From string
	To   string
}

// TableConverter converts using a fixed rate table. Rates are applied with
// banker's-free floor rounding toward zero on the minor-unit result, which
// matches how the processors truncate converted amounts.
type TableConverter struct {
	rates map[RatePair]decimal.Decimal
}

// NewTableConverter builds a converter from a rate table. The table maps
// "FROM:TO" pairs to decimal rates, e.g. {"EUR:USD": "1.08"}.
func NewTableConverter(rates map[string]string) (*TableConverter, error) {
	parsed := make(map[RatePair]decimal.Decimal, len(rates))

	for pair, rate := range rates {
		from, to, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid rate pair %q", pair)
		}

		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %q: %w", pair, err)
		}

		parsed[RatePair{From: strings.ToUpper(from), To: strings.ToUpper(to)}] = d
	}

	return &TableConverter{rates: parsed}, nil
}

// Convert converts amountCents from one currency to another. Identity
// conversions short-circuit without a table lookup.
func (c *TableConverter) Convert(amountCents int64, from, to string, _ time.Time) (int64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return amountCents, nil
	}

	rate, ok := c.rates[RatePair{From: from, To: to}]
	if !ok {
		// Fall back to the inverse rate when only one direction is configured.
		inverse, ok := c.rates[RatePair{From: to, To: from}]
		if !ok || inverse.IsZero() {
			return 0, fmt.Errorf("no conversion rate from %s to %s", from, to)
		}
		rate = decimal.NewFromInt(1).DivRound(inverse, 12)
	}

	converted := decimal.NewFromInt(amountCents).Mul(rate)

	// Truncate toward zero on the minor unit.
	return converted.IntPart(), nil
}
