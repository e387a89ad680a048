package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyFormat renders amounts for display. Amounts are rounded to two
// decimal places here and nowhere else.
type MoneyFormat struct {
	Symbol string
}

// Format returns the amount with the currency symbol, thousands separators
// and exactly two decimal places, e.g. "$1,234.50".
func (f MoneyFormat) Format(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if negative && fixed != "0.00" {
		b.WriteByte('-')
	}
	b.WriteString(f.Symbol)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// Percent renders a percentage with one decimal place, e.g. "20.0%".
func (f MoneyFormat) Percent(p decimal.Decimal) string {
	return p.StringFixed(1) + "%"
}
