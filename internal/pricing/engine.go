package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
)

var hundred = decimal.NewFromInt(100)

// ResolveMultiplier returns the factor applied to a base price in category.
// A nil rule or an unknown category yields 1. No rounding happens here.
func ResolveMultiplier(category catalog.Category, rule *Rule) decimal.Decimal {
	if rule == nil {
		return decimal.NewFromInt(1)
	}
	if rule.UnifiedPricing {
		return multiplier(rule.UnifiedRate)
	}
	if !category.Valid() {
		return decimal.NewFromInt(1)
	}
	return multiplier(rule.Rates[category])
}

// ResolveSalePrice is the product's base price with its category markup applied.
func ResolveSalePrice(p catalog.Product, rule *Rule) decimal.Decimal {
	return p.Price.Mul(ResolveMultiplier(p.Category, rule))
}

func multiplier(rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(rate.Div(hundred))
}
