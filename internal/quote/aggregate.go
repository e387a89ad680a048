package quote

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// LineSubtotal prices one row. Custom rows cost their custom price (zero when
// unset), catalog rows the marked-up sale price, and rows pointing at a
// product that no longer exists nothing at all.
func LineSubtotal(row Row, catalogByID map[int64]catalog.Product, rule *pricing.Rule) decimal.Decimal {
	qty := decimal.NewFromInt(int64(row.Quantity))
	if row.Custom() {
		if row.CustomPrice == nil {
			return decimal.Zero
		}
		return row.CustomPrice.Mul(qty)
	}
	p, ok := catalogByID[row.ProductID]
	if !ok {
		return decimal.Zero
	}
	return pricing.ResolveSalePrice(p, rule).Mul(qty)
}

// Total sums the line subtotals.
func Total(rows []Row, catalogByID map[int64]catalog.Product, rule *pricing.Rule) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(LineSubtotal(r, catalogByID, rule))
	}
	return sum
}

// Discount is the outcome of applying a negotiated price to a total.
type Discount struct {
	Total        decimal.Decimal  `json:"total"`
	Applied      bool             `json:"applied"`
	Payable      decimal.Decimal  `json:"payable"`
	SavedAmount  *decimal.Decimal `json:"savedAmount,omitempty"`
	SavedPercent *decimal.Decimal `json:"savedPercent,omitempty"`
}

// ApplyDiscount compares total with a discounted price. A missing or
// non-positive price leaves the total as payable. The saved amount is not
// clamped, so a "discount" above the total reports a negative saving.
func ApplyDiscount(total decimal.Decimal, discounted *decimal.Decimal) Discount {
	if discounted == nil || !discounted.IsPositive() {
		return Discount{Total: total, Payable: total}
	}
	saved := total.Sub(*discounted)
	d := Discount{Total: total, Applied: true, Payable: *discounted, SavedAmount: &saved}
	if total.IsPositive() {
		pct := decimal.NewFromInt(1).Sub(discounted.Div(total)).Mul(hundred)
		d.SavedPercent = &pct
	}
	return d
}
