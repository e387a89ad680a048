package quote

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/pricing"
)

// PricedRow is a row with its resolved name and prices.
type PricedRow struct {
	Row
	Name      string          `json:"name"`
	Resolved  bool            `json:"resolved"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Display   RowDisplay      `json:"display"`
}

// RowDisplay carries the formatted figures of a row.
type RowDisplay struct {
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

// Summary is a fully priced working set.
type Summary struct {
	Rows     []PricedRow    `json:"rows"`
	Discount Discount       `json:"discount"`
	Display  SummaryDisplay `json:"display"`
}

// SummaryDisplay carries the formatted totals.
type SummaryDisplay struct {
	Total        string `json:"total"`
	Payable      string `json:"payable"`
	SavedAmount  string `json:"savedAmount,omitempty"`
	SavedPercent string `json:"savedPercent,omitempty"`
}

// Price resolves every row against the catalog and rule and totals them.
// The figures are recomputed from scratch on every call.
func Price(rows []Row, catalogByID map[int64]catalog.Product, rule *pricing.Rule, discounted *decimal.Decimal, money common.MoneyFormat) Summary {
	priced := make([]PricedRow, 0, len(rows))
	for _, r := range rows {
		pr := PricedRow{Row: r, Subtotal: LineSubtotal(r, catalogByID, rule)}
		switch {
		case r.Custom():
			pr.Resolved = true
			if r.CustomName != nil {
				pr.Name = *r.CustomName
			}
			if r.CustomPrice != nil {
				pr.UnitPrice = *r.CustomPrice
			}
		default:
			if p, ok := catalogByID[r.ProductID]; ok {
				pr.Resolved = true
				pr.Name = p.Name
				pr.UnitPrice = pricing.ResolveSalePrice(p, rule)
			}
		}
		pr.Display = RowDisplay{UnitPrice: money.Format(pr.UnitPrice), Subtotal: money.Format(pr.Subtotal)}
		priced = append(priced, pr)
	}

	d := ApplyDiscount(Total(rows, catalogByID, rule), discounted)
	disp := SummaryDisplay{Total: money.Format(d.Total), Payable: money.Format(d.Payable)}
	if d.SavedAmount != nil {
		disp.SavedAmount = money.Format(*d.SavedAmount)
	}
	if d.SavedPercent != nil {
		disp.SavedPercent = money.Percent(*d.SavedPercent)
	}
	return Summary{Rows: priced, Discount: d, Display: disp}
}

// productIDs collects the catalog ids referenced by rows.
func productIDs(rows []Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if !r.Custom() {
			ids = append(ids, r.ProductID)
		}
	}
	return ids
}
