package bundle

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/db"
	"github.com/noah-isme/pcquote-api/internal/pricing"
)

// Item is a package line. Name, price and category are a snapshot of the
// product taken when the line was saved; ProductPrice is the base price.
type Item struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"productId"`
	Quantity        int             `json:"quantity"`
	ProductName     string          `json:"productName"`
	ProductPrice    decimal.Decimal `json:"productPrice"`
	ProductCategory string          `json:"productCategory"`
}

// Package is a named bundle of catalog products.
type Package struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Items       []Item          `json:"items"`
}

// MaxQuantity is the largest line quantity the package_items.quantity
// INTEGER column holds.
const MaxQuantity = math.MaxInt32

// ItemInput references a catalog product by id.
type ItemInput struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"min=1,max=2147483647"`
}

// Input is the payload for creating or replacing a package.
type Input struct {
	Name        string      `json:"name" validate:"required"`
	Description *string     `json:"description"`
	Items       []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// BaseTotal sums the snapshot base prices. This is the value stored as
// total_price.
func BaseTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// SaleTotal applies rule to each snapshot line. Lines whose category is not
// recognised are priced at their base price.
func SaleTotal(items []Item, rule *pricing.Rule) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		category, err := catalog.ParseCategory(it.ProductCategory)
		if err != nil {
			category = catalog.Category(catalog.CategoryCount)
		}
		line := pricing.ResolveSalePrice(catalog.Product{Category: category, Price: it.ProductPrice}, rule)
		total = total.Add(line.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func itemFromRow(row db.PackageItem) Item {
	return Item{
		ID:              row.ID,
		ProductID:       row.ProductID,
		Quantity:        int(row.Quantity),
		ProductName:     row.ProductName,
		ProductPrice:    db.Decimal(row.ProductPrice),
		ProductCategory: row.ProductCategory,
	}
}

func packageFromRow(row db.Package, items []Item) Package {
	p := Package{
		ID:         row.ID,
		Name:       row.Name,
		TotalPrice: db.Decimal(row.TotalPrice),
		Items:      items,
	}
	if row.Description.Valid {
		desc := row.Description.String
		p.Description = &desc
	}
	if p.Items == nil {
		p.Items = []Item{}
	}
	return p
}
