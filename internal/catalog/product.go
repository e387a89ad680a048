package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/db"
)

// Product is a catalog part priced at its base (pre-markup) price.
type Product struct {
	ID       int64           `json:"id"`
	Category Category        `json:"category"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
}

// ProductInput is the payload for creating a product.
type ProductInput struct {
	Category string           `json:"category" validate:"required"`
	Name     string           `json:"name" validate:"required"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
}

// ProductUpdate is the payload for editing a product. The category is fixed
// at creation and cannot be changed.
type ProductUpdate struct {
	Name  string           `json:"name" validate:"required"`
	Price *decimal.Decimal `json:"price" validate:"required"`
}

func productFromRow(row db.Product) (Product, bool) {
	category, err := ParseCategory(row.Category)
	if err != nil {
		return Product{}, false
	}
	return Product{
		ID:       row.ID,
		Category: category,
		Name:     row.Name,
		Price:    db.Decimal(row.Price),
	}, true
}
