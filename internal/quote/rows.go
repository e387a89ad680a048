package quote

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
)

// Row is one editable slot of a quote. ProductID 0 marks a custom line whose
// CustomPrice, when set, is what the line costs.
type Row struct {
	ID          string           `json:"id"`
	Category    catalog.Category `json:"category"`
	ProductID   int64            `json:"productId"`
	Quantity    int              `json:"quantity"`
	CustomName  *string          `json:"customName,omitempty"`
	CustomPrice *decimal.Decimal `json:"customPrice,omitempty"`
}

// Custom reports whether the row is not backed by a catalog product.
func (r Row) Custom() bool {
	return r.ProductID == 0
}

// Field names a settable row field.
type Field string

const (
	FieldQuantity    Field = "quantity"
	FieldProductID   Field = "product_id"
	FieldCustomName  Field = "custom_name"
	FieldCustomPrice Field = "custom_price"
)

// RowID builds the "{category}-{sequence}" row id.
func RowID(c catalog.Category, seq int) string {
	return c.String() + "-" + strconv.Itoa(seq)
}

func placeholder(c catalog.Category) Row {
	return Row{ID: RowID(c, 1), Category: c, Quantity: 1}
}

// ProjectPackageToRows lays a package out as rows: for each category in order,
// one row per item of that category in item order, or a single empty
// placeholder. Items whose category is not in categories are dropped.
func ProjectPackageToRows(pkg bundle.Package, categories []catalog.Category) []Row {
	groups := make(map[catalog.Category][]bundle.Item, len(categories))
	for _, it := range pkg.Items {
		c, err := catalog.ParseCategory(it.ProductCategory)
		if err != nil {
			continue
		}
		groups[c] = append(groups[c], it)
	}
	rows := make([]Row, 0, len(categories)+len(pkg.Items))
	for _, c := range categories {
		items := groups[c]
		if len(items) == 0 {
			rows = append(rows, placeholder(c))
			continue
		}
		for i, it := range items {
			rows = append(rows, Row{
				ID:        RowID(c, i+1),
				Category:  c,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}
	}
	return rows
}

// EmptyRows is the working set of a blank quote: one placeholder per category.
func EmptyRows(categories []catalog.Category) []Row {
	return ProjectPackageToRows(bundle.Package{}, categories)
}

// AddRow appends an empty row to a multi-select category, directly after the
// category's last row. The new sequence is the category's row count plus one,
// bumped further only if that id is already taken.
func AddRow(rows []Row, category catalog.Category) ([]Row, error) {
	if !category.Valid() {
		return nil, common.Validation("category", "category is not recognised")
	}
	if !category.MultiSelect() {
		return nil, common.Validation("category", category.String()+" holds a single part")
	}
	count, last := 0, -1
	taken := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		taken[r.ID] = struct{}{}
		if r.Category == category {
			count++
			last = i
		}
	}
	seq := count + 1
	for {
		if _, dup := taken[RowID(category, seq)]; !dup {
			break
		}
		seq++
	}
	added := Row{ID: RowID(category, seq), Category: category, Quantity: 1}

	out := make([]Row, 0, len(rows)+1)
	if last < 0 {
		last = insertionPoint(rows, category) - 1
	}
	out = append(out, rows[:last+1]...)
	out = append(out, added)
	out = append(out, rows[last+1:]...)
	return out, nil
}

// insertionPoint is where a category with no rows goes so the category order
// is kept.
func insertionPoint(rows []Row, category catalog.Category) int {
	for i, r := range rows {
		if r.Category > category {
			return i
		}
	}
	return len(rows)
}

// RemoveRow drops the row with rowID. Keeping at least one row per category
// is the caller's job.
func RemoveRow(rows []Row, rowID string) ([]Row, bool) {
	out := make([]Row, 0, len(rows))
	found := false
	for _, r := range rows {
		if r.ID == rowID {
			found = true
			continue
		}
		out = append(out, r)
	}
	return out, found
}

// SetField replaces one field of the row with rowID, parsing value for the
// field's type. Other rows and fields are untouched.
func SetField(rows []Row, rowID string, field Field, value string) ([]Row, error) {
	idx := -1
	for i, r := range rows {
		if r.ID == rowID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, common.NotFound("row not found", nil)
	}
	row := rows[idx]
	switch field {
	case FieldQuantity:
		row.Quantity = ParseQuantity(value)
	case FieldProductID:
		id, err := ParseProductID(value)
		if err != nil {
			return nil, err
		}
		row.ProductID = id
	case FieldCustomName:
		name := strings.TrimSpace(value)
		if name == "" {
			row.CustomName = nil
		} else {
			row.CustomName = &name
		}
	case FieldCustomPrice:
		price, err := ParsePrice(value)
		if err != nil {
			return nil, err
		}
		row.CustomPrice = price
	default:
		return nil, common.Validation("field", fmt.Sprintf("field %q cannot be set", field))
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	out[idx] = row
	return out, nil
}

// ParseQuantity reads a quantity from its leading digits, so "2.9" is 2 and
// "1e3" is 1. A value with no leading digits, zero, a negative number or one
// beyond the INTEGER range becomes 1.
func ParseQuantity(value string) int {
	v := strings.TrimPrefix(strings.TrimSpace(value), "+")
	end := strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(v)
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil || n < 1 || n > math.MaxInt32 {
		return 1
	}
	return n
}

// ParseProductID reads a product id; empty means 0, a custom line.
func ParseProductID(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, common.Validation("product_id", "product_id must be a non-negative integer")
	}
	return id, nil
}

// ParsePrice reads a custom price. Empty clears it; anything unparsable or
// negative is rejected.
func ParsePrice(value string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, common.Validation("custom_price", "custom_price must be a number")
	}
	if d.IsNegative() {
		return nil, common.Validation("custom_price", "custom_price must not be negative")
	}
	return &d, nil
}

// CountByCategory returns how many rows each category holds.
func CountByCategory(rows []Row) [catalog.CategoryCount]int {
	var counts [catalog.CategoryCount]int
	for _, r := range rows {
		if r.Category.Valid() {
			counts[r.Category]++
		}
	}
	return counts
}
