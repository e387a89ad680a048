package bundle

import (
	"strings"

	"github.com/noah-isme/pcquote-api/internal/catalog"
)

type sampleLine struct {
	productID int64
	quantity  int
}

var samplePackages = []struct {
	name        string
	description string
	lines       []sampleLine
}{
	{
		name:        "Starter Gaming",
		description: "1080p gaming build on AM5.",
		lines:       []sampleLine{{1, 1}, {3, 1}, {5, 2}, {7, 1}, {9, 1}, {11, 1}, {12, 1}, {13, 1}},
	},
	{
		name:        "Creator Pro",
		description: "Editing and rendering workstation with a 1440p display.",
		lines:       []sampleLine{{2, 1}, {4, 1}, {6, 2}, {8, 1}, {9, 1}, {10, 1}, {11, 1}, {12, 1}, {13, 1}, {14, 1}, {15, 1}},
	},
	{
		name:        "Office Essentials",
		description: "Quiet desktop for office work, integrated graphics.",
		lines:       []sampleLine{{1, 1}, {3, 1}, {5, 1}, {9, 1}, {11, 1}, {12, 1}},
	},
}

// SamplePackages returns the built-in packages served when the store cannot
// be reached. They reference catalog.SampleProducts by id.
func SamplePackages() []Package {
	products := make(map[int64]catalog.Product)
	for _, p := range catalog.SampleProducts() {
		products[p.ID] = p
	}
	out := make([]Package, 0, len(samplePackages))
	var itemID int64
	for i, sp := range samplePackages {
		desc := sp.description
		pkg := Package{ID: int64(i + 1), Name: sp.name, Description: &desc}
		for _, line := range sp.lines {
			p := products[line.productID]
			itemID++
			pkg.Items = append(pkg.Items, Item{
				ID:              itemID,
				ProductID:       p.ID,
				Quantity:        line.quantity,
				ProductName:     p.Name,
				ProductPrice:    p.Price,
				ProductCategory: p.Category.String(),
			})
		}
		pkg.TotalPrice = BaseTotal(pkg.Items)
		out = append(out, pkg)
	}
	return out
}

func filterSample(q string) []Package {
	all := SamplePackages()
	if q == "" {
		return all
	}
	needle := strings.ToLower(q)
	out := make([]Package, 0, len(all))
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}
