package quote_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/quote"
)

func rowIDs(rows []quote.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestProjectPackageToRows(t *testing.T) {
	pkg := bundle.Package{Items: []bundle.Item{
		{ProductID: 5, Quantity: 2, ProductCategory: "ram"},
		{ProductID: 1, Quantity: 1, ProductCategory: "cpu"},
		{ProductID: 6, Quantity: 1, ProductCategory: "ram"},
		{ProductID: 99, Quantity: 1, ProductCategory: "fan"},
	}}
	cats := []catalog.Category{catalog.CategoryCPU, catalog.CategoryRAM, catalog.CategoryGPU}

	rows := quote.ProjectPackageToRows(pkg, cats)
	require.Equal(t, []string{"cpu-1", "ram-1", "ram-2", "gpu-1"}, rowIDs(rows))
	require.Equal(t, int64(5), rows[1].ProductID)
	require.Equal(t, 2, rows[1].Quantity)
	require.Equal(t, int64(6), rows[2].ProductID)
	require.Equal(t, quote.Row{ID: "gpu-1", Category: catalog.CategoryGPU, Quantity: 1}, rows[3])
	require.Nil(t, rows[0].CustomName)
	require.Nil(t, rows[0].CustomPrice)
}

func TestProjectionIsIdempotentForOneItemPerCategory(t *testing.T) {
	var items []bundle.Item
	for i, c := range catalog.Categories() {
		items = append(items, bundle.Item{ProductID: int64(i + 1), Quantity: i%3 + 1, ProductCategory: c.String()})
	}
	first := quote.ProjectPackageToRows(bundle.Package{Items: items}, catalog.Categories())

	back := make([]bundle.Item, 0, len(first))
	for _, r := range first {
		back = append(back, bundle.Item{ProductID: r.ProductID, Quantity: r.Quantity, ProductCategory: r.Category.String()})
	}
	second := quote.ProjectPackageToRows(bundle.Package{Items: back}, catalog.Categories())
	require.Equal(t, first, second)
}

func TestEmptyRowsCoverEveryCategory(t *testing.T) {
	rows := quote.EmptyRows(catalog.Categories())
	require.Len(t, rows, catalog.CategoryCount)
	for _, n := range quote.CountByCategory(rows) {
		require.Equal(t, 1, n)
	}
}

func TestAddThenRemoveRAMRow(t *testing.T) {
	rows := quote.EmptyRows(catalog.Categories())

	rows, err := quote.AddRow(rows, catalog.CategoryRAM)
	require.NoError(t, err)
	require.Equal(t, []string{"cpu-1", "motherboard-1", "ram-1", "ram-2", "gpu-1"}, rowIDs(rows)[:5])
	require.Equal(t, 1, rows[3].Quantity)
	require.True(t, rows[3].Custom())

	rows, found := quote.RemoveRow(rows, "ram-1")
	require.True(t, found)
	var ram []string
	for _, r := range rows {
		if r.Category == catalog.CategoryRAM {
			ram = append(ram, r.ID)
		}
	}
	require.Equal(t, []string{"ram-2"}, ram)

	_, found = quote.RemoveRow(rows, "ram-1")
	require.False(t, found)
}

func TestAddRowKeepsIDsUnique(t *testing.T) {
	rows := []quote.Row{{ID: "storage-2", Category: catalog.CategoryStorage, Quantity: 1}}
	rows, err := quote.AddRow(rows, catalog.CategoryStorage)
	require.NoError(t, err)
	require.Equal(t, []string{"storage-2", "storage-3"}, rowIDs(rows))
}

func TestAddRowIntoCategoryWithoutRows(t *testing.T) {
	rows := []quote.Row{
		{ID: "cpu-1", Category: catalog.CategoryCPU, Quantity: 1},
		{ID: "gpu-1", Category: catalog.CategoryGPU, Quantity: 1},
	}
	rows, err := quote.AddRow(rows, catalog.CategoryRAM)
	require.NoError(t, err)
	require.Equal(t, []string{"cpu-1", "ram-1", "gpu-1"}, rowIDs(rows))
}

func TestAddRowRejectsSingleSelectCategory(t *testing.T) {
	rows := quote.EmptyRows(catalog.Categories())
	_, err := quote.AddRow(rows, catalog.CategoryGPU)
	require.True(t, common.HasCode(err, common.CodeValidation))
}

func TestSetField(t *testing.T) {
	rows := quote.EmptyRows([]catalog.Category{catalog.CategoryCPU, catalog.CategoryCooling})

	out, err := quote.SetField(rows, "cooling-1", quote.FieldQuantity, "3")
	require.NoError(t, err)
	require.Equal(t, 3, out[1].Quantity)
	require.Equal(t, 1, rows[1].Quantity, "input rows must not change")

	out, err = quote.SetField(out, "cooling-1", quote.FieldCustomName, "  Thermal paste ")
	require.NoError(t, err)
	require.Equal(t, "Thermal paste", *out[1].CustomName)

	out, err = quote.SetField(out, "cooling-1", quote.FieldCustomPrice, "9.90")
	require.NoError(t, err)
	require.Equal(t, "9.9", out[1].CustomPrice.String())

	out, err = quote.SetField(out, "cpu-1", quote.FieldProductID, "2")
	require.NoError(t, err)
	require.Equal(t, int64(2), out[0].ProductID)
	require.Equal(t, 3, out[1].Quantity)

	_, err = quote.SetField(out, "cpu-1", quote.FieldCustomPrice, "-1")
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = quote.SetField(out, "cpu-1", quote.FieldCustomPrice, "abc")
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = quote.SetField(out, "cpu-1", quote.Field("colour"), "red")
	require.True(t, common.HasCode(err, common.CodeValidation))
	_, err = quote.SetField(out, "gpu-1", quote.FieldQuantity, "1")
	require.True(t, common.HasCode(err, common.CodeNotFound))
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]int{
		"4":          4,
		" 2 ":        2,
		"0":          1,
		"-3":         1,
		"":           1,
		"abc":        1,
		"2.7":        2,
		"0.5":        1,
		"NaN":        1,
		"1e99":       1,
		"1e3":        1,
		"2.9":        2,
		"+5":         5,
		"12pc":       12,
		"007":        7,
		"4294967297": 1,
		"2147483647": 2147483647,
	}
	for in, want := range cases {
		require.Equal(t, want, quote.ParseQuantity(in), "input %q", in)
	}
}

func TestParsePrice(t *testing.T) {
	p, err := quote.ParsePrice("")
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = quote.ParsePrice("0")
	require.NoError(t, err)
	require.True(t, p.Equal(decimal.Zero))

	_, err = quote.ParsePrice("-0.01")
	require.Error(t, err)
}
