package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
)

const exportSheet = "Catalog"

var columns = []string{"name", "price", "category"}

// ReadXLSX reads the first sheet of a workbook. The first row is a header
// naming the name, price and category columns in any order; blank rows are
// skipped.
func ReadXLSX(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.Validation("file", "file is not a readable xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.Validation("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, common.Validation("file", "sheet is empty")
	}

	index := make(map[string]int, len(columns))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return nil, common.Validation("file", "header row must name a "+c+" column")
		}
	}
	cell := func(row []string, col string) Cell {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return Cell(strings.TrimSpace(row[i]))
	}

	out := make([]RawRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		raw := RawRow{Row: i + 2, Name: cell(row, "name"), Price: cell(row, "price"), Category: cell(row, "category")}
		if raw.Name == "" && raw.Price == "" && raw.Category == "" {
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

// WriteXLSX writes products as a workbook ReadXLSX can load back.
func WriteXLSX(w io.Writer, products []catalog.Product) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &[]any{"name", "price", "category"}); err != nil {
		return err
	}
	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{p.Name, p.Price.InexactFloat64(), p.Category.String()}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
