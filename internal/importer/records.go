package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
)

// RawRow is one imported line as text. Row is the line number reported back
// in errors: the spreadsheet row, or the 1-based position in a JSON list.
type RawRow struct {
	Row      int  `json:"-"`
	Name     Cell `json:"name"`
	Price    Cell `json:"price"`
	Category Cell `json:"category"`
}

// Cell holds a field as text whether it arrived as a JSON string or number.
type Cell string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cell) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Cell(s)
		return nil
	}
	*c = Cell(trimmed)
	return nil
}

// Record is a validated catalog entry ready to insert.
type Record struct {
	Name     string
	Price    decimal.Decimal
	Category catalog.Category
}

// RowError describes why one line was rejected.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Parse validates every row and returns either all records or every problem
// found. A file is never partially accepted.
func Parse(rows []RawRow) ([]Record, []RowError) {
	records := make([]Record, 0, len(rows))
	var problems []RowError
	for _, raw := range rows {
		rec, errs := parseRow(raw)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		records = append(records, rec)
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return records, nil
}

func parseRow(raw RawRow) (Record, []RowError) {
	var errs []RowError
	fail := func(field, msg string) {
		errs = append(errs, RowError{Row: raw.Row, Field: field, Message: msg})
	}

	name := strings.TrimSpace(string(raw.Name))
	if name == "" {
		fail("name", "name is required")
	}

	var price decimal.Decimal
	priceText := strings.TrimSpace(string(raw.Price))
	if priceText == "" {
		fail("price", "price is required")
	} else if p, err := decimal.NewFromString(priceText); err != nil {
		fail("price", fmt.Sprintf("price %q is not a number", priceText))
	} else if p.IsNegative() {
		fail("price", "price must not be negative")
	} else {
		price = p
	}

	var category catalog.Category
	catText := strings.TrimSpace(string(raw.Category))
	if catText == "" {
		fail("category", "category is required")
	} else if c, err := catalog.ParseCategory(catText); err != nil {
		fail("category", fmt.Sprintf("category %q is not recognised", catText))
	} else {
		category = c
	}

	return Record{Name: name, Price: price, Category: category}, errs
}
