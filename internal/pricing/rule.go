package pricing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pcquote-api/internal/catalog"
	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/db"
)

// maxRate and rateScale match the numeric(8,4) columns backing the rule.
var maxRate = decimal.RequireFromString("9999.9999")

const rateScale = 4

// Rates holds one markup percentage per category, indexed by catalog.Category.
type Rates [catalog.CategoryCount]decimal.Decimal

// Rule is the active markup configuration. Rates are percentages: 20 means
// a multiplier of 1.2.
type Rule struct {
	ID             int64
	UnifiedPricing bool
	UnifiedRate    decimal.Decimal
	Rates          Rates
	CreatedAt      time.Time
}

// DefaultRule is the rule in effect before an admin saves one: unified
// pricing with no markup.
func DefaultRule() Rule {
	return Rule{UnifiedPricing: true}
}

// RateKey returns the JSON field carrying the category's rate, e.g. "cpuRate".
func RateKey(c catalog.Category) string {
	return c.String() + "Rate"
}

// MarshalJSON flattens the per-category rates into "<category>Rate" fields.
func (r Rule) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":             r.ID,
		"unifiedPricing": r.UnifiedPricing,
		"unifiedRate":    r.UnifiedRate,
	}
	for _, c := range catalog.Categories() {
		out[RateKey(c)] = r.Rates[c]
	}
	if !r.CreatedAt.IsZero() {
		out["createdAt"] = r.CreatedAt.UTC()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat representation. Absent rates are zero: a rule
// is always replaced as a whole.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var next Rule
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &next.ID); err != nil {
			return fmt.Errorf("id: %w", err)
		}
	}
	if v, ok := raw["createdAt"]; ok {
		if err := json.Unmarshal(v, &next.CreatedAt); err != nil {
			return fmt.Errorf("createdAt: %w", err)
		}
	}
	if v, ok := raw["unifiedPricing"]; ok {
		if err := json.Unmarshal(v, &next.UnifiedPricing); err != nil {
			return fmt.Errorf("unifiedPricing: %w", err)
		}
	}
	if v, ok := raw["unifiedRate"]; ok {
		if err := next.UnifiedRate.UnmarshalJSON(v); err != nil {
			return fmt.Errorf("unifiedRate: %w", err)
		}
	}
	for _, c := range catalog.Categories() {
		v, ok := raw[RateKey(c)]
		if !ok {
			continue
		}
		if err := next.Rates[c].UnmarshalJSON(v); err != nil {
			return fmt.Errorf("%s: %w", RateKey(c), err)
		}
	}
	*r = next
	return nil
}

// Validate checks every rate is within the storable range.
func (r Rule) Validate() error {
	check := func(field string, v decimal.Decimal) error {
		if v.IsNegative() {
			return common.Validation(field, field+" must not be negative")
		}
		if v.GreaterThan(maxRate) {
			return common.Validation(field, field+" is too large")
		}
		if !v.Equal(v.Truncate(rateScale)) {
			return common.Validation(field, fmt.Sprintf("%s allows at most %d decimal places", field, rateScale))
		}
		return nil
	}
	if err := check("unifiedRate", r.UnifiedRate); err != nil {
		return err
	}
	for _, c := range catalog.Categories() {
		if err := check(RateKey(c), r.Rates[c]); err != nil {
			return err
		}
	}
	return nil
}

func ruleFromRow(row db.PricingRule) Rule {
	r := Rule{
		ID:             row.ID,
		UnifiedPricing: row.UnifiedPricing,
		UnifiedRate:    db.Decimal(row.UnifiedRate),
	}
	r.Rates[catalog.CategoryCPU] = db.Decimal(row.CpuRate)
	r.Rates[catalog.CategoryMotherboard] = db.Decimal(row.MotherboardRate)
	r.Rates[catalog.CategoryRAM] = db.Decimal(row.RamRate)
	r.Rates[catalog.CategoryGPU] = db.Decimal(row.GpuRate)
	r.Rates[catalog.CategoryStorage] = db.Decimal(row.StorageRate)
	r.Rates[catalog.CategoryPSU] = db.Decimal(row.PsuRate)
	r.Rates[catalog.CategoryCase] = db.Decimal(row.CaseRate)
	r.Rates[catalog.CategoryCooling] = db.Decimal(row.CoolingRate)
	r.Rates[catalog.CategoryMonitor] = db.Decimal(row.MonitorRate)
	if row.CreatedAt.Valid {
		r.CreatedAt = row.CreatedAt.Time
	}
	return r
}

func insertParams(r Rule) db.InsertPricingRuleParams {
	return db.InsertPricingRuleParams{
		UnifiedPricing:  r.UnifiedPricing,
		UnifiedRate:     db.Numeric(r.UnifiedRate),
		CpuRate:         db.Numeric(r.Rates[catalog.CategoryCPU]),
		MotherboardRate: db.Numeric(r.Rates[catalog.CategoryMotherboard]),
		RamRate:         db.Numeric(r.Rates[catalog.CategoryRAM]),
		GpuRate:         db.Numeric(r.Rates[catalog.CategoryGPU]),
		StorageRate:     db.Numeric(r.Rates[catalog.CategoryStorage]),
		PsuRate:         db.Numeric(r.Rates[catalog.CategoryPSU]),
		CaseRate:        db.Numeric(r.Rates[catalog.CategoryCase]),
		CoolingRate:     db.Numeric(r.Rates[catalog.CategoryCooling]),
		MonitorRate:     db.Numeric(r.Rates[catalog.CategoryMonitor]),
	}
}
