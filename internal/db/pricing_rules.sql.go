package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getLatestPricingRule = `SELECT id, unified_pricing, unified_rate,
       cpu_rate, motherboard_rate, ram_rate, gpu_rate, storage_rate,
       psu_rate, case_rate, cooling_rate, monitor_rate, created_at
FROM pricing_rules
ORDER BY id DESC
LIMIT 1`

func (q *Queries) GetLatestPricingRule(ctx context.Context) (PricingRule, error) {
	var r PricingRule
	err := q.db.QueryRow(ctx, getLatestPricingRule).Scan(
		&r.ID, &r.UnifiedPricing, &r.UnifiedRate,
		&r.CpuRate, &r.MotherboardRate, &r.RamRate, &r.GpuRate, &r.StorageRate,
		&r.PsuRate, &r.CaseRate, &r.CoolingRate, &r.MonitorRate, &r.CreatedAt,
	)
	return r, err
}

const insertPricingRule = `INSERT INTO pricing_rules (
    unified_pricing, unified_rate,
    cpu_rate, motherboard_rate, ram_rate, gpu_rate, storage_rate,
    psu_rate, case_rate, cooling_rate, monitor_rate
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at`

type InsertPricingRuleParams struct {
	UnifiedPricing  bool
	UnifiedRate     pgtype.Numeric
	CpuRate         pgtype.Numeric
	MotherboardRate pgtype.Numeric
	RamRate         pgtype.Numeric
	GpuRate         pgtype.Numeric
	StorageRate     pgtype.Numeric
	PsuRate         pgtype.Numeric
	CaseRate        pgtype.Numeric
	CoolingRate     pgtype.Numeric
	MonitorRate     pgtype.Numeric
}

type InsertPricingRuleRow struct {
	ID        int64
	CreatedAt pgtype.Timestamptz
}

func (q *Queries) InsertPricingRule(ctx context.Context, arg InsertPricingRuleParams) (InsertPricingRuleRow, error) {
	var r InsertPricingRuleRow
	err := q.db.QueryRow(ctx, insertPricingRule,
		arg.UnifiedPricing, arg.UnifiedRate,
		arg.CpuRate, arg.MotherboardRate, arg.RamRate, arg.GpuRate, arg.StorageRate,
		arg.PsuRate, arg.CaseRate, arg.CoolingRate, arg.MonitorRate,
	).Scan(&r.ID, &r.CreatedAt)
	return r, err
}
