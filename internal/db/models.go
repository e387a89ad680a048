package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Queries executes the application's SQL statements.
type Queries struct {
	db DBTX
}

// New wraps a connection or pool.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type Product struct {
	ID        int64
	Category  string
	Name      string
	Price     pgtype.Numeric
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type PricingRule struct {
	ID              int64
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
	CreatedAt       pgtype.Timestamptz
}

type Package struct {
	ID          int64
	Name        string
	Description pgtype.Text
	TotalPrice  pgtype.Numeric
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type PackageItem struct {
	ID              int64
	PackageID       int64
	ProductID       int64
	Quantity        int32
	ProductName     string
	ProductPrice    pgtype.Numeric
	ProductCategory string
}
