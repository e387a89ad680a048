package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const packageColumns = `id, name, description, total_price, created_at, updated_at`

func scanPackage(row interface{ Scan(...any) error }) (Package, error) {
	var p Package
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.TotalPrice, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listPackages = `SELECT ` + packageColumns + `
FROM packages
WHERE ($1::text IS NULL OR lower(name) LIKE lower($1::text) ESCAPE '\')
ORDER BY id`

type ListPackagesParams struct {
	Q any
}

func (q *Queries) ListPackages(ctx context.Context, arg ListPackagesParams) ([]Package, error) {
	rows, err := q.db.Query(ctx, listPackages, searchArg(arg.Q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getPackageByID = `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`

func (q *Queries) GetPackageByID(ctx context.Context, id int64) (Package, error) {
	return scanPackage(q.db.QueryRow(ctx, getPackageByID, id))
}

const createPackage = `INSERT INTO packages (name, description, total_price)
VALUES ($1, $2, $3)
RETURNING ` + packageColumns

type CreatePackageParams struct {
	Name        string
	Description pgtype.Text
	TotalPrice  pgtype.Numeric
}

func (q *Queries) CreatePackage(ctx context.Context, arg CreatePackageParams) (Package, error) {
	return scanPackage(q.db.QueryRow(ctx, createPackage, arg.Name, arg.Description, arg.TotalPrice))
}

const updatePackage = `UPDATE packages
SET name = $2, description = $3, total_price = $4, updated_at = now()
WHERE id = $1
RETURNING ` + packageColumns

type UpdatePackageParams struct {
	ID          int64
	Name        string
	Description pgtype.Text
	TotalPrice  pgtype.Numeric
}

func (q *Queries) UpdatePackage(ctx context.Context, arg UpdatePackageParams) (Package, error) {
	return scanPackage(q.db.QueryRow(ctx, updatePackage, arg.ID, arg.Name, arg.Description, arg.TotalPrice))
}

const updatePackageTotal = `UPDATE packages SET total_price = $2, updated_at = now() WHERE id = $1`

type UpdatePackageTotalParams struct {
	ID         int64
	TotalPrice pgtype.Numeric
}

func (q *Queries) UpdatePackageTotal(ctx context.Context, arg UpdatePackageTotalParams) error {
	_, err := q.db.Exec(ctx, updatePackageTotal, arg.ID, arg.TotalPrice)
	return err
}

const deletePackage = `DELETE FROM packages WHERE id = $1`

func (q *Queries) DeletePackage(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deletePackage, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const packageItemColumns = `id, package_id, product_id, quantity, product_name, product_price, product_category`

func scanPackageItem(row interface{ Scan(...any) error }) (PackageItem, error) {
	var it PackageItem
	err := row.Scan(&it.ID, &it.PackageID, &it.ProductID, &it.Quantity, &it.ProductName, &it.ProductPrice, &it.ProductCategory)
	return it, err
}

const listPackageItems = `SELECT ` + packageItemColumns + `
FROM package_items
WHERE package_id = ANY($1::bigint[])
ORDER BY package_id, id`

func (q *Queries) ListPackageItems(ctx context.Context, packageIDs []int64) ([]PackageItem, error) {
	rows, err := q.db.Query(ctx, listPackageItems, packageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PackageItem
	for rows.Next() {
		it, err := scanPackageItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const createPackageItem = `INSERT INTO package_items (package_id, product_id, quantity, product_name, product_price, product_category)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + packageItemColumns

type CreatePackageItemParams struct {
	PackageID       int64
	ProductID       int64
	Quantity        int32
	ProductName     string
	ProductPrice    pgtype.Numeric
	ProductCategory string
}

func (q *Queries) CreatePackageItem(ctx context.Context, arg CreatePackageItemParams) (PackageItem, error) {
	return scanPackageItem(q.db.QueryRow(ctx, createPackageItem,
		arg.PackageID, arg.ProductID, arg.Quantity, arg.ProductName, arg.ProductPrice, arg.ProductCategory))
}

const deletePackageItems = `DELETE FROM package_items WHERE package_id = $1`

func (q *Queries) DeletePackageItems(ctx context.Context, packageID int64) error {
	_, err := q.db.Exec(ctx, deletePackageItems, packageID)
	return err
}
