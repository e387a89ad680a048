package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, category, name, price, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Category, &p.Name, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const listProducts = `SELECT ` + productColumns + `
FROM products
WHERE ($1::text IS NULL OR category = $1::text)
  AND ($2::text IS NULL OR lower(name) LIKE lower($2::text) ESCAPE '\')
ORDER BY category, name, id`

type ListProductsParams struct {
	Category any
	Q        any
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.Category, searchArg(arg.Q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getProductByID = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProductByID(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByID, id))
}

const listProductsByIDs = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::bigint[]) ORDER BY id`

func (q *Queries) ListProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const createProduct = `INSERT INTO products (category, name, price)
VALUES ($1, $2, $3)
RETURNING ` + productColumns

type CreateProductParams struct {
	Category string
	Name     string
	Price    pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.Category, arg.Name, arg.Price))
}

const updateProduct = `UPDATE products
SET name = $2, price = $3, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID    int64
	Name  string
	Price pgtype.Numeric
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct, arg.ID, arg.Name, arg.Price))
}

const deleteProduct = `DELETE FROM products WHERE id = $1`

func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteAllProducts = `DELETE FROM products`

func (q *Queries) DeleteAllProducts(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAllProducts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listPackageNamesByProduct = `SELECT DISTINCT p.id, p.name
FROM packages p
JOIN package_items pi ON pi.package_id = p.id
WHERE pi.product_id = $1
ORDER BY p.id`

type ListPackageNamesByProductRow struct {
	ID   int64
	Name string
}

func (q *Queries) ListPackageNamesByProduct(ctx context.Context, productID int64) ([]ListPackageNamesByProductRow, error) {
	rows, err := q.db.Query(ctx, listPackageNamesByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPackageNamesByProductRow
	for rows.Next() {
		var r ListPackageNamesByProductRow
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
