package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, price, is_active, created_at, updated_at`

func scanProduct(row scanner) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const createProduct = `
INSERT INTO products (name, price)
VALUES ($1, $2)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name  string
	Price decimal.Decimal
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.Name, arg.Price))
}

const listProducts = `
SELECT ` + productColumns + ` FROM products
WHERE ($1::boolean = false OR is_active = true)
ORDER BY name`

func (q *Queries) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, activeOnly)
	return collect(rows, err, scanProduct)
}

const updateProduct = `
UPDATE products SET
    name       = COALESCE($2, name),
    price      = COALESCE($3, price),
    is_active  = COALESCE($4, is_active),
    updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

// UpdateProductParams leaves a column unchanged when its field is nil/NULL.
type UpdateProductParams struct {
	ID       uuid.UUID
	Name     pgtype.Text
	Price    *decimal.Decimal
	IsActive pgtype.Bool
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct, arg.ID, arg.Name, arg.Price, arg.IsActive))
}
