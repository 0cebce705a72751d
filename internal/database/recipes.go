package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func scanRecipeLine(row scanner) (RecipeLine, error) {
	var i RecipeLine
	err := row.Scan(&i.ID, &i.ProductID, &i.SupplyItemID, &i.Quantity, &i.Unit)
	return i, err
}

const listRecipeLinesByProduct = `
SELECT id, product_id, supply_item_id, quantity, unit
FROM recipe_lines
WHERE product_id = $1
ORDER BY supply_item_id`

func (q *Queries) ListRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) ([]RecipeLine, error) {
	rows, err := q.db.Query(ctx, listRecipeLinesByProduct, productID)
	return collect(rows, err, scanRecipeLine)
}

const countRecipeLinesByProducts = `SELECT count(*) FROM recipe_lines WHERE product_id = ANY($1::uuid[])`

func (q *Queries) CountRecipeLinesByProducts(ctx context.Context, productIDs []uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countRecipeLinesByProducts, productIDs).Scan(&count)
	return count, err
}

const deleteRecipeLinesByProduct = `DELETE FROM recipe_lines WHERE product_id = $1`

func (q *Queries) DeleteRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteRecipeLinesByProduct, productID)
	return err
}

const createRecipeLine = `
INSERT INTO recipe_lines (product_id, supply_item_id, quantity, unit)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, supply_item_id, quantity, unit`

type CreateRecipeLineParams struct {
	ProductID    uuid.UUID
	SupplyItemID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
}

func (q *Queries) CreateRecipeLine(ctx context.Context, arg CreateRecipeLineParams) (RecipeLine, error) {
	return scanRecipeLine(q.db.QueryRow(ctx, createRecipeLine, arg.ProductID, arg.SupplyItemID, arg.Quantity, arg.Unit))
}
