package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const supplyColumns = `id, name, normalized_name, unit, quantity, min_quantity, unit_cost,
	is_active, created_at, updated_at`

// SupplyNormalizedNameConstraint is the unique key used for duplicate detection.
const SupplyNormalizedNameConstraint = "supply_items_normalized_name_key"

func scanSupplyItem(row scanner) (SupplyItem, error) {
	var i SupplyItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.NormalizedName,
		&i.Unit,
		&i.Quantity,
		&i.MinQuantity,
		&i.UnitCost,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createSupplyItem = `
INSERT INTO supply_items (name, normalized_name, unit, quantity, min_quantity, unit_cost)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + supplyColumns

type CreateSupplyItemParams struct {
	Name           string
	NormalizedName string
	Unit           string
	Quantity       decimal.Decimal
	MinQuantity    decimal.Decimal
	UnitCost       decimal.Decimal
}

func (q *Queries) CreateSupplyItem(ctx context.Context, arg CreateSupplyItemParams) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, createSupplyItem,
		arg.Name,
		arg.NormalizedName,
		arg.Unit,
		arg.Quantity,
		arg.MinQuantity,
		arg.UnitCost,
	))
}

const getSupplyItem = `SELECT ` + supplyColumns + ` FROM supply_items WHERE id = $1`

func (q *Queries) GetSupplyItem(ctx context.Context, id uuid.UUID) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, getSupplyItem, id))
}

const getSupplyItemForUpdate = `SELECT ` + supplyColumns + ` FROM supply_items WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetSupplyItemForUpdate(ctx context.Context, id uuid.UUID) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, getSupplyItemForUpdate, id))
}

const getSupplyItemByNormalizedName = `SELECT ` + supplyColumns + ` FROM supply_items WHERE normalized_name = $1`

func (q *Queries) GetSupplyItemByNormalizedName(ctx context.Context, normalizedName string) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, getSupplyItemByNormalizedName, normalizedName))
}

const updateSupplyItem = `
UPDATE supply_items
SET name            = COALESCE($2, name),
    normalized_name = COALESCE($3, normalized_name),
    min_quantity    = COALESCE($4, min_quantity),
    unit_cost       = COALESCE($5, unit_cost),
    is_active       = COALESCE($6, is_active),
    updated_at      = now()
WHERE id = $1
RETURNING ` + supplyColumns

// UpdateSupplyItemParams leaves a column unchanged when its field is nil/NULL.
// Name and NormalizedName are set together. Quantity only moves through
// inventory movements.
type UpdateSupplyItemParams struct {
	ID             uuid.UUID
	Name           pgtype.Text
	NormalizedName pgtype.Text
	MinQuantity    *decimal.Decimal
	UnitCost       *decimal.Decimal
	IsActive       pgtype.Bool
}

func (q *Queries) UpdateSupplyItem(ctx context.Context, arg UpdateSupplyItemParams) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, updateSupplyItem,
		arg.ID,
		arg.Name,
		arg.NormalizedName,
		arg.MinQuantity,
		arg.UnitCost,
		arg.IsActive,
	))
}

const listSupplyItems = `
SELECT ` + supplyColumns + `
FROM supply_items
WHERE ($1::bool = false OR is_active = true)
ORDER BY name`

func (q *Queries) ListSupplyItems(ctx context.Context, activeOnly bool) ([]SupplyItem, error) {
	rows, err := q.db.Query(ctx, listSupplyItems, activeOnly)
	return collect(rows, err, scanSupplyItem)
}

const listLowStockSupplyItems = `
SELECT ` + supplyColumns + `
FROM supply_items
WHERE is_active = true AND quantity <= min_quantity
ORDER BY quantity - min_quantity ASC, name`

func (q *Queries) ListLowStockSupplyItems(ctx context.Context) ([]SupplyItem, error) {
	rows, err := q.db.Query(ctx, listLowStockSupplyItems)
	return collect(rows, err, scanSupplyItem)
}

// DecrementSupplyQuantity matches no row when stock would go negative.
const decrementSupplyQuantity = `
UPDATE supply_items
SET quantity = quantity - $2, updated_at = now()
WHERE id = $1 AND quantity >= $2
RETURNING ` + supplyColumns

type AdjustSupplyQuantityParams struct {
	ID       uuid.UUID
	Quantity decimal.Decimal
}

func (q *Queries) DecrementSupplyQuantity(ctx context.Context, arg AdjustSupplyQuantityParams) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, decrementSupplyQuantity, arg.ID, arg.Quantity))
}

const incrementSupplyQuantity = `
UPDATE supply_items
SET quantity = quantity + $2, updated_at = now()
WHERE id = $1
RETURNING ` + supplyColumns

func (q *Queries) IncrementSupplyQuantity(ctx context.Context, arg AdjustSupplyQuantityParams) (SupplyItem, error) {
	return scanSupplyItem(q.db.QueryRow(ctx, incrementSupplyQuantity, arg.ID, arg.Quantity))
}
