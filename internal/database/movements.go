package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const movementColumns = `id, supply_item_id, direction, quantity, reason, notes, ticket_id, created_at`

func scanInventoryMovement(row scanner) (InventoryMovement, error) {
	var i InventoryMovement
	err := row.Scan(
		&i.ID,
		&i.SupplyItemID,
		&i.Direction,
		&i.Quantity,
		&i.Reason,
		&i.Notes,
		&i.TicketID,
		&i.CreatedAt,
	)
	return i, err
}

const createInventoryMovement = `
INSERT INTO inventory_movements (supply_item_id, direction, quantity, reason, notes, ticket_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + movementColumns

type CreateInventoryMovementParams struct {
	SupplyItemID uuid.UUID
	Direction    string
	Quantity     decimal.Decimal
	Reason       string
	Notes        pgtype.Text
	TicketID     pgtype.UUID
}

func (q *Queries) CreateInventoryMovement(ctx context.Context, arg CreateInventoryMovementParams) (InventoryMovement, error) {
	return scanInventoryMovement(q.db.QueryRow(ctx, createInventoryMovement,
		arg.SupplyItemID,
		arg.Direction,
		arg.Quantity,
		arg.Reason,
		arg.Notes,
		arg.TicketID,
	))
}

const listInventoryMovements = `
SELECT ` + movementColumns + `
FROM inventory_movements
WHERE ($1::uuid IS NULL OR supply_item_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListInventoryMovementsParams struct {
	SupplyItemID pgtype.UUID
	Limit        int32
	Offset       int32
}

func (q *Queries) ListInventoryMovements(ctx context.Context, arg ListInventoryMovementsParams) ([]InventoryMovement, error) {
	rows, err := q.db.Query(ctx, listInventoryMovements, arg.SupplyItemID, arg.Limit, arg.Offset)
	return collect(rows, err, scanInventoryMovement)
}

const sumOutMovementsSince = `
SELECT supply_item_id, COALESCE(SUM(quantity), 0)::numeric AS total
FROM inventory_movements
WHERE direction = 'out' AND created_at >= $1
GROUP BY supply_item_id`

type SumOutMovementsSinceRow struct {
	SupplyItemID uuid.UUID
	Total        decimal.Decimal
}

func (q *Queries) SumOutMovementsSince(ctx context.Context, since time.Time) ([]SumOutMovementsSinceRow, error) {
	rows, err := q.db.Query(ctx, sumOutMovementsSince, since)
	return collect(rows, err, func(row scanner) (SumOutMovementsSinceRow, error) {
		var i SumOutMovementsSinceRow
		err := row.Scan(&i.SupplyItemID, &i.Total)
		return i, err
	})
}
