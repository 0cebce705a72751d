package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_name, status, origin, service_type, milk_type, milk_surcharge,
	comments, total, sale_id, ticket_code, created_at, updated_at`

func scanOrder(row scanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CustomerName,
		&i.Status,
		&i.Origin,
		&i.ServiceType,
		&i.MilkType,
		&i.MilkSurcharge,
		&i.Comments,
		&i.Total,
		&i.SaleID,
		&i.TicketCode,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanOrderItem(row scanner) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.Notes)
	return i, err
}

const createOrder = `
INSERT INTO orders (customer_name, status, origin, service_type, milk_type, milk_surcharge,
	comments, total, sale_id, ticket_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CustomerName  pgtype.Text
	Status        string
	Origin        string
	ServiceType   pgtype.Text
	MilkType      pgtype.Text
	MilkSurcharge decimal.Decimal
	Comments      pgtype.Text
	Total         decimal.Decimal
	SaleID        pgtype.UUID
	TicketCode    pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CustomerName,
		arg.Status,
		arg.Origin,
		arg.ServiceType,
		arg.MilkType,
		arg.MilkSurcharge,
		arg.Comments,
		arg.Total,
		arg.SaleID,
		arg.TicketCode,
	))
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, quantity, notes)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, product_id, quantity, notes`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Notes     pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.ProductID, arg.Quantity, arg.Notes))
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, quantity, notes
FROM order_items
WHERE order_id = $1
ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	return collect(rows, err, scanOrderItem)
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE status = ANY($1::text[])
  AND ($2::text IS NULL OR origin = $2)
ORDER BY created_at ASC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	Statuses []string
	Origin   pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Statuses, arg.Origin, arg.Limit, arg.Offset)
	return collect(rows, err, scanOrder)
}

// UpdateOrder only matches while the order is still in ExpectedStatus.
const updateOrder = `
UPDATE orders
SET customer_name = COALESCE($2, customer_name),
    status = $3,
    updated_at = now()
WHERE id = $1 AND status = $4
RETURNING ` + orderColumns

type UpdateOrderParams struct {
	ID             uuid.UUID
	CustomerName   pgtype.Text
	Status         string
	ExpectedStatus string
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrder, arg.ID, arg.CustomerName, arg.Status, arg.ExpectedStatus))
}

const markOrderPaid = `
UPDATE orders
SET status = 'paid', sale_id = $2, ticket_code = $3, updated_at = now()
WHERE id = $1 AND status = 'at_register'
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID         uuid.UUID
	SaleID     uuid.UUID
	TicketCode string
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.SaleID, arg.TicketCode))
}

const syncOrderStatusBySale = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE sale_id = $1 AND status = ANY($3::text[])`

type SyncOrderStatusBySaleParams struct {
	SaleID       uuid.UUID
	Status       string
	FromStatuses []string
}

// SyncOrderStatusBySale returns the number of orders moved.
func (q *Queries) SyncOrderStatusBySale(ctx context.Context, arg SyncOrderStatusBySaleParams) (int64, error) {
	tag, err := q.db.Exec(ctx, syncOrderStatusBySale, arg.SaleID, arg.Status, arg.FromStatuses)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
