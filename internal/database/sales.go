package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const saleColumns = `id, customer_id, operator_id, total, payment_method, service_type,
	milk_type, milk_surcharge, comments, created_at`

func scanSale(row scanner) (Sale, error) {
	var i Sale
	err := row.Scan(
		&i.ID,
		&i.CustomerID,
		&i.OperatorID,
		&i.Total,
		&i.PaymentMethod,
		&i.ServiceType,
		&i.MilkType,
		&i.MilkSurcharge,
		&i.Comments,
		&i.CreatedAt,
	)
	return i, err
}

func scanSaleItem(row scanner) (SaleItem, error) {
	var i SaleItem
	err := row.Scan(&i.ID, &i.SaleID, &i.ProductID, &i.Quantity, &i.UnitPrice, &i.Subtotal)
	return i, err
}

const createSale = `
INSERT INTO sales (customer_id, operator_id, total, payment_method, service_type,
	milk_type, milk_surcharge, comments)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + saleColumns

type CreateSaleParams struct {
	CustomerID    pgtype.UUID
	OperatorID    uuid.UUID
	Total         decimal.Decimal
	PaymentMethod string
	ServiceType   pgtype.Text
	MilkType      pgtype.Text
	MilkSurcharge decimal.Decimal
	Comments      pgtype.Text
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, createSale,
		arg.CustomerID,
		arg.OperatorID,
		arg.Total,
		arg.PaymentMethod,
		arg.ServiceType,
		arg.MilkType,
		arg.MilkSurcharge,
		arg.Comments,
	))
}

const createSaleItem = `
INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, sale_id, product_id, quantity, unit_price, subtotal`

type CreateSaleItemParams struct {
	SaleID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, createSaleItem, arg.SaleID, arg.ProductID, arg.Quantity, arg.UnitPrice, arg.Subtotal))
}

const getSale = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`

func (q *Queries) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSale, id))
}

const listSaleItemsBySale = `
SELECT id, sale_id, product_id, quantity, unit_price, subtotal
FROM sale_items
WHERE sale_id = $1
ORDER BY id`

func (q *Queries) ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx, listSaleItemsBySale, saleID)
	return collect(rows, err, scanSaleItem)
}

const listSalesBetween = `SELECT ` + saleColumns + `
FROM sales
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4`

type ListSalesBetweenParams struct {
	From   time.Time
	To     time.Time
	Limit  int32
	Offset int32
}

// ListSalesBetween returns sales created in [From, To), newest first.
func (q *Queries) ListSalesBetween(ctx context.Context, arg ListSalesBetweenParams) ([]Sale, error) {
	rows, err := q.db.Query(ctx, listSalesBetween, arg.From, arg.To, arg.Limit, arg.Offset)
	return collect(rows, err, scanSale)
}
