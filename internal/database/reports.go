package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Report days are UTC calendar days.

const getDailySales = `
SELECT (created_at AT TIME ZONE 'UTC')::date AS sale_date,
	COUNT(*) AS sale_count,
	COALESCE(SUM(total), 0) AS total_revenue,
	COALESCE(AVG(total), 0) AS average_ticket
FROM sales
WHERE created_at >= $1 AND created_at < $2
GROUP BY sale_date
ORDER BY sale_date`

type GetDailySalesParams struct {
	From time.Time
	To   time.Time
}

type GetDailySalesRow struct {
	SaleDate      time.Time
	SaleCount     int64
	TotalRevenue  decimal.Decimal
	AverageTicket decimal.Decimal
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.From, arg.To)
	return collect(rows, err, func(row scanner) (GetDailySalesRow, error) {
		var i GetDailySalesRow
		err := row.Scan(&i.SaleDate, &i.SaleCount, &i.TotalRevenue, &i.AverageTicket)
		return i, err
	})
}

const getProductSales = `
SELECT p.id, p.name,
	SUM(si.quantity)::bigint AS quantity_sold,
	SUM(si.subtotal) AS total_revenue,
	COUNT(DISTINCT si.sale_id) AS sale_count
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
JOIN products p ON p.id = si.product_id
WHERE s.created_at >= $1 AND s.created_at < $2
GROUP BY p.id, p.name
ORDER BY quantity_sold DESC, total_revenue DESC, p.name
LIMIT $3`

type GetProductSalesParams struct {
	From  time.Time
	To    time.Time
	Limit int32
}

type GetProductSalesRow struct {
	ProductID    uuid.UUID
	ProductName  string
	QuantitySold int64
	TotalRevenue decimal.Decimal
	SaleCount    int64
}

func (q *Queries) GetProductSales(ctx context.Context, arg GetProductSalesParams) ([]GetProductSalesRow, error) {
	rows, err := q.db.Query(ctx, getProductSales, arg.From, arg.To, arg.Limit)
	return collect(rows, err, func(row scanner) (GetProductSalesRow, error) {
		var i GetProductSalesRow
		err := row.Scan(&i.ProductID, &i.ProductName, &i.QuantitySold, &i.TotalRevenue, &i.SaleCount)
		return i, err
	})
}
