package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
)

const (
	defaultTopProducts = 10
	maxTopProducts     = 100
	maxReportSpan      = 366 * 24 * time.Hour
)

// DateRange is the half-open interval [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return apperr.Validation("from and to are required")
	}
	if !r.From.Before(r.To) {
		return apperr.Validation("from must be before to")
	}
	if r.To.Sub(r.From) > maxReportSpan {
		return apperr.Validation("date range must not exceed 366 days")
	}
	return nil
}

// SalesReportStore defines the aggregate sales queries.
// Satisfied by *database.Queries.
type SalesReportStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error)
}

type NewSalesReportStore func(db database.DBTX) SalesReportStore

type DailySales struct {
	Date          string          `json:"date"`
	SaleCount     int64           `json:"sale_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

type ProductSales struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int64           `json:"quantity_sold"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	SaleCount    int64           `json:"sale_count"`
}

// SalesReportService aggregates recorded sales. Reads only.
type SalesReportService struct {
	pool     Pool
	newStore NewSalesReportStore
	logger   *zap.Logger
}

func NewSalesReportService(pool Pool, newStore NewSalesReportStore, logger *zap.Logger) *SalesReportService {
	return &SalesReportService{pool: pool, newStore: newStore, logger: logger}
}

// DailySales returns one row per UTC day in the range that has sales,
// oldest first.
func (s *SalesReportService) DailySales(ctx context.Context, rng DateRange) ([]DailySales, error) {
	if err := rng.validate(); err != nil {
		return nil, err
	}
	rows, err := s.newStore(s.pool).GetDailySales(ctx, database.GetDailySalesParams{From: rng.From, To: rng.To})
	if err != nil {
		return nil, apperr.FromStore(err, "sales", "get daily sales")
	}

	out := make([]DailySales, len(rows))
	for i, row := range rows {
		out[i] = DailySales{
			Date:          row.SaleDate.Format(time.DateOnly),
			SaleCount:     row.SaleCount,
			TotalRevenue:  row.TotalRevenue.Round(2),
			AverageTicket: row.AverageTicket.Round(2),
		}
	}
	return out, nil
}

// ProductSales ranks products by units sold in the range. limit defaults
// to 10 and is capped at 100.
func (s *SalesReportService) ProductSales(ctx context.Context, rng DateRange, limit int) ([]ProductSales, error) {
	if err := rng.validate(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, apperr.Validation("limit must be positive")
	}
	if limit == 0 {
		limit = defaultTopProducts
	}
	if limit > maxTopProducts {
		limit = maxTopProducts
	}

	rows, err := s.newStore(s.pool).GetProductSales(ctx, database.GetProductSalesParams{
		From:  rng.From,
		To:    rng.To,
		Limit: int32(limit),
	})
	if err != nil {
		return nil, apperr.FromStore(err, "sales", "get product sales")
	}

	out := make([]ProductSales, len(rows))
	for i, row := range rows {
		out[i] = ProductSales{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: row.TotalRevenue.Round(2),
			SaleCount:    row.SaleCount,
		}
	}
	return out, nil
}
