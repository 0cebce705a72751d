package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/inventory"
	"github.com/cafe-pos/api/internal/service"
)

// RecommendationServicer is satisfied by *service.InventoryService.
type RecommendationServicer interface {
	PurchaseRecommendations(ctx context.Context, months int) (*inventory.RecommendationReport, error)
}

// SalesReportServicer defines the sales aggregates.
// Satisfied by *service.SalesReportService.
type SalesReportServicer interface {
	DailySales(ctx context.Context, rng service.DateRange) ([]service.DailySales, error)
	ProductSales(ctx context.Context, rng service.DateRange, limit int) ([]service.ProductSales, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	recs   RecommendationServicer
	sales  SalesReportServicer
	logger *zap.Logger
	now    func() time.Time
}

func NewReportsHandler(recs RecommendationServicer, sales SalesReportServicer, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{recs: recs, sales: sales, logger: logger, now: time.Now}
}

// RegisterRoutes registers /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
	r.Get("/product-sales", h.ProductSales)
	r.Get("/purchase-recommendations", h.PurchaseRecommendations)
}

// DailySales handles GET /reports/daily-sales?from=&to=.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r, h.now())
	if err != nil {
		writeError(w, h.logger, "daily sales", err)
		return
	}

	days, err := h.sales.DailySales(r.Context(), rng)
	if err != nil {
		writeError(w, h.logger, "daily sales", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// ProductSales handles GET /reports/product-sales?from=&to=&limit=N.
func (h *ReportsHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r, h.now())
	if err != nil {
		writeError(w, h.logger, "product sales", err)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, h.logger, "product sales", apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = v
	}

	products, err := h.sales.ProductSales(r.Context(), rng, limit)
	if err != nil {
		writeError(w, h.logger, "product sales", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// PurchaseRecommendations handles GET /reports/purchase-recommendations?months=N.
func (h *ReportsHandler) PurchaseRecommendations(w http.ResponseWriter, r *http.Request) {
	months := 0
	if s := r.URL.Query().Get("months"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, h.logger, "purchase recommendations", apperr.Validation("months must be an integer"))
			return
		}
		months = v
	}

	report, err := h.recs.PurchaseRecommendations(r.Context(), months)
	if err != nil {
		writeError(w, h.logger, "purchase recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
