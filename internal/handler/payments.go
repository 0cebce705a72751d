package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService.
type PaymentServicer interface {
	ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest) (*service.PaymentResult, error)
	CreateDirectSale(ctx context.Context, req service.DirectSaleRequest) (*service.DirectSaleResult, error)
	GetSale(ctx context.Context, id uuid.UUID) (*service.SaleDetail, error)
	ListSales(ctx context.Context, rng service.DateRange, page service.Page) ([]database.Sale, error)
}

// PaymentHandler handles order payment and in-person sale endpoints.
type PaymentHandler struct {
	svc    PaymentServicer
	logger *zap.Logger
}

func NewPaymentHandler(svc PaymentServicer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

// RegisterOrderRoutes registers POST /{id}/payment inside the /orders route.
func (h *PaymentHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/payment", h.Pay)
}

// RegisterSaleRoutes registers the /sales endpoints.
func (h *PaymentHandler) RegisterSaleRoutes(r chi.Router) {
	r.Get("/", h.ListSales)
	r.Post("/", h.CreateDirectSale)
	r.Get("/{id}", h.GetSale)
}

// --- Request / Response types ---

type payOrderRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card transfer"`
	OperatorID    string `json:"operator_id" validate:"omitempty,uuid"`
	CustomerID    string `json:"customer_id" validate:"omitempty,uuid"`
}

type directSaleRequest struct {
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=cash card transfer"`
	OperatorID    string           `json:"operator_id" validate:"omitempty,uuid"`
	CustomerID    string           `json:"customer_id" validate:"omitempty,uuid"`
	CustomerName  string           `json:"customer_name" validate:"max=120"`
	ServiceType   string           `json:"service_type" validate:"omitempty,oneof=dine_in takeaway"`
	MilkType      string           `json:"milk_type" validate:"omitempty,oneof=whole lactose_free"`
	MilkSurcharge *decimal.Decimal `json:"milk_surcharge"`
	Comments      string           `json:"comments" validate:"max=1000"`
	Items         []lineRequest    `json:"items" validate:"required,min=1,dive"`
}

type saleResponse struct {
	ID            uuid.UUID          `json:"id"`
	CustomerID    *uuid.UUID         `json:"customer_id"`
	OperatorID    uuid.UUID          `json:"operator_id"`
	Total         string             `json:"total"`
	PaymentMethod string             `json:"payment_method"`
	ServiceType   *string            `json:"service_type"`
	MilkType      *string            `json:"milk_type"`
	MilkSurcharge string             `json:"milk_surcharge"`
	Comments      *string            `json:"comments"`
	CreatedAt     time.Time          `json:"created_at"`
	Items         []saleItemResponse `json:"items,omitempty"`
}

type saleItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
}

// --- Handlers ---

// Pay handles POST /orders/{id}/payment. Without an explicit operator_id
// the authenticated staff member is recorded as the operator.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "process payment", err)
		return
	}

	var req payOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "process payment", err)
		return
	}

	result, err := h.svc.ProcessPayment(r.Context(), service.ProcessPaymentRequest{
		OrderID:       orderID,
		OperatorID:    operatorFor(r, req.OperatorID),
		PaymentMethod: req.PaymentMethod,
		CustomerID:    optionalID(req.CustomerID),
	})
	if err != nil {
		writeError(w, h.logger, "process payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// CreateDirectSale handles POST /sales.
func (h *PaymentHandler) CreateDirectSale(w http.ResponseWriter, r *http.Request) {
	var req directSaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "create direct sale", err)
		return
	}

	svcReq := service.DirectSaleRequest{
		OperatorID:    operatorFor(r, req.OperatorID),
		PaymentMethod: req.PaymentMethod,
		CustomerID:    optionalID(req.CustomerID),
		CustomerName:  req.CustomerName,
		ServiceType:   req.ServiceType,
		MilkType:      req.MilkType,
		Comments:      req.Comments,
		Items:         toLineRequests(req.Items),
	}
	if req.MilkSurcharge != nil {
		svcReq.MilkSurcharge = *req.MilkSurcharge
	}

	result, err := h.svc.CreateDirectSale(r.Context(), svcReq)
	if err != nil {
		writeError(w, h.logger, "create direct sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetSale handles GET /sales/{id}.
func (h *PaymentHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "get sale", err)
		return
	}

	detail, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get sale", err)
		return
	}

	resp := toSaleResponse(detail.Sale)
	resp.Items = make([]saleItemResponse, len(detail.Items))
	for i, it := range detail.Items {
		resp.Items[i] = saleItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Subtotal:  it.Subtotal.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSales handles GET /sales?from=&to=. Items are served by GET /sales/{id}.
func (h *PaymentHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r, time.Now())
	if err != nil {
		writeError(w, h.logger, "list sales", err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, h.logger, "list sales", err)
		return
	}

	sales, err := h.svc.ListSales(r.Context(), rng, page)
	if err != nil {
		writeError(w, h.logger, "list sales", err)
		return
	}
	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = toSaleResponse(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": resp})
}

// --- Helpers ---

func toSaleResponse(s database.Sale) saleResponse {
	return saleResponse{
		ID:            s.ID,
		CustomerID:    uuidPtr(s.CustomerID),
		OperatorID:    s.OperatorID,
		Total:         s.Total.StringFixed(2),
		PaymentMethod: s.PaymentMethod,
		ServiceType:   textPtr(s.ServiceType),
		MilkType:      textPtr(s.MilkType),
		MilkSurcharge: s.MilkSurcharge.StringFixed(2),
		Comments:      textPtr(s.Comments),
		CreatedAt:     s.CreatedAt,
	}
}

func operatorFor(r *http.Request, explicit string) *uuid.UUID {
	if id := optionalID(explicit); id != nil {
		return id
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		id := claims.UserID
		return &id
	}
	return nil
}

// optionalID parses an already-validated UUID string; empty means absent.
func optionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
