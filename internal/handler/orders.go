package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateWebOrder(ctx context.Context, req service.CreateWebOrderRequest) (*service.OrderDetail, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error)
	ListOrders(ctx context.Context, f service.ListOrdersFilter) ([]database.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, req service.UpdateOrderRequest) (*database.Order, error)
	DeliverOrder(ctx context.Context, id uuid.UUID) (*database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// RegisterPublicRoutes registers the storefront intake: POST /public/orders.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.CreateWeb)
}

// RegisterRoutes registers staff order endpoints, mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/deliver", h.Deliver)
}

// --- Request / Response types ---

type lineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int32  `json:"quantity" validate:"gte=1"`
	Notes     string `json:"notes" validate:"max=500"`
}

type createWebOrderRequest struct {
	CustomerName  string           `json:"customer_name" validate:"max=120"`
	ServiceType   string           `json:"service_type" validate:"omitempty,oneof=dine_in takeaway"`
	MilkType      string           `json:"milk_type" validate:"omitempty,oneof=whole lactose_free"`
	MilkSurcharge *decimal.Decimal `json:"milk_surcharge"`
	Comments      string           `json:"comments" validate:"max=1000"`
	Items         []lineRequest    `json:"items" validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	CustomerName *string `json:"customer_name" validate:"omitempty,max=120"`
	Status       *string `json:"status" validate:"omitempty,oneof=initial at_register paid in_kitchen ready delivered cancelled"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	CustomerName  *string             `json:"customer_name"`
	Status        string              `json:"status"`
	Origin        string              `json:"origin"`
	ServiceType   *string             `json:"service_type"`
	MilkType      *string             `json:"milk_type"`
	MilkSurcharge string              `json:"milk_surcharge"`
	Comments      *string             `json:"comments"`
	Total         string              `json:"total"`
	SaleID        *uuid.UUID          `json:"sale_id"`
	TicketCode    *string             `json:"ticket_code"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Notes     *string   `json:"notes"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int32           `json:"limit"`
	Offset int32           `json:"offset"`
}

// --- Handlers ---

// CreateWeb handles POST /public/orders.
func (h *OrderHandler) CreateWeb(w http.ResponseWriter, r *http.Request) {
	var req createWebOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "create web order", err)
		return
	}

	svcReq := service.CreateWebOrderRequest{
		CustomerName: req.CustomerName,
		ServiceType:  req.ServiceType,
		MilkType:     req.MilkType,
		Comments:     req.Comments,
		Items:        toLineRequests(req.Items),
	}
	if req.MilkSurcharge != nil {
		svcReq.MilkSurcharge = *req.MilkSurcharge
	}

	detail, err := h.svc.CreateWebOrder(r.Context(), svcReq)
	if err != nil {
		writeError(w, h.logger, "create web order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(detail))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, h.logger, "list orders", err)
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), service.ListOrdersFilter{
		Status: r.URL.Query().Get("status"),
		Origin: r.URL.Query().Get("origin"),
		Page:   page,
	})
	if err != nil {
		writeError(w, h.logger, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: page.Limit, Offset: page.Offset})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "get order", err)
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// Update handles PATCH /orders/{id}.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "update order", err)
		return
	}

	var req updateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "update order", err)
		return
	}

	order, err := h.svc.UpdateOrder(r.Context(), id, service.UpdateOrderRequest{
		CustomerName: req.CustomerName,
		Status:       req.Status,
	})
	if err != nil {
		writeError(w, h.logger, "update order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Deliver handles POST /orders/{id}/deliver.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "deliver order", err)
		return
	}

	order, err := h.svc.DeliverOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "deliver order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// --- Helpers ---

// toLineRequests assumes the lines passed validation (product_id is a UUID).
func toLineRequests(lines []lineRequest) []service.LineRequest {
	out := make([]service.LineRequest, len(lines))
	for i, l := range lines {
		out[i] = service.LineRequest{
			ProductID: uuid.MustParse(l.ProductID),
			Quantity:  l.Quantity,
			Notes:     l.Notes,
		}
	}
	return out
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		CustomerName:  textPtr(o.CustomerName),
		Status:        o.Status,
		Origin:        o.Origin,
		ServiceType:   textPtr(o.ServiceType),
		MilkType:      textPtr(o.MilkType),
		MilkSurcharge: o.MilkSurcharge.StringFixed(2),
		Comments:      textPtr(o.Comments),
		Total:         o.Total.StringFixed(2),
		SaleID:        uuidPtr(o.SaleID),
		TicketCode:    textPtr(o.TicketCode),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderDetailResponse(d *service.OrderDetail) orderResponse {
	resp := toOrderResponse(d.Order)
	resp.Items = make([]orderItemResponse, len(d.Items))
	for i, it := range d.Items {
		resp.Items[i] = orderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Notes:     textPtr(it.Notes),
		}
	}
	return resp
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
