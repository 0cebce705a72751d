package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/inventory"
	"github.com/cafe-pos/api/internal/middleware"
	"github.com/cafe-pos/api/internal/service"
)

// TicketServicer defines the service methods needed by kitchen ticket handlers.
// Satisfied by *service.TicketService.
type TicketServicer interface {
	CreateTicket(ctx context.Context, req service.CreateTicketRequest) (*service.TicketDetail, error)
	GetTicket(ctx context.Context, id uuid.UUID) (*service.TicketDetail, error)
	ListTickets(ctx context.Context, f service.ListTicketsFilter) ([]database.KitchenTicket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*service.TicketTransition, error)
}

// TicketHandler handles kitchen ticket endpoints.
type TicketHandler struct {
	svc    TicketServicer
	logger *zap.Logger
}

func NewTicketHandler(svc TicketServicer, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers /tickets. Reads are open to any staff role;
// creation is a cashier action and status changes belong to the kitchen.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.UserRoleCashier, enum.UserRoleAdmin)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.UserRoleKitchen, enum.UserRoleAdmin)).Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createTicketRequest struct {
	SaleID string        `json:"sale_id" validate:"required,uuid"`
	Items  []lineRequest `json:"items" validate:"required,min=1,dive"`
}

type updateTicketStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=preparing done cancelled"`
}

type ticketResponse struct {
	ID        uuid.UUID            `json:"id"`
	SaleID    uuid.UUID            `json:"sale_id"`
	Status    string               `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Items     []ticketItemResponse `json:"items,omitempty"`
}

type ticketItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Notes     *string   `json:"notes"`
}

type ticketTransitionResponse struct {
	Ticket         ticketResponse     `json:"ticket"`
	PreviousStatus string             `json:"previous_status"`
	Unchanged      bool               `json:"unchanged"`
	OrdersSynced   int64              `json:"orders_synced"`
	Deduction      *inventory.Summary `json:"deduction,omitempty"`
}

// --- Handlers ---

// List handles GET /tickets?status=.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, h.logger, "list tickets", err)
		return
	}

	tickets, err := h.svc.ListTickets(r.Context(), service.ListTicketsFilter{
		Status: r.URL.Query().Get("status"),
		Page:   page,
	})
	if err != nil {
		writeError(w, h.logger, "list tickets", err)
		return
	}

	resp := make([]ticketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = toTicketResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": resp})
}

// Get handles GET /tickets/{id}.
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "get ticket", err)
		return
	}

	detail, err := h.svc.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, toTicketDetailResponse(detail))
}

// Create handles POST /tickets.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "create ticket", err)
		return
	}

	detail, err := h.svc.CreateTicket(r.Context(), service.CreateTicketRequest{
		SaleID: uuid.MustParse(req.SaleID),
		Items:  toLineRequests(req.Items),
	})
	if err != nil {
		writeError(w, h.logger, "create ticket", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketDetailResponse(detail))
}

// UpdateStatus handles PATCH /tickets/{id}/status.
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "update ticket status", err)
		return
	}

	var req updateTicketStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "update ticket status", err)
		return
	}

	result, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, h.logger, "update ticket status", err)
		return
	}
	writeJSON(w, http.StatusOK, ticketTransitionResponse{
		Ticket:         toTicketResponse(result.Ticket),
		PreviousStatus: result.PreviousStatus,
		Unchanged:      result.Unchanged,
		OrdersSynced:   result.OrdersSynced,
		Deduction:      result.Deduction,
	})
}

func toTicketResponse(t database.KitchenTicket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		SaleID:    t.SaleID,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTicketDetailResponse(d *service.TicketDetail) ticketResponse {
	resp := toTicketResponse(d.Ticket)
	resp.Items = make([]ticketItemResponse, len(d.Items))
	for i, it := range d.Items {
		resp.Items[i] = ticketItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Notes:     textPtr(it.Notes),
		}
	}
	return resp
}
