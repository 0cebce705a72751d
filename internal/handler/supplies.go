package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
)

// SupplyServicer defines the ledger maintenance methods used by supply handlers.
// Satisfied by *service.InventoryService.
type SupplyServicer interface {
	CreateSupplyItem(ctx context.Context, req service.CreateSupplyItemRequest) (*database.SupplyItem, error)
	GetSupplyItem(ctx context.Context, id uuid.UUID) (*database.SupplyItem, error)
	UpdateSupplyItem(ctx context.Context, id uuid.UUID, req service.UpdateSupplyItemRequest) (*database.SupplyItem, error)
	ListSupplyItems(ctx context.Context, activeOnly bool) ([]database.SupplyItem, error)
	ListLowStock(ctx context.Context) ([]database.SupplyItem, error)
	RecordMovement(ctx context.Context, req service.RecordMovementRequest) (*service.MovementResult, error)
	ListMovements(ctx context.Context, f service.ListMovementsFilter) ([]database.InventoryMovement, error)
}

// SupplyHandler handles supply items and their movement ledger.
type SupplyHandler struct {
	svc    SupplyServicer
	logger *zap.Logger
}

func NewSupplyHandler(svc SupplyServicer, logger *zap.Logger) *SupplyHandler {
	return &SupplyHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers /supplies.
func (h *SupplyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/low-stock", h.LowStock)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Get("/{id}/movements", h.ListItemMovements)
	r.Post("/{id}/movements", h.RecordMovement)
}

// RegisterMovementRoutes registers /movements, the ledger across all items.
func (h *SupplyHandler) RegisterMovementRoutes(r chi.Router) {
	r.Get("/", h.ListMovements)
}

// --- Request types ---

type createSupplyItemRequest struct {
	Name        string           `json:"name" validate:"required,max=120"`
	Unit        string           `json:"unit" validate:"required,max=20"`
	Quantity    *decimal.Decimal `json:"quantity"`
	MinQuantity *decimal.Decimal `json:"min_quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
}

type updateSupplyItemRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	MinQuantity *decimal.Decimal `json:"min_quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	IsActive    *bool            `json:"is_active"`
}

type recordMovementRequest struct {
	Direction string          `json:"direction" validate:"required,oneof=in out"`
	Quantity  decimal.Decimal `json:"quantity"`
	Reason    string          `json:"reason" validate:"required,max=120"`
	Notes     string          `json:"notes" validate:"max=500"`
}

// --- Handlers ---

// List handles GET /supplies?active=true.
func (h *SupplyHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if s := r.URL.Query().Get("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, h.logger, "list supplies", apperr.Validation("active must be a boolean"))
			return
		}
		activeOnly = v
	}

	items, err := h.svc.ListSupplyItems(r.Context(), activeOnly)
	if err != nil {
		writeError(w, h.logger, "list supplies", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supply_items": items})
}

// Create handles POST /supplies.
func (h *SupplyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSupplyItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "create supply item", err)
		return
	}

	item, err := h.svc.CreateSupplyItem(r.Context(), service.CreateSupplyItemRequest{
		Name:        req.Name,
		Unit:        req.Unit,
		Quantity:    orZero(req.Quantity),
		MinQuantity: orZero(req.MinQuantity),
		UnitCost:    orZero(req.UnitCost),
	})
	if err != nil {
		writeError(w, h.logger, "create supply item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// LowStock handles GET /supplies/low-stock.
func (h *SupplyHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListLowStock(r.Context())
	if err != nil {
		writeError(w, h.logger, "list low stock", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supply_items": items})
}

// Get handles GET /supplies/{id}.
func (h *SupplyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "get supply item", err)
		return
	}

	item, err := h.svc.GetSupplyItem(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get supply item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Update handles PATCH /supplies/{id}. Omitted fields are left unchanged.
func (h *SupplyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "update supply item", err)
		return
	}

	var req updateSupplyItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "update supply item", err)
		return
	}

	item, err := h.svc.UpdateSupplyItem(r.Context(), id, service.UpdateSupplyItemRequest{
		Name:        req.Name,
		MinQuantity: req.MinQuantity,
		UnitCost:    req.UnitCost,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(w, h.logger, "update supply item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// RecordMovement handles POST /supplies/{id}/movements.
func (h *SupplyHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "record movement", err)
		return
	}

	var req recordMovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "record movement", err)
		return
	}

	result, err := h.svc.RecordMovement(r.Context(), service.RecordMovementRequest{
		SupplyItemID: id,
		Direction:    req.Direction,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, h.logger, "record movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"movement":    result.Movement,
		"supply_item": result.SupplyItem,
	})
}

// ListItemMovements handles GET /supplies/{id}/movements.
func (h *SupplyHandler) ListItemMovements(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "list movements", err)
		return
	}
	h.listMovements(w, r, &id)
}

// ListMovements handles GET /movements.
func (h *SupplyHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	h.listMovements(w, r, nil)
}

func (h *SupplyHandler) listMovements(w http.ResponseWriter, r *http.Request, supplyItemID *uuid.UUID) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, h.logger, "list movements", err)
		return
	}

	movements, err := h.svc.ListMovements(r.Context(), service.ListMovementsFilter{
		SupplyItemID: supplyItemID,
		Page:         page,
	})
	if err != nil {
		writeError(w, h.logger, "list movements", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
