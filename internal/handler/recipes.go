package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/service"
)

// RecipeServicer defines the recipe maintenance methods.
// Satisfied by *service.InventoryService.
type RecipeServicer interface {
	GetRecipe(ctx context.Context, productID uuid.UUID) ([]database.RecipeLine, error)
	ReplaceRecipe(ctx context.Context, productID uuid.UUID, lines []service.RecipeLineRequest) ([]database.RecipeLine, error)
}

// RecipeHandler handles product recipe endpoints.
type RecipeHandler struct {
	svc    RecipeServicer
	logger *zap.Logger
}

func NewRecipeHandler(svc RecipeServicer, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers /{id}/recipe; expected to be mounted at /products.
func (h *RecipeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}/recipe", h.Get)
	r.Put("/{id}/recipe", h.Replace)
}

type recipeLineRequest struct {
	SupplyItemID string          `json:"supply_item_id" validate:"required,uuid"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" validate:"required,max=20"`
}

// replaceRecipeRequest carries the full recipe; an empty list clears it.
type replaceRecipeRequest struct {
	Lines []recipeLineRequest `json:"lines" validate:"dive"`
}

// Get handles GET /products/{id}/recipe.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "get recipe", err)
		return
	}

	lines, err := h.svc.GetRecipe(r.Context(), productID)
	if err != nil {
		writeError(w, h.logger, "get recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "lines": lines})
}

// Replace handles PUT /products/{id}/recipe.
func (h *RecipeHandler) Replace(w http.ResponseWriter, r *http.Request) {
	productID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "replace recipe", err)
		return
	}

	var req replaceRecipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "replace recipe", err)
		return
	}

	lines := make([]service.RecipeLineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.RecipeLineRequest{
			SupplyItemID: uuid.MustParse(l.SupplyItemID),
			Quantity:     l.Quantity,
			Unit:         l.Unit,
		}
	}

	created, err := h.svc.ReplaceRecipe(r.Context(), productID, lines)
	if err != nil {
		writeError(w, h.logger, "replace recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "lines": created})
}
