package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/middleware"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
}

// ProductHandler handles the sellable catalog. Prices set here are the
// ones every order and sale is charged at.
type ProductHandler struct {
	store  ProductStore
	logger *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{store: store, logger: logger}
}

// RegisterRoutes registers /products. Any staff role may read; changes
// require ADMIN.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Patch("/{id}", h.Update)
}

// RegisterPublicRoutes registers the storefront menu: active products only.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.ListActive)
}

// --- Request / Response types ---

type createProductRequest struct {
	Name  string          `json:"name" validate:"required,max=120"`
	Price decimal.Decimal `json:"price"`
}

type updateProductRequest struct {
	Name     *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Price    *decimal.Decimal `json:"price"`
	IsActive *bool            `json:"is_active"`
}

type productResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// --- Handlers ---

// List handles GET /products?active=true.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if s := r.URL.Query().Get("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, h.logger, "list products", apperr.Validation("active must be a boolean"))
			return
		}
		activeOnly = v
	}
	h.list(w, r, activeOnly)
}

// ListActive handles GET /public/products.
func (h *ProductHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	products, err := h.store.ListProducts(r.Context(), activeOnly)
	if err != nil {
		writeError(w, h.logger, "list products", apperr.FromStore(err, "products", "list products"))
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "get product", err)
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "get product", apperr.FromStore(err, "product", "get product"))
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "create product", err)
		return
	}
	if err := validatePrice(req.Price); err != nil {
		writeError(w, h.logger, "create product", err)
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:  strings.TrimSpace(req.Name),
		Price: req.Price,
	})
	if err != nil {
		writeError(w, h.logger, "create product", apperr.FromStore(err, "product", "create product"))
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update handles PATCH /products/{id}. A price change applies to orders
// paid from now on, since payment re-prices from the catalog.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, h.logger, "update product", err)
		return
	}

	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, "update product", err)
		return
	}
	if req.Name == nil && req.Price == nil && req.IsActive == nil {
		writeError(w, h.logger, "update product", apperr.Validation("nothing to update"))
		return
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			writeError(w, h.logger, "update product", err)
			return
		}
	}

	arg := database.UpdateProductParams{ID: id, Price: req.Price}
	if req.Name != nil {
		arg.Name = pgtype.Text{String: strings.TrimSpace(*req.Name), Valid: true}
	}
	if req.IsActive != nil {
		arg.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}

	product, err := h.store.UpdateProduct(r.Context(), arg)
	if err != nil {
		writeError(w, h.logger, "update product", apperr.FromStore(err, "product", "update product"))
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return apperr.Validation("invalid price", "price must be >= 0")
	}
	if p.Exponent() < -2 && !p.Equal(p.Round(2)) {
		return apperr.Validation("invalid price", "price must have at most 2 decimal places")
	}
	return nil
}
