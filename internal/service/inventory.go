package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/inventory"
	"github.com/cafe-pos/api/internal/units"
)

const (
	defaultRecommendationMonths = 3
	maxRecommendationMonths     = 12
)

// InventoryStore defines the DB methods used for ledger maintenance.
// Satisfied by *database.Queries.
type InventoryStore interface {
	ProductGetter
	CreateSupplyItem(ctx context.Context, arg database.CreateSupplyItemParams) (database.SupplyItem, error)
	GetSupplyItem(ctx context.Context, id uuid.UUID) (database.SupplyItem, error)
	GetSupplyItemForUpdate(ctx context.Context, id uuid.UUID) (database.SupplyItem, error)
	GetSupplyItemByNormalizedName(ctx context.Context, normalizedName string) (database.SupplyItem, error)
	UpdateSupplyItem(ctx context.Context, arg database.UpdateSupplyItemParams) (database.SupplyItem, error)
	ListSupplyItems(ctx context.Context, activeOnly bool) ([]database.SupplyItem, error)
	ListLowStockSupplyItems(ctx context.Context) ([]database.SupplyItem, error)
	DecrementSupplyQuantity(ctx context.Context, arg database.AdjustSupplyQuantityParams) (database.SupplyItem, error)
	IncrementSupplyQuantity(ctx context.Context, arg database.AdjustSupplyQuantityParams) (database.SupplyItem, error)
	CreateInventoryMovement(ctx context.Context, arg database.CreateInventoryMovementParams) (database.InventoryMovement, error)
	ListInventoryMovements(ctx context.Context, arg database.ListInventoryMovementsParams) ([]database.InventoryMovement, error)
	SumOutMovementsSince(ctx context.Context, since time.Time) ([]database.SumOutMovementsSinceRow, error)
	ListRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) ([]database.RecipeLine, error)
	DeleteRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) error
	CreateRecipeLine(ctx context.Context, arg database.CreateRecipeLineParams) (database.RecipeLine, error)
}

// NewInventoryStore creates an InventoryStore from a DBTX (pool or tx).
type NewInventoryStore func(db database.DBTX) InventoryStore

type CreateSupplyItemRequest struct {
	Name        string
	Unit        string
	Quantity    decimal.Decimal
	MinQuantity decimal.Decimal
	UnitCost    decimal.Decimal
}

// UpdateSupplyItemRequest edits a supply item; nil fields are unchanged.
type UpdateSupplyItemRequest struct {
	Name        *string
	MinQuantity *decimal.Decimal
	UnitCost    *decimal.Decimal
	IsActive    *bool
}

// RecordMovementRequest is a manual stock adjustment.
type RecordMovementRequest struct {
	SupplyItemID uuid.UUID
	Direction    string
	Quantity     decimal.Decimal
	Reason       string
	Notes        string
}

type MovementResult struct {
	Movement   database.InventoryMovement
	SupplyItem database.SupplyItem
}

type RecipeLineRequest struct {
	SupplyItemID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
}

type ListMovementsFilter struct {
	SupplyItemID *uuid.UUID
	Page
}

// InventoryService maintains supply items, manual movements and recipes.
type InventoryService struct {
	pool     Pool
	newStore NewInventoryStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(pool Pool, newStore NewInventoryStore, logger *zap.Logger) *InventoryService {
	return &InventoryService{pool: pool, newStore: newStore, logger: logger, now: time.Now}
}

// CreateSupplyItem registers a supply item. Names that normalize to an
// existing item's key are rejected as duplicates. Opening stock is
// recorded as an "in" movement.
func (s *InventoryService) CreateSupplyItem(ctx context.Context, req CreateSupplyItemRequest) (*database.SupplyItem, error) {
	name := strings.TrimSpace(req.Name)
	var violations []string
	if name == "" {
		violations = append(violations, "name is required")
	}
	if !units.Known(req.Unit) {
		violations = append(violations, fmt.Sprintf("unknown unit %q", req.Unit))
	}
	if req.Quantity.IsNegative() {
		violations = append(violations, "quantity must be >= 0")
	}
	if req.MinQuantity.IsNegative() {
		violations = append(violations, "min_quantity must be >= 0")
	}
	if req.UnitCost.IsNegative() {
		violations = append(violations, "unit_cost must be >= 0")
	}
	if len(violations) > 0 {
		return nil, apperr.Validation("invalid supply item", violations...)
	}
	key := inventory.NormalizeName(name)

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	existing, err := store.GetSupplyItemByNormalizedName(ctx, key)
	if err == nil {
		return nil, duplicateSupplyError(existing)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.FromStore(err, "supply item", "get supply item by name")
	}

	item, err := store.CreateSupplyItem(ctx, database.CreateSupplyItemParams{
		Name:           name,
		NormalizedName: key,
		Unit:           strings.ToLower(strings.TrimSpace(req.Unit)),
		Quantity:       req.Quantity.Round(inventory.QuantityScale),
		MinQuantity:    req.MinQuantity.Round(inventory.QuantityScale),
		UnitCost:       req.UnitCost.Round(2),
	})
	if apperr.IsUniqueViolation(err, database.SupplyNormalizedNameConstraint) {
		return nil, apperr.BusinessRule("supply item already exists", fmt.Sprintf("a supply item named like %q exists", name))
	}
	if err != nil {
		return nil, apperr.FromStore(err, "supply item", "create supply item")
	}

	if item.Quantity.IsPositive() {
		_, err := store.CreateInventoryMovement(ctx, database.CreateInventoryMovementParams{
			SupplyItemID: item.ID,
			Direction:    enum.MovementIn,
			Quantity:     item.Quantity,
			Reason:       enum.MovementReasonInitialStock,
		})
		if err != nil {
			return nil, apperr.FromStore(err, "inventory movement", "create inventory movement")
		}
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("supply item created", zap.String("supply_item_id", item.ID.String()), zap.String("name", item.Name))
	return &item, nil
}

// UpdateSupplyItem edits name, minimum, unit cost or the active flag.
// Supply items are never deleted; a deactivated item drops out of active
// listings, low-stock and purchase recommendations. A rename re-derives the
// normalized key and is rejected if another item already owns it.
func (s *InventoryService) UpdateSupplyItem(ctx context.Context, id uuid.UUID, req UpdateSupplyItemRequest) (*database.SupplyItem, error) {
	if req.Name == nil && req.MinQuantity == nil && req.UnitCost == nil && req.IsActive == nil {
		return nil, apperr.Validation("nothing to update")
	}
	var violations []string
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		violations = append(violations, "name must not be empty")
	}
	if req.MinQuantity != nil && req.MinQuantity.IsNegative() {
		violations = append(violations, "min_quantity must be >= 0")
	}
	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		violations = append(violations, "unit_cost must be >= 0")
	}
	if len(violations) > 0 {
		return nil, apperr.Validation("invalid supply item", violations...)
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	current, err := store.GetSupplyItemForUpdate(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "supply item", "get supply item for update")
	}

	arg := database.UpdateSupplyItemParams{ID: id}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		key := inventory.NormalizeName(name)
		if key != current.NormalizedName {
			existing, err := store.GetSupplyItemByNormalizedName(ctx, key)
			if err == nil {
				return nil, duplicateSupplyError(existing)
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.FromStore(err, "supply item", "get supply item by name")
			}
		}
		arg.Name = pgtype.Text{String: name, Valid: true}
		arg.NormalizedName = pgtype.Text{String: key, Valid: true}
	}
	if req.MinQuantity != nil {
		v := req.MinQuantity.Round(inventory.QuantityScale)
		arg.MinQuantity = &v
	}
	if req.UnitCost != nil {
		v := req.UnitCost.Round(2)
		arg.UnitCost = &v
	}
	if req.IsActive != nil {
		arg.IsActive = pgtype.Bool{Bool: *req.IsActive, Valid: true}
	}

	item, err := store.UpdateSupplyItem(ctx, arg)
	if apperr.IsUniqueViolation(err, database.SupplyNormalizedNameConstraint) {
		return nil, apperr.BusinessRule("supply item already exists", fmt.Sprintf("a supply item named like %q exists", arg.Name.String))
	}
	if err != nil {
		return nil, apperr.FromStore(err, "supply item", "update supply item")
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("supply item updated",
		zap.String("supply_item_id", item.ID.String()),
		zap.Bool("active", item.IsActive),
	)
	return &item, nil
}

// RecordMovement applies a manual adjustment and its ledger entry together.
// An "out" larger than the stock on hand is rejected.
func (s *InventoryService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResult, error) {
	var violations []string
	if req.Direction != enum.MovementIn && req.Direction != enum.MovementOut {
		violations = append(violations, "direction must be in or out")
	}
	qty := req.Quantity.Round(inventory.QuantityScale)
	if !qty.IsPositive() {
		violations = append(violations, "quantity must be > 0")
	}
	if strings.TrimSpace(req.Reason) == "" {
		violations = append(violations, "reason is required")
	}
	if len(violations) > 0 {
		return nil, apperr.Validation("invalid movement", violations...)
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	item, err := store.GetSupplyItemForUpdate(ctx, req.SupplyItemID)
	if err != nil {
		return nil, apperr.FromStore(err, "supply item", "get supply item for update")
	}

	adjust := database.AdjustSupplyQuantityParams{ID: item.ID, Quantity: qty}
	var updated database.SupplyItem
	if req.Direction == enum.MovementOut {
		updated, err = store.DecrementSupplyQuantity(ctx, adjust)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.InsufficientStock("insufficient stock", []inventory.Shortage{{
				SupplyItemID: item.ID,
				Name:         item.Name,
				Unit:         item.Unit,
				Required:     qty,
				Available:    item.Quantity,
			}})
		}
	} else {
		updated, err = store.IncrementSupplyQuantity(ctx, adjust)
	}
	if err != nil {
		return nil, apperr.FromStore(err, "supply item", "adjust supply quantity")
	}

	movement, err := store.CreateInventoryMovement(ctx, database.CreateInventoryMovementParams{
		SupplyItemID: item.ID,
		Direction:    req.Direction,
		Quantity:     qty,
		Reason:       strings.TrimSpace(req.Reason),
		Notes:        text(req.Notes),
	})
	if err != nil {
		return nil, apperr.FromStore(err, "inventory movement", "create inventory movement")
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("inventory movement recorded",
		zap.String("supply_item_id", item.ID.String()),
		zap.String("direction", req.Direction),
		zap.String("quantity", qty.String()),
	)
	return &MovementResult{Movement: movement, SupplyItem: updated}, nil
}

func (s *InventoryService) ListMovements(ctx context.Context, f ListMovementsFilter) ([]database.InventoryMovement, error) {
	page := f.Page.normalize()
	movements, err := s.newStore(s.pool).ListInventoryMovements(ctx, database.ListInventoryMovementsParams{
		SupplyItemID: optionalUUID(f.SupplyItemID),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "inventory movements", "list inventory movements")
	}
	return movements, nil
}

func (s *InventoryService) ListSupplyItems(ctx context.Context, activeOnly bool) ([]database.SupplyItem, error) {
	items, err := s.newStore(s.pool).ListSupplyItems(ctx, activeOnly)
	if err != nil {
		return nil, apperr.FromStore(err, "supply items", "list supply items")
	}
	return items, nil
}

func (s *InventoryService) GetSupplyItem(ctx context.Context, id uuid.UUID) (*database.SupplyItem, error) {
	item, err := s.newStore(s.pool).GetSupplyItem(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "supply item", "get supply item")
	}
	return &item, nil
}

// ListLowStock returns active items at or below their minimum.
func (s *InventoryService) ListLowStock(ctx context.Context) ([]database.SupplyItem, error) {
	items, err := s.newStore(s.pool).ListLowStockSupplyItems(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "supply items", "list low stock")
	}
	return items, nil
}

func (s *InventoryService) GetRecipe(ctx context.Context, productID uuid.UUID) ([]database.RecipeLine, error) {
	store := s.newStore(s.pool)
	if _, err := store.GetProduct(ctx, productID); err != nil {
		return nil, apperr.FromStore(err, "product", "get product")
	}
	lines, err := store.ListRecipeLinesByProduct(ctx, productID)
	if err != nil {
		return nil, apperr.FromStore(err, "recipe", "list recipe lines")
	}
	return lines, nil
}

// ReplaceRecipe swaps a product's recipe. Units must be known and
// convertible to the supply item's unit; every violation is reported.
// An empty list clears the recipe.
func (s *InventoryService) ReplaceRecipe(ctx context.Context, productID uuid.UUID, lines []RecipeLineRequest) ([]database.RecipeLine, error) {
	var violations []string
	seen := map[uuid.UUID]bool{}
	for i, l := range lines {
		if l.SupplyItemID == uuid.Nil {
			violations = append(violations, fmt.Sprintf("line[%d]: supply_item_id is required", i))
		} else if seen[l.SupplyItemID] {
			violations = append(violations, fmt.Sprintf("line[%d]: supply item %s listed twice", i, l.SupplyItemID))
		}
		seen[l.SupplyItemID] = true
		if !l.Quantity.IsPositive() {
			violations = append(violations, fmt.Sprintf("line[%d]: quantity must be > 0", i))
		}
		if !units.Known(l.Unit) {
			violations = append(violations, fmt.Sprintf("line[%d]: unknown unit %q", i, l.Unit))
		}
	}
	if len(violations) > 0 {
		return nil, apperr.Validation("invalid recipe", violations...)
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if _, err := store.GetProduct(ctx, productID); err != nil {
		return nil, apperr.FromStore(err, "product", "get product")
	}

	for i, l := range lines {
		item, err := store.GetSupplyItem(ctx, l.SupplyItemID)
		if errors.Is(err, pgx.ErrNoRows) {
			violations = append(violations, fmt.Sprintf("line[%d]: supply item %s not found", i, l.SupplyItemID))
			continue
		}
		if err != nil {
			return nil, apperr.FromStore(err, "supply item", "get supply item")
		}
		if !units.Compatible(l.Unit, item.Unit) {
			violations = append(violations, fmt.Sprintf("line[%d]: unit %q is incompatible with %s measured in %q", i, l.Unit, item.Name, item.Unit))
		}
	}
	if len(violations) > 0 {
		return nil, apperr.BusinessRule("recipe rejected", violations...)
	}

	if err := store.DeleteRecipeLinesByProduct(ctx, productID); err != nil {
		return nil, apperr.FromStore(err, "recipe", "delete recipe lines")
	}
	created := make([]database.RecipeLine, 0, len(lines))
	for i, l := range lines {
		rl, err := store.CreateRecipeLine(ctx, database.CreateRecipeLineParams{
			ProductID:    productID,
			SupplyItemID: l.SupplyItemID,
			Quantity:     l.Quantity.Round(inventory.QuantityScale),
			Unit:         strings.ToLower(strings.TrimSpace(l.Unit)),
		})
		if err != nil {
			return nil, apperr.FromStore(err, "recipe line", fmt.Sprintf("create recipe line[%d]", i))
		}
		created = append(created, rl)
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("recipe replaced", zap.String("product_id", productID.String()), zap.Int("lines", len(created)))
	return created, nil
}

// PurchaseRecommendations analyses the last months of consumption
// (3 when months is 0).
func (s *InventoryService) PurchaseRecommendations(ctx context.Context, months int) (*inventory.RecommendationReport, error) {
	if months == 0 {
		months = defaultRecommendationMonths
	}
	if months < 1 || months > maxRecommendationMonths {
		return nil, apperr.Validation(fmt.Sprintf("months must be between 1 and %d", maxRecommendationMonths))
	}

	now := s.now()
	store := s.newStore(s.pool)
	items, err := store.ListSupplyItems(ctx, true)
	if err != nil {
		return nil, apperr.FromStore(err, "supply items", "list supply items")
	}
	sums, err := store.SumOutMovementsSince(ctx, inventory.WindowStart(now, months))
	if err != nil {
		return nil, apperr.FromStore(err, "inventory movements", "sum consumption")
	}
	consumed := make(map[uuid.UUID]decimal.Decimal, len(sums))
	for _, row := range sums {
		consumed[row.SupplyItemID] = row.Total
	}

	report := inventory.Recommend(items, consumed, months, now)
	return &report, nil
}

func duplicateSupplyError(existing database.SupplyItem) error {
	return apperr.BusinessRule("supply item already exists",
		fmt.Sprintf("%q matches existing supply item %q", existing.NormalizedName, existing.Name)).
		WithDetails(map[string]string{"supply_item_id": existing.ID.String()})
}
