// Package inventory owns supply stock levels: recipe-driven consumption of
// completed kitchen tickets and purchase planning from the movement history.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/units"
)

// QuantityScale matches the scale of quantity columns.
const QuantityScale = 4

// Advisory codes. Advisories never block a deduction.
const (
	AdvisoryNoRecipe          = "no_recipe"
	AdvisoryIncompatibleUnits = "incompatible_units"
	AdvisoryMissingSupply     = "missing_supply"
)

// Store is the persistence the ledger needs inside a transaction.
// Satisfied by *database.Queries.
type Store interface {
	ListRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) ([]database.RecipeLine, error)
	GetSupplyItemForUpdate(ctx context.Context, id uuid.UUID) (database.SupplyItem, error)
	DecrementSupplyQuantity(ctx context.Context, arg database.AdjustSupplyQuantityParams) (database.SupplyItem, error)
	CreateInventoryMovement(ctx context.Context, arg database.CreateInventoryMovementParams) (database.InventoryMovement, error)
}

// Line is one sold product quantity to be consumed.
type Line struct {
	ProductID uuid.UUID
	Quantity  int32
}

type Advisory struct {
	Code         string     `json:"code"`
	ProductID    uuid.UUID  `json:"product_id"`
	SupplyItemID *uuid.UUID `json:"supply_item_id,omitempty"`
	Message      string     `json:"message"`
}

type Shortage struct {
	SupplyItemID uuid.UUID       `json:"supply_item_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
}

// Requirement is the total quantity of one supply item, in its own unit.
type Requirement struct {
	SupplyItemID uuid.UUID
	Name         string
	Unit         string
	Required     decimal.Decimal
	Available    decimal.Decimal
}

// Plan is the evaluated consumption of a set of lines, one requirement
// per supply item.
type Plan struct {
	Requirements []Requirement
	Advisories   []Advisory
	Shortages    []Shortage
}

type Deduction struct {
	SupplyItemID uuid.UUID       `json:"supply_item_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Remaining    decimal.Decimal `json:"remaining"`
}

type Summary struct {
	Deductions []Deduction `json:"deductions"`
	Advisories []Advisory  `json:"advisories"`
}

type Ledger struct {
	logger *zap.Logger
	tracer trace.Tracer
}

func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{logger: logger, tracer: otel.Tracer("github.com/cafe-pos/api/internal/inventory")}
}

// ConsumeTicket deducts the recipe requirements of lines and records one
// "out" movement per supply item. If any supply item is short, nothing is
// written and an insufficient-stock error listing every shortage is
// returned; the caller must roll back its transaction.
func (l *Ledger) ConsumeTicket(ctx context.Context, store Store, ticketID uuid.UUID, lines []Line) (*Summary, error) {
	ctx, span := l.tracer.Start(ctx, "inventory.consume", trace.WithAttributes(
		attribute.String("ticket.id", ticketID.String()),
		attribute.Int("lines", len(lines)),
	))
	defer span.End()

	plan, err := PlanConsumption(ctx, store, lines)
	if err != nil {
		return nil, err
	}
	if len(plan.Shortages) > 0 {
		span.SetAttributes(attribute.Int("shortages", len(plan.Shortages)))
		return nil, shortageError(plan.Shortages)
	}

	deductions, err := Apply(ctx, store, plan, ticketID)
	if err != nil {
		return nil, err
	}

	for _, a := range plan.Advisories {
		l.logger.Warn("stock deduction advisory",
			zap.String("ticket_id", ticketID.String()),
			zap.String("code", a.Code),
			zap.String("message", a.Message),
		)
	}
	l.logger.Info("stock deducted",
		zap.String("ticket_id", ticketID.String()),
		zap.Int("supply_items", len(deductions)),
		zap.Int("advisories", len(plan.Advisories)),
	)

	return &Summary{Deductions: deductions, Advisories: plan.Advisories}, nil
}

type recipeUse struct {
	productID uuid.UUID
	recipe    database.RecipeLine
	lineQty   int32
}

// PlanConsumption evaluates every line before anything is written. Supply
// rows are locked in id order so concurrent plans cannot deadlock.
func PlanConsumption(ctx context.Context, store Store, lines []Line) (*Plan, error) {
	plan := &Plan{Advisories: []Advisory{}}

	// --- Pass 1: recipe lookup ---
	var uses []recipeUse
	supplyIDs := map[uuid.UUID]struct{}{}
	for _, line := range lines {
		recipe, err := store.ListRecipeLinesByProduct(ctx, line.ProductID)
		if err != nil {
			return nil, apperr.FromStore(err, "recipe", "list recipe lines")
		}
		if len(recipe) == 0 {
			plan.Advisories = append(plan.Advisories, Advisory{
				Code:      AdvisoryNoRecipe,
				ProductID: line.ProductID,
				Message:   fmt.Sprintf("product %s has no recipe; no stock deducted", line.ProductID),
			})
			continue
		}
		for _, r := range recipe {
			uses = append(uses, recipeUse{productID: line.ProductID, recipe: r, lineQty: line.Quantity})
			supplyIDs[r.SupplyItemID] = struct{}{}
		}
	}

	ordered := make([]uuid.UUID, 0, len(supplyIDs))
	for id := range supplyIDs {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	supplies := make(map[uuid.UUID]database.SupplyItem, len(ordered))
	for _, id := range ordered {
		item, err := store.GetSupplyItemForUpdate(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, apperr.FromStore(err, "supply item", "lock supply item")
		}
		supplies[id] = item
	}

	// --- Pass 2: convert and aggregate ---
	required := map[uuid.UUID]decimal.Decimal{}
	for _, u := range uses {
		supplyID := u.recipe.SupplyItemID
		item, ok := supplies[supplyID]
		if !ok {
			plan.Advisories = append(plan.Advisories, Advisory{
				Code:         AdvisoryMissingSupply,
				ProductID:    u.productID,
				SupplyItemID: &supplyID,
				Message:      fmt.Sprintf("supply item %s referenced by recipe does not exist", supplyID),
			})
			continue
		}

		qty := u.recipe.Quantity.Mul(decimal.NewFromInt32(u.lineQty))
		recipeUnit := u.recipe.Unit
		if recipeUnit == "" {
			recipeUnit = item.Unit
		}
		if !units.Compatible(recipeUnit, item.Unit) {
			plan.Advisories = append(plan.Advisories, Advisory{
				Code:         AdvisoryIncompatibleUnits,
				ProductID:    u.productID,
				SupplyItemID: &supplyID,
				Message: fmt.Sprintf("recipe unit %q cannot be converted to %q for %s",
					recipeUnit, item.Unit, item.Name),
			})
			continue
		}
		qty = units.Convert(qty, recipeUnit, item.Unit)
		required[supplyID] = required[supplyID].Add(qty)
	}

	// --- Shortage check ---
	for _, id := range ordered {
		total, ok := required[id]
		if !ok {
			continue
		}
		total = total.Round(QuantityScale)
		if !total.IsPositive() {
			continue
		}
		item := supplies[id]
		plan.Requirements = append(plan.Requirements, Requirement{
			SupplyItemID: id,
			Name:         item.Name,
			Unit:         item.Unit,
			Required:     total,
			Available:    item.Quantity,
		})
		if item.Quantity.LessThan(total) {
			plan.Shortages = append(plan.Shortages, Shortage{
				SupplyItemID: id,
				Name:         item.Name,
				Unit:         item.Unit,
				Required:     total,
				Available:    item.Quantity,
			})
		}
	}

	return plan, nil
}

// Apply writes a shortage-free plan: one guarded decrement and one ledger
// entry per requirement.
func Apply(ctx context.Context, store Store, plan *Plan, ticketID uuid.UUID) ([]Deduction, error) {
	if len(plan.Shortages) > 0 {
		return nil, shortageError(plan.Shortages)
	}

	deductions := make([]Deduction, 0, len(plan.Requirements))
	for _, req := range plan.Requirements {
		updated, err := store.DecrementSupplyQuantity(ctx, database.AdjustSupplyQuantityParams{
			ID:       req.SupplyItemID,
			Quantity: req.Required,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortageError([]Shortage{{
				SupplyItemID: req.SupplyItemID,
				Name:         req.Name,
				Unit:         req.Unit,
				Required:     req.Required,
				Available:    req.Available,
			}})
		}
		if err != nil {
			return nil, apperr.FromStore(err, "supply item", "decrement supply quantity")
		}

		_, err = store.CreateInventoryMovement(ctx, database.CreateInventoryMovementParams{
			SupplyItemID: req.SupplyItemID,
			Direction:    enum.MovementOut,
			Quantity:     req.Required,
			Reason:       enum.MovementReasonTicketCompleted,
			Notes:        pgtype.Text{String: "ticket " + ticketID.String(), Valid: true},
			TicketID:     pgtype.UUID{Bytes: ticketID, Valid: true},
		})
		if err != nil {
			return nil, apperr.FromStore(err, "inventory movement", "create inventory movement")
		}

		deductions = append(deductions, Deduction{
			SupplyItemID: req.SupplyItemID,
			Name:         req.Name,
			Quantity:     req.Required,
			Unit:         req.Unit,
			Remaining:    updated.Quantity,
		})
	}
	return deductions, nil
}

func shortageError(shortages []Shortage) error {
	violations := make([]string, 0, len(shortages))
	for _, s := range shortages {
		violations = append(violations, fmt.Sprintf("%s: required %s %s, available %s %s",
			s.Name, s.Required.String(), s.Unit, s.Available.String(), s.Unit))
	}
	err := apperr.InsufficientStock("insufficient stock", shortages)
	err.Violations = violations
	return err
}
