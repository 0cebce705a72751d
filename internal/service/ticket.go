package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/inventory"
)

// TicketStore defines the DB methods used by the kitchen ticket lifecycle.
// Satisfied by *database.Queries.
type TicketStore interface {
	inventory.Store
	ProductGetter
	ticketCreator
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	GetKitchenTicket(ctx context.Context, id uuid.UUID) (database.KitchenTicket, error)
	GetKitchenTicketForUpdate(ctx context.Context, id uuid.UUID) (database.KitchenTicket, error)
	GetKitchenTicketBySale(ctx context.Context, saleID uuid.UUID) (database.KitchenTicket, error)
	ListKitchenTickets(ctx context.Context, arg database.ListKitchenTicketsParams) ([]database.KitchenTicket, error)
	ListKitchenTicketItems(ctx context.Context, ticketID uuid.UUID) ([]database.KitchenTicketItem, error)
	UpdateKitchenTicketStatus(ctx context.Context, arg database.UpdateKitchenTicketStatusParams) (database.KitchenTicket, error)
	SyncOrderStatusBySale(ctx context.Context, arg database.SyncOrderStatusBySaleParams) (int64, error)
}

// NewTicketStore creates a TicketStore from a DBTX (pool or tx).
type NewTicketStore func(db database.DBTX) TicketStore

// ticketTransitions lists, per target status, the statuses it may be
// entered from.
var ticketTransitions = map[string][]string{
	enum.TicketStatusPreparing: {enum.TicketStatusPending},
	enum.TicketStatusDone:      {enum.TicketStatusPending, enum.TicketStatusPreparing},
	enum.TicketStatusCancelled: {enum.TicketStatusPending, enum.TicketStatusPreparing},
}

// OrderSync is the order transition applied when a linked ticket changes.
type OrderSync struct {
	To   string
	From []string
}

// orderSyncRules is the only place ticket transitions move order state.
var orderSyncRules = map[string]OrderSync{
	enum.TicketStatusPreparing: {To: enum.OrderStatusInKitchen, From: []string{enum.OrderStatusPaid}},
	enum.TicketStatusDone:      {To: enum.OrderStatusReady, From: []string{enum.OrderStatusPaid, enum.OrderStatusInKitchen}},
}

// OrderSyncFor returns the order transition triggered by a ticket entering status.
func OrderSyncFor(status string) (OrderSync, bool) {
	rule, ok := orderSyncRules[status]
	return rule, ok
}

type CreateTicketRequest struct {
	SaleID uuid.UUID
	Items  []LineRequest
}

type TicketDetail struct {
	Ticket database.KitchenTicket
	Items  []database.KitchenTicketItem
}

// TicketTransition is the outcome of a status update. Unchanged is set when
// the ticket already had the requested status and nothing was written.
type TicketTransition struct {
	Ticket         database.KitchenTicket
	PreviousStatus string
	Unchanged      bool
	OrdersSynced   int64
	Deduction      *inventory.Summary
}

type ListTicketsFilter struct {
	Status string
	Page
}

// TicketService handles the kitchen ticket state machine.
type TicketService struct {
	pool     Pool
	newStore NewTicketStore
	ledger   *inventory.Ledger
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewTicketService creates a new TicketService.
func NewTicketService(pool Pool, newStore NewTicketStore, ledger *inventory.Ledger, logger *zap.Logger) *TicketService {
	return &TicketService{
		pool:     pool,
		newStore: newStore,
		ledger:   ledger,
		logger:   logger,
		tracer:   otel.Tracer("github.com/cafe-pos/api/internal/service"),
	}
}

// CreateTicket opens a pending ticket for a sale. A sale that already has a
// ticket is rejected with the existing ticket id in the error details.
func (s *TicketService) CreateTicket(ctx context.Context, req CreateTicketRequest) (*TicketDetail, error) {
	if req.SaleID == uuid.Nil {
		return nil, apperr.Validation("sale_id is required")
	}
	if err := validateLines(req.Items); err != nil {
		return nil, err
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if _, err := store.GetSale(ctx, req.SaleID); err != nil {
		return nil, apperr.FromStore(err, "sale", "get sale")
	}

	existing, err := store.GetKitchenTicketBySale(ctx, req.SaleID)
	if err == nil {
		return nil, duplicateTicketError(existing.ID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.FromStore(err, "kitchen ticket", "get kitchen ticket by sale")
	}

	priced, _, err := priceLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	ticket, err := createTicketWithItems(ctx, store, req.SaleID, priced)
	if apperr.IsUniqueViolation(err, database.KitchenTicketSaleConstraint) {
		// Lost a race with a concurrent creation. The violation aborts tx,
		// so the winner is read outside it.
		tx.Rollback(ctx) //nolint:errcheck
		winner, lookupErr := s.newStore(s.pool).GetKitchenTicketBySale(ctx, req.SaleID)
		if lookupErr != nil {
			return nil, apperr.BusinessRule("sale already has a kitchen ticket")
		}
		return nil, duplicateTicketError(winner.ID)
	}
	if err != nil {
		return nil, err
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	items, err := s.newStore(s.pool).ListKitchenTicketItems(ctx, ticket.ID)
	if err != nil {
		return nil, apperr.FromStore(err, "kitchen ticket items", "list kitchen ticket items")
	}
	s.logger.Info("kitchen ticket created",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("sale_id", req.SaleID.String()),
	)
	return &TicketDetail{Ticket: ticket, Items: items}, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id uuid.UUID) (*TicketDetail, error) {
	store := s.newStore(s.pool)
	ticket, err := store.GetKitchenTicket(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "kitchen ticket", "get kitchen ticket")
	}
	items, err := store.ListKitchenTicketItems(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "kitchen ticket items", "list kitchen ticket items")
	}
	return &TicketDetail{Ticket: ticket, Items: items}, nil
}

// ListTickets returns tickets oldest first, optionally of one status.
func (s *TicketService) ListTickets(ctx context.Context, f ListTicketsFilter) ([]database.KitchenTicket, error) {
	var status pgtype.Text
	if f.Status != "" {
		if !isTicketStatus(f.Status) {
			return nil, apperr.Validation("invalid status filter", f.Status)
		}
		status = pgtype.Text{String: f.Status, Valid: true}
	}
	page := f.Page.normalize()
	tickets, err := s.newStore(s.pool).ListKitchenTickets(ctx, database.ListKitchenTicketsParams{
		Status: status,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "kitchen tickets", "list kitchen tickets")
	}
	return tickets, nil
}

// UpdateStatus moves a ticket and, in the same transaction, applies the
// linked order transition and (on done) the stock deduction. Requesting the
// status a ticket already has is a no-op, so retrying "done" never deducts
// twice. Any stock shortage rolls back the whole transition.
func (s *TicketService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (result *TicketTransition, err error) {
	ctx, span := s.tracer.Start(ctx, "ticket.update_status", trace.WithAttributes(
		attribute.String("ticket.id", id.String()),
		attribute.String("ticket.status", status),
	))
	defer func() { endSpan(span, err) }()

	if _, ok := ticketTransitions[status]; !ok {
		return nil, apperr.Validation("invalid status", "status must be preparing, done or cancelled")
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	ticket, err := store.GetKitchenTicketForUpdate(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "kitchen ticket", "get kitchen ticket for update")
	}
	previous := ticket.Status

	if previous == status {
		return &TicketTransition{Ticket: ticket, PreviousStatus: previous, Unchanged: true}, nil
	}
	if !contains(ticketTransitions[status], previous) {
		return nil, apperr.StateConflict("kitchen ticket", previous, ticketTransitions[status]...)
	}

	result = &TicketTransition{PreviousStatus: previous}

	if status == enum.TicketStatusDone {
		items, err := store.ListKitchenTicketItems(ctx, id)
		if err != nil {
			return nil, apperr.FromStore(err, "kitchen ticket items", "list kitchen ticket items")
		}
		lines := make([]inventory.Line, len(items))
		for i, it := range items {
			lines[i] = inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		summary, err := s.ledger.ConsumeTicket(ctx, store, id, lines)
		if err != nil {
			return nil, err
		}
		result.Deduction = summary
	}

	ticket, err = store.UpdateKitchenTicketStatus(ctx, database.UpdateKitchenTicketStatusParams{ID: id, Status: status})
	if err != nil {
		return nil, apperr.FromStore(err, "kitchen ticket", "update kitchen ticket status")
	}
	result.Ticket = ticket

	if rule, ok := OrderSyncFor(status); ok {
		n, err := store.SyncOrderStatusBySale(ctx, database.SyncOrderStatusBySaleParams{
			SaleID:       ticket.SaleID,
			Status:       rule.To,
			FromStatuses: rule.From,
		})
		if err != nil {
			return nil, apperr.FromStore(err, "order", "sync order status")
		}
		result.OrdersSynced = n
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("kitchen ticket status updated",
		zap.String("ticket_id", id.String()),
		zap.String("from", previous),
		zap.String("to", status),
		zap.Int64("orders_synced", result.OrdersSynced),
	)
	return result, nil
}

func duplicateTicketError(existing uuid.UUID) error {
	return apperr.BusinessRule("sale already has a kitchen ticket").
		WithDetails(map[string]string{"ticket_id": existing.String()})
}

func isTicketStatus(status string) bool {
	switch status {
	case enum.TicketStatusPending, enum.TicketStatusPreparing, enum.TicketStatusDone, enum.TicketStatusCancelled:
		return true
	}
	return false
}
