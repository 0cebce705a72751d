package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// OrderStore defines the DB methods needed for the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ProductGetter
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// staffTransitions are the order state changes a staff update may request.
// paid, in_kitchen and ready are reached only through payment and kitchen
// ticket transitions.
var staffTransitions = map[string][]string{
	enum.OrderStatusInitial:    {enum.OrderStatusAtRegister, enum.OrderStatusCancelled},
	enum.OrderStatusAtRegister: {enum.OrderStatusCancelled},
	enum.OrderStatusPaid:       {enum.OrderStatusCancelled},
	enum.OrderStatusInKitchen:  {enum.OrderStatusCancelled},
	enum.OrderStatusReady:      {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
}

var allOrderStatuses = []string{
	enum.OrderStatusInitial,
	enum.OrderStatusAtRegister,
	enum.OrderStatusPaid,
	enum.OrderStatusInKitchen,
	enum.OrderStatusReady,
	enum.OrderStatusDelivered,
	enum.OrderStatusCancelled,
}

// cashierQueue is the default order listing.
var cashierQueue = []string{enum.OrderStatusInitial, enum.OrderStatusAtRegister}

// CreateWebOrderRequest is the validated input of the public storefront.
type CreateWebOrderRequest struct {
	CustomerName  string
	ServiceType   string
	MilkType      string
	MilkSurcharge decimal.Decimal
	Comments      string
	Items         []LineRequest
}

// UpdateOrderRequest carries the staff-editable fields; nil means unchanged.
type UpdateOrderRequest struct {
	CustomerName *string
	Status       *string
}

type ListOrdersFilter struct {
	Status string
	Origin string
	Page
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles the order state machine.
type OrderService struct {
	pool     Pool
	newStore NewOrderStore
	logger   *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool Pool, newStore NewOrderStore, logger *zap.Logger) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, logger: logger}
}

// CreateWebOrder prices the lines from the catalog and stores a new order
// awaiting the cashier. Client-side prices are never trusted.
func (s *OrderService) CreateWebOrder(ctx context.Context, req CreateWebOrderRequest) (*OrderDetail, error) {
	if err := validateModifiers(req.ServiceType, req.MilkType, req.MilkSurcharge); err != nil {
		return nil, err
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	priced, subtotal, err := priceLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerName:  text(req.CustomerName),
		Status:        enum.OrderStatusInitial,
		Origin:        enum.OrderOriginWeb,
		ServiceType:   text(req.ServiceType),
		MilkType:      text(req.MilkType),
		MilkSurcharge: req.MilkSurcharge,
		Comments:      text(req.Comments),
		Total:         subtotal.Add(req.MilkSurcharge),
	})
	if err != nil {
		return nil, apperr.FromStore(err, "order", "create order")
	}

	items, err := createOrderItems(ctx, store, order.ID, priced)
	if err != nil {
		return nil, err
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("web order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return &OrderDetail{Order: order, Items: items}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	store := s.newStore(s.pool)
	order, err := store.GetOrder(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "order", "get order")
	}
	items, err := store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "order items", "list order items")
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ListOrders returns the cashier queue (initial and at_register) when no
// filter is given. An origin filter alone spans every status.
func (s *OrderService) ListOrders(ctx context.Context, f ListOrdersFilter) ([]database.Order, error) {
	statuses := cashierQueue
	if f.Origin != "" {
		statuses = allOrderStatuses
	}
	if f.Status != "" {
		if !contains(allOrderStatuses, f.Status) {
			return nil, apperr.Validation("invalid status filter", f.Status)
		}
		statuses = []string{f.Status}
	}
	var origin pgtype.Text
	if f.Origin != "" {
		if f.Origin != enum.OrderOriginWeb && f.Origin != enum.OrderOriginInPerson {
			return nil, apperr.Validation("invalid origin filter", f.Origin)
		}
		origin = pgtype.Text{String: f.Origin, Valid: true}
	}

	page := f.Page.normalize()
	orders, err := s.newStore(s.pool).ListOrders(ctx, database.ListOrdersParams{
		Statuses: statuses,
		Origin:   origin,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "orders", "list orders")
	}
	return orders, nil
}

// UpdateOrder applies a staff edit: customer name and/or one of the staff
// transitions. The write is guarded on the status read under lock.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req UpdateOrderRequest) (*database.Order, error) {
	if req.CustomerName == nil && req.Status == nil {
		return nil, apperr.Validation("customer_name or status is required")
	}
	if req.Status != nil {
		switch *req.Status {
		case enum.OrderStatusPaid, enum.OrderStatusInKitchen, enum.OrderStatusReady:
			return nil, apperr.Validation(fmt.Sprintf("status %s is set by payment or kitchen ticket transitions", *req.Status))
		case enum.OrderStatusInitial, enum.OrderStatusAtRegister, enum.OrderStatusDelivered, enum.OrderStatusCancelled:
		default:
			return nil, apperr.Validation("invalid status", *req.Status)
		}
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	current, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "order", "get order for update")
	}

	target := current.Status
	if req.Status != nil && *req.Status != current.Status {
		target = *req.Status
		if !contains(staffTransitions[current.Status], target) {
			return nil, apperr.StateConflict("order", current.Status, sourcesOf(target)...)
		}
	} else if isTerminalOrderStatus(current.Status) {
		return nil, apperr.StateConflict("order", current.Status, nonTerminalOrderStatuses()...)
	}

	var name pgtype.Text
	if req.CustomerName != nil {
		name = pgtype.Text{String: strings.TrimSpace(*req.CustomerName), Valid: true}
	}

	updated, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:             id,
		CustomerName:   name,
		Status:         target,
		ExpectedStatus: current.Status,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orderConflict(ctx, store, id, current.Status)
	}
	if err != nil {
		return nil, apperr.FromStore(err, "order", "update order")
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	if target != current.Status {
		s.logger.Info("order status updated",
			zap.String("order_id", id.String()),
			zap.String("from", current.Status),
			zap.String("to", target),
		)
	}
	return &updated, nil
}

// DeliverOrder hands a ready order to the customer.
func (s *OrderService) DeliverOrder(ctx context.Context, id uuid.UUID) (*database.Order, error) {
	status := enum.OrderStatusDelivered
	return s.UpdateOrder(ctx, id, UpdateOrderRequest{Status: &status})
}

type orderItemCreator interface {
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

func createOrderItems(ctx context.Context, store orderItemCreator, orderID uuid.UUID, lines []pricedLine) ([]database.OrderItem, error) {
	items := make([]database.OrderItem, 0, len(lines))
	for i, l := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   orderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Notes:     l.Notes,
		})
		if err != nil {
			return nil, apperr.FromStore(err, "order item", fmt.Sprintf("create order item[%d]", i))
		}
		items = append(items, item)
	}
	return items, nil
}

func validateModifiers(serviceType, milkType string, surcharge decimal.Decimal) error {
	var violations []string
	if serviceType != "" && serviceType != enum.ServiceTypeDineIn && serviceType != enum.ServiceTypeTakeaway {
		violations = append(violations, "service_type must be dine_in or takeaway")
	}
	if milkType != "" && milkType != enum.MilkTypeWhole && milkType != enum.MilkTypeLactoseFree {
		violations = append(violations, "milk_type must be whole or lactose_free")
	}
	if surcharge.IsNegative() {
		violations = append(violations, "milk_surcharge must be >= 0")
	}
	if len(violations) > 0 {
		return apperr.Validation("invalid order modifiers", violations...)
	}
	return nil
}

func sourcesOf(target string) []string {
	var sources []string
	for _, from := range allOrderStatuses {
		if contains(staffTransitions[from], target) {
			sources = append(sources, from)
		}
	}
	return sources
}

func isTerminalOrderStatus(status string) bool {
	return status == enum.OrderStatusDelivered || status == enum.OrderStatusCancelled
}

func nonTerminalOrderStatuses() []string {
	var out []string
	for _, s := range allOrderStatuses {
		if !isTerminalOrderStatus(s) {
			out = append(out, s)
		}
	}
	return out
}
