package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
)

// PaymentStore defines the DB methods used by the payment transaction.
// Satisfied by *database.Queries.
type PaymentStore interface {
	ProductGetter
	orderItemCreator
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error)
	ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	ListSalesBetween(ctx context.Context, arg database.ListSalesBetweenParams) ([]database.Sale, error)
	CreateKitchenTicket(ctx context.Context, saleID uuid.UUID) (database.KitchenTicket, error)
	CreateKitchenTicketItem(ctx context.Context, arg database.CreateKitchenTicketItemParams) (database.KitchenTicketItem, error)
	CountRecipeLinesByProducts(ctx context.Context, productIDs []uuid.UUID) (int64, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

var paymentMethods = []string{enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodTransfer}

// ProcessPaymentRequest pays an order waiting at the register. A nil or
// unusable OperatorID falls back to the house operator.
type ProcessPaymentRequest struct {
	OrderID       uuid.UUID
	OperatorID    *uuid.UUID
	PaymentMethod string
	CustomerID    *uuid.UUID
}

type PaymentResult struct {
	SaleID     uuid.UUID       `json:"sale_id"`
	TicketID   uuid.UUID       `json:"ticket_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	TicketCode string          `json:"ticket_code"`
	Total      decimal.Decimal `json:"total"`
}

// DirectSaleRequest is an in-person sale rung up without a prior order.
type DirectSaleRequest struct {
	OperatorID    *uuid.UUID
	PaymentMethod string
	CustomerID    *uuid.UUID
	CustomerName  string
	ServiceType   string
	MilkType      string
	MilkSurcharge decimal.Decimal
	Comments      string
	Items         []LineRequest
}

type DirectSaleResult struct {
	SaleID     uuid.UUID       `json:"sale_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	TicketID   *uuid.UUID      `json:"ticket_id"`
	TicketCode string          `json:"ticket_code"`
	Total      decimal.Decimal `json:"total"`
}

type SaleDetail struct {
	Sale  database.Sale
	Items []database.SaleItem
}

// PaymentService materializes sales and kitchen tickets.
type PaymentService struct {
	pool            Pool
	newStore        NewPaymentStore
	houseOperatorID uuid.UUID
	tolerance       decimal.Decimal
	logger          *zap.Logger
	tracer          trace.Tracer
	now             func() time.Time
}

// NewPaymentService creates a PaymentService. houseOperatorID is recorded
// on sales whose request carries no usable operator; tolerance is the
// largest accepted difference between an order's stored and recomputed total.
func NewPaymentService(pool Pool, newStore NewPaymentStore, houseOperatorID uuid.UUID, tolerance decimal.Decimal, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		pool:            pool,
		newStore:        newStore,
		houseOperatorID: houseOperatorID,
		tolerance:       tolerance,
		logger:          logger,
		tracer:          otel.Tracer("github.com/cafe-pos/api/internal/service"),
		now:             time.Now,
	}
}

// ProcessPayment turns an at_register order into a sale and a pending
// kitchen ticket and marks the order paid, all in one transaction.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (result *PaymentResult, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.process", trace.WithAttributes(
		attribute.String("order.id", req.OrderID.String()),
	))
	defer func() { endSpan(span, err) }()

	if !contains(paymentMethods, req.PaymentMethod) {
		return nil, apperr.Validation("invalid payment_method", "payment_method must be cash, card or transfer")
	}

	tx, err := begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Operator ---
	operatorID, err := s.resolveOperator(ctx, store, req.OperatorID)
	if err != nil {
		return nil, err
	}

	// --- Order under lock ---
	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		return nil, apperr.FromStore(err, "order", "get order for update")
	}
	if order.Status != enum.OrderStatusAtRegister {
		return nil, apperr.StateConflict("order", order.Status, enum.OrderStatusAtRegister)
	}
	if !order.Total.IsPositive() {
		return nil, apperr.BusinessRule("order has no positive total")
	}

	// --- Lines re-priced from catalog ---
	orderItems, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, apperr.FromStore(err, "order items", "list order items")
	}
	if len(orderItems) == 0 {
		return nil, apperr.BusinessRule("order has no lines")
	}
	lines := make([]LineRequest, len(orderItems))
	for i, it := range orderItems {
		lines[i] = LineRequest{ProductID: it.ProductID, Quantity: it.Quantity, Notes: it.Notes.String}
	}
	priced, subtotal, err := priceLines(ctx, store, lines)
	if err != nil {
		return nil, err
	}

	computed := subtotal.Add(order.MilkSurcharge)
	if computed.Sub(order.Total).Abs().GreaterThan(s.tolerance) {
		return nil, apperr.BusinessRule("price mismatch", fmt.Sprintf(
			"computed total %s differs from order total %s (products %s + milk surcharge %s)",
			computed.StringFixed(2), order.Total.StringFixed(2),
			subtotal.StringFixed(2), order.MilkSurcharge.StringFixed(2),
		))
	}

	// --- Sale ---
	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		CustomerID:    optionalUUID(req.CustomerID),
		OperatorID:    operatorID,
		Total:         computed,
		PaymentMethod: req.PaymentMethod,
		ServiceType:   order.ServiceType,
		MilkType:      order.MilkType,
		MilkSurcharge: order.MilkSurcharge,
		Comments:      order.Comments,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "sale", "create sale")
	}
	if err := createSaleItems(ctx, store, sale.ID, priced); err != nil {
		return nil, err
	}

	// --- Kitchen ticket ---
	ticket, err := createTicketWithItems(ctx, store, sale.ID, priced)
	if err != nil {
		return nil, err
	}

	// --- Order ---
	code := GenerateTicketCode(s.now())
	_, err = store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
		ID:         order.ID,
		SaleID:     sale.ID,
		TicketCode: code,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orderConflict(ctx, store, order.ID, enum.OrderStatusAtRegister)
	}
	if err != nil {
		return nil, apperr.FromStore(err, "order", "mark order paid")
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("payment processed",
		zap.String("order_id", order.ID.String()),
		zap.String("sale_id", sale.ID.String()),
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("ticket_code", code),
		zap.String("total", computed.StringFixed(2)),
		zap.String("operator_id", operatorID.String()),
	)

	return &PaymentResult{
		SaleID:     sale.ID,
		TicketID:   ticket.ID,
		OrderID:    order.ID,
		TicketCode: code,
		Total:      computed,
	}, nil
}

// CreateDirectSale records an in-person sale. A paid order is stored
// alongside for reporting, and a kitchen ticket only when some sold
// product has a recipe.
func (s *PaymentService) CreateDirectSale(ctx context.Context, req DirectSaleRequest) (result *DirectSaleResult, err error) {
	ctx, span := s.tracer.Start(ctx, "sale.create_direct")
	defer func() { endSpan(span, err) }()

	if !contains(paymentMethods, req.PaymentMethod) {
		return nil, apperr.Validation("invalid payment_method", "payment_method must be cash, card or transfer")
	}
	if err := validateModifiers(req.ServiceType, req.MilkType, req.MilkSurcharge); err != nil {
		return nil, err
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
	operatorID, err := s.resolveOperator(ctx, store, req.OperatorID)
	if err != nil {
		return nil, err
	}

	priced, subtotal, err := priceLines(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}
	total := subtotal.Add(req.MilkSurcharge)

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		CustomerID:    optionalUUID(req.CustomerID),
		OperatorID:    operatorID,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		ServiceType:   text(req.ServiceType),
		MilkType:      text(req.MilkType),
		MilkSurcharge: req.MilkSurcharge,
		Comments:      text(req.Comments),
	})
	if err != nil {
		return nil, apperr.FromStore(err, "sale", "create sale")
	}
	if err := createSaleItems(ctx, store, sale.ID, priced); err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, len(priced))
	for i, l := range priced {
		productIDs[i] = l.ProductID
	}
	recipeLines, err := store.CountRecipeLinesByProducts(ctx, productIDs)
	if err != nil {
		return nil, apperr.FromStore(err, "recipe", "count recipe lines")
	}

	var ticketID *uuid.UUID
	if recipeLines > 0 {
		ticket, err := createTicketWithItems(ctx, store, sale.ID, priced)
		if err != nil {
			return nil, err
		}
		ticketID = &ticket.ID
	}

	code := GenerateTicketCode(s.now())
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerName:  text(req.CustomerName),
		Status:        enum.OrderStatusPaid,
		Origin:        enum.OrderOriginInPerson,
		ServiceType:   sale.ServiceType,
		MilkType:      sale.MilkType,
		MilkSurcharge: req.MilkSurcharge,
		Comments:      sale.Comments,
		Total:         total,
		SaleID:        optionalUUID(&sale.ID),
		TicketCode:    text(code),
	})
	if err != nil {
		return nil, apperr.FromStore(err, "order", "create order")
	}
	if _, err := createOrderItems(ctx, store, order.ID, priced); err != nil {
		return nil, err
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("direct sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Bool("ticket", ticketID != nil),
		zap.String("total", total.StringFixed(2)),
	)

	return &DirectSaleResult{
		SaleID:     sale.ID,
		OrderID:    order.ID,
		TicketID:   ticketID,
		TicketCode: code,
		Total:      total,
	}, nil
}

func (s *PaymentService) GetSale(ctx context.Context, id uuid.UUID) (*SaleDetail, error) {
	store := s.newStore(s.pool)
	sale, err := store.GetSale(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "sale", "get sale")
	}
	items, err := store.ListSaleItemsBySale(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "sale items", "list sale items")
	}
	return &SaleDetail{Sale: sale, Items: items}, nil
}

// ListSales returns the sales recorded in rng, newest first.
func (s *PaymentService) ListSales(ctx context.Context, rng DateRange, page Page) ([]database.Sale, error) {
	if err := rng.validate(); err != nil {
		return nil, err
	}
	page = page.normalize()
	sales, err := s.newStore(s.pool).ListSalesBetween(ctx, database.ListSalesBetweenParams{
		From:   rng.From,
		To:     rng.To,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "sales", "list sales")
	}
	return sales, nil
}

// resolveOperator returns requested when it names an active user, else the
// house operator.
func (s *PaymentService) resolveOperator(ctx context.Context, store PaymentStore, requested *uuid.UUID) (uuid.UUID, error) {
	if requested != nil && *requested != uuid.Nil {
		user, err := store.GetUserByID(ctx, *requested)
		switch {
		case err == nil && user.IsActive:
			return user.ID, nil
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return uuid.Nil, apperr.FromStore(err, "operator", "get operator")
		}
		s.logger.Warn("operator unusable, falling back to house operator",
			zap.String("operator_id", requested.String()))
	}

	if s.houseOperatorID == uuid.Nil {
		return uuid.Nil, apperr.BusinessRule("no operator available", "house operator is not configured")
	}
	house, err := store.GetUserByID(ctx, s.houseOperatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.BusinessRule("no operator available", "house operator does not exist")
	}
	if err != nil {
		return uuid.Nil, apperr.FromStore(err, "operator", "get house operator")
	}
	if !house.IsActive {
		return uuid.Nil, apperr.BusinessRule("no operator available", "house operator is inactive")
	}
	return house.ID, nil
}

type saleItemCreator interface {
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
}

func createSaleItems(ctx context.Context, store saleItemCreator, saleID uuid.UUID, lines []pricedLine) error {
	for i, l := range lines {
		_, err := store.CreateSaleItem(ctx, database.CreateSaleItemParams{
			SaleID:    saleID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
		if err != nil {
			return apperr.FromStore(err, "sale item", fmt.Sprintf("create sale item[%d]", i))
		}
	}
	return nil
}

type ticketCreator interface {
	CreateKitchenTicket(ctx context.Context, saleID uuid.UUID) (database.KitchenTicket, error)
	CreateKitchenTicketItem(ctx context.Context, arg database.CreateKitchenTicketItemParams) (database.KitchenTicketItem, error)
}

func createTicketWithItems(ctx context.Context, store ticketCreator, saleID uuid.UUID, lines []pricedLine) (database.KitchenTicket, error) {
	ticket, err := store.CreateKitchenTicket(ctx, saleID)
	if err != nil {
		return database.KitchenTicket{}, apperr.FromStore(err, "kitchen ticket", "create kitchen ticket")
	}
	for i, l := range lines {
		_, err := store.CreateKitchenTicketItem(ctx, database.CreateKitchenTicketItemParams{
			TicketID:  ticket.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Notes:     l.Notes,
		})
		if err != nil {
			return database.KitchenTicket{}, apperr.FromStore(err, "kitchen ticket item", fmt.Sprintf("create kitchen ticket item[%d]", i))
		}
	}
	return ticket, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	span.End()
}
