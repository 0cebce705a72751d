package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/cafe-pos/api/internal/inventory"
)

// --- Mock pgx.Tx / pool ---

type mockTx struct {
	db *fakeDB
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.db.commit()
	return m.db.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.db.rollback()
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool hands out mockTx values bound to one fakeDB. Plain reads go
// straight to the fakeDB through the store factory, never through DBTX.
type mockPool struct {
	db       *fakeDB
	beginErr error
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.db.begin()
	return &mockTx{db: m.db}, nil
}
func (m *mockPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

// --- In-memory store ---

type fakeState struct {
	users       map[uuid.UUID]database.User
	products    map[uuid.UUID]database.Product
	supplies    map[uuid.UUID]database.SupplyItem
	recipes     []database.RecipeLine
	orders      map[uuid.UUID]database.Order
	orderItems  []database.OrderItem
	sales       map[uuid.UUID]database.Sale
	saleItems   []database.SaleItem
	tickets     map[uuid.UUID]database.KitchenTicket
	ticketItems []database.KitchenTicketItem
	movements   []database.InventoryMovement
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeState) clone() *fakeState {
	return &fakeState{
		users:       cloneMap(s.users),
		products:    cloneMap(s.products),
		supplies:    cloneMap(s.supplies),
		recipes:     append([]database.RecipeLine(nil), s.recipes...),
		orders:      cloneMap(s.orders),
		orderItems:  append([]database.OrderItem(nil), s.orderItems...),
		sales:       cloneMap(s.sales),
		saleItems:   append([]database.SaleItem(nil), s.saleItems...),
		tickets:     cloneMap(s.tickets),
		ticketItems: append([]database.KitchenTicketItem(nil), s.ticketItems...),
		movements:   append([]database.InventoryMovement(nil), s.movements...),
	}
}

// fakeDB is a map-backed store. begin snapshots the state and rollback
// restores it unless commit ran, so tests observe all-or-nothing writes.
type fakeDB struct {
	*fakeState
	snapshot  *fakeState
	commits   int
	rollbacks int
	commitErr error
	failOn    map[string]error
	clock     time.Time

	// concurrentOrderWrite runs just before a guarded order write, standing
	// in for another transaction that committed first.
	concurrentOrderWrite func()
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		fakeState: &fakeState{
			users:    map[uuid.UUID]database.User{},
			products: map[uuid.UUID]database.Product{},
			supplies: map[uuid.UUID]database.SupplyItem{},
			orders:   map[uuid.UUID]database.Order{},
			sales:    map[uuid.UUID]database.Sale{},
			tickets:  map[uuid.UUID]database.KitchenTicket{},
		},
		failOn: map[string]error{},
		clock:  time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
}

func (db *fakeDB) begin() { db.snapshot = db.fakeState.clone() }

func (db *fakeDB) commit() {
	if db.commitErr != nil {
		return
	}
	db.snapshot = nil
	db.commits++
}

func (db *fakeDB) rollback() {
	if db.snapshot == nil {
		return
	}
	db.fakeState = db.snapshot
	db.snapshot = nil
	db.rollbacks++
}

func (db *fakeDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *fakeDB) fail(method string) error { return db.failOn[method] }

// --- Seed helpers ---

func (db *fakeDB) addUser(role string, active bool) database.User {
	u := database.User{ID: uuid.New(), Email: uuid.NewString() + "@cafe.test", FullName: "Staff", Role: role, IsActive: active}
	db.users[u.ID] = u
	return u
}

func (db *fakeDB) addProduct(name, price string, active bool) database.Product {
	p := database.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), IsActive: active}
	db.products[p.ID] = p
	return p
}

func (db *fakeDB) addSupply(name, unit, qty string) database.SupplyItem {
	s := database.SupplyItem{
		ID:             uuid.New(),
		Name:           name,
		NormalizedName: inventory.NormalizeName(name),
		Unit:           unit,
		Quantity:       decimal.RequireFromString(qty),
		MinQuantity:    decimal.Zero,
		IsActive:       true,
	}
	db.supplies[s.ID] = s
	return s
}

func (db *fakeDB) addRecipe(productID, supplyID uuid.UUID, qty, unit string) {
	db.recipes = append(db.recipes, database.RecipeLine{
		ID:           uuid.New(),
		ProductID:    productID,
		SupplyItemID: supplyID,
		Quantity:     decimal.RequireFromString(qty),
		Unit:         unit,
	})
}

// addOrder stores an order with its lines as the public intake would.
func (db *fakeDB) addOrder(status, total string, lines ...LineRequest) database.Order {
	o := database.Order{
		ID:            uuid.New(),
		Status:        status,
		Origin:        enum.OrderOriginWeb,
		Total:         decimal.RequireFromString(total),
		MilkSurcharge: decimal.Zero,
		CreatedAt:     db.tick(),
	}
	db.orders[o.ID] = o
	for _, l := range lines {
		db.orderItems = append(db.orderItems, database.OrderItem{ID: uuid.New(), OrderID: o.ID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return o
}

func (db *fakeDB) setOrderStatus(id uuid.UUID, status string) {
	o := db.orders[id]
	o.Status = status
	db.orders[id] = o
}

func (db *fakeDB) supplyQty(id uuid.UUID) string { return db.supplies[id].Quantity.String() }

func (db *fakeDB) movementsFor(ticketID uuid.UUID) []database.InventoryMovement {
	var out []database.InventoryMovement
	for _, m := range db.movements {
		if m.TicketID.Valid && uuid.UUID(m.TicketID.Bytes) == ticketID {
			out = append(out, m)
		}
	}
	return out
}

// --- Users / products ---

func (db *fakeDB) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	u, ok := db.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (db *fakeDB) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	if err := db.fail("GetProduct"); err != nil {
		return database.Product{}, err
	}
	p, ok := db.products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

// --- Orders ---

func (db *fakeDB) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if err := db.fail("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	now := db.tick()
	o := database.Order{
		ID:            uuid.New(),
		CustomerName:  arg.CustomerName,
		Status:        arg.Status,
		Origin:        arg.Origin,
		ServiceType:   arg.ServiceType,
		MilkType:      arg.MilkType,
		MilkSurcharge: arg.MilkSurcharge,
		Comments:      arg.Comments,
		Total:         arg.Total,
		SaleID:        arg.SaleID,
		TicketCode:    arg.TicketCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	db.orders[o.ID] = o
	return o, nil
}

func (db *fakeDB) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	it := database.OrderItem{ID: uuid.New(), OrderID: arg.OrderID, ProductID: arg.ProductID, Quantity: arg.Quantity, Notes: arg.Notes}
	db.orderItems = append(db.orderItems, it)
	return it, nil
}

func (db *fakeDB) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := db.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (db *fakeDB) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return db.GetOrder(ctx, id)
}

func (db *fakeDB) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	out := []database.OrderItem{}
	for _, it := range db.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (db *fakeDB) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	out := []database.Order{}
	for _, o := range db.orders {
		if !contains(arg.Statuses, o.Status) {
			continue
		}
		if arg.Origin.Valid && o.Origin != arg.Origin.String {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (db *fakeDB) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	if db.concurrentOrderWrite != nil {
		db.concurrentOrderWrite()
	}
	o, ok := db.orders[arg.ID]
	if !ok || o.Status != arg.ExpectedStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	if arg.CustomerName.Valid {
		o.CustomerName = arg.CustomerName
	}
	o.Status = arg.Status
	o.UpdatedAt = db.tick()
	db.orders[o.ID] = o
	return o, nil
}

func (db *fakeDB) MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	if err := db.fail("MarkOrderPaid"); err != nil {
		return database.Order{}, err
	}
	if db.concurrentOrderWrite != nil {
		db.concurrentOrderWrite()
	}
	o, ok := db.orders[arg.ID]
	if !ok || o.Status != enum.OrderStatusAtRegister {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusPaid
	o.SaleID = pgtype.UUID{Bytes: arg.SaleID, Valid: true}
	o.TicketCode = pgtype.Text{String: arg.TicketCode, Valid: true}
	db.orders[o.ID] = o
	return o, nil
}

func (db *fakeDB) SyncOrderStatusBySale(ctx context.Context, arg database.SyncOrderStatusBySaleParams) (int64, error) {
	var n int64
	for id, o := range db.orders {
		if o.SaleID.Valid && uuid.UUID(o.SaleID.Bytes) == arg.SaleID && contains(arg.FromStatuses, o.Status) {
			o.Status = arg.Status
			db.orders[id] = o
			n++
		}
	}
	return n, nil
}

// --- Sales ---

func (db *fakeDB) CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error) {
	if err := db.fail("CreateSale"); err != nil {
		return database.Sale{}, err
	}
	s := database.Sale{
		ID:            uuid.New(),
		CustomerID:    arg.CustomerID,
		OperatorID:    arg.OperatorID,
		Total:         arg.Total,
		PaymentMethod: arg.PaymentMethod,
		ServiceType:   arg.ServiceType,
		MilkType:      arg.MilkType,
		MilkSurcharge: arg.MilkSurcharge,
		Comments:      arg.Comments,
		CreatedAt:     db.tick(),
	}
	db.sales[s.ID] = s
	return s, nil
}

func (db *fakeDB) CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error) {
	it := database.SaleItem{ID: uuid.New(), SaleID: arg.SaleID, ProductID: arg.ProductID, Quantity: arg.Quantity, UnitPrice: arg.UnitPrice, Subtotal: arg.Subtotal}
	db.saleItems = append(db.saleItems, it)
	return it, nil
}

func (db *fakeDB) GetSale(ctx context.Context, id uuid.UUID) (database.Sale, error) {
	s, ok := db.sales[id]
	if !ok {
		return database.Sale{}, pgx.ErrNoRows
	}
	return s, nil
}

func (db *fakeDB) ListSaleItemsBySale(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error) {
	out := []database.SaleItem{}
	for _, it := range db.saleItems {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (db *fakeDB) ListSalesBetween(ctx context.Context, arg database.ListSalesBetweenParams) ([]database.Sale, error) {
	out := []database.Sale{}
	for _, s := range db.sales {
		if !s.CreatedAt.Before(arg.From) && s.CreatedAt.Before(arg.To) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(arg.Offset) >= len(out) {
		return []database.Sale{}, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (db *fakeDB) GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
	byDay := map[time.Time]*database.GetDailySalesRow{}
	for _, s := range db.sales {
		if s.CreatedAt.Before(arg.From) || !s.CreatedAt.Before(arg.To) {
			continue
		}
		t := s.CreatedAt.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		row, ok := byDay[day]
		if !ok {
			row = &database.GetDailySalesRow{SaleDate: day}
			byDay[day] = row
		}
		row.SaleCount++
		row.TotalRevenue = row.TotalRevenue.Add(s.Total)
	}
	out := []database.GetDailySalesRow{}
	for _, row := range byDay {
		row.AverageTicket = row.TotalRevenue.DivRound(decimal.NewFromInt(row.SaleCount), 16)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.Before(out[j].SaleDate) })
	return out, nil
}

func (db *fakeDB) GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error) {
	byProduct := map[uuid.UUID]*database.GetProductSalesRow{}
	seen := map[[2]uuid.UUID]bool{}
	for _, it := range db.saleItems {
		s := db.sales[it.SaleID]
		if s.CreatedAt.Before(arg.From) || !s.CreatedAt.Before(arg.To) {
			continue
		}
		row, ok := byProduct[it.ProductID]
		if !ok {
			row = &database.GetProductSalesRow{ProductID: it.ProductID, ProductName: db.products[it.ProductID].Name}
			byProduct[it.ProductID] = row
		}
		row.QuantitySold += int64(it.Quantity)
		row.TotalRevenue = row.TotalRevenue.Add(it.Subtotal)
		if key := [2]uuid.UUID{it.ProductID, it.SaleID}; !seen[key] {
			seen[key] = true
			row.SaleCount++
		}
	}
	out := []database.GetProductSalesRow{}
	for _, row := range byProduct {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuantitySold != out[j].QuantitySold {
			return out[i].QuantitySold > out[j].QuantitySold
		}
		return out[i].ProductName < out[j].ProductName
	})
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

// addSale records a paid sale of one product at createdAt.
func (db *fakeDB) addSale(product database.Product, qty int32, createdAt time.Time) database.Sale {
	subtotal := product.Price.Mul(decimal.NewFromInt32(qty))
	s := database.Sale{ID: uuid.New(), Total: subtotal, PaymentMethod: enum.PaymentMethodCash, CreatedAt: createdAt}
	db.sales[s.ID] = s
	db.saleItems = append(db.saleItems, database.SaleItem{
		ID: uuid.New(), SaleID: s.ID, ProductID: product.ID, Quantity: qty, UnitPrice: product.Price, Subtotal: subtotal,
	})
	return s
}

// --- Kitchen tickets ---

func (db *fakeDB) CreateKitchenTicket(ctx context.Context, saleID uuid.UUID) (database.KitchenTicket, error) {
	if err := db.fail("CreateKitchenTicket"); err != nil {
		return database.KitchenTicket{}, err
	}
	for _, t := range db.tickets {
		if t.SaleID == saleID {
			return database.KitchenTicket{}, &pgconn.PgError{Code: "23505", ConstraintName: database.KitchenTicketSaleConstraint}
		}
	}
	now := db.tick()
	t := database.KitchenTicket{ID: uuid.New(), SaleID: saleID, Status: enum.TicketStatusPending, CreatedAt: now, UpdatedAt: now}
	db.tickets[t.ID] = t
	return t, nil
}

func (db *fakeDB) CreateKitchenTicketItem(ctx context.Context, arg database.CreateKitchenTicketItemParams) (database.KitchenTicketItem, error) {
	it := database.KitchenTicketItem{ID: uuid.New(), TicketID: arg.TicketID, ProductID: arg.ProductID, Quantity: arg.Quantity, Notes: arg.Notes}
	db.ticketItems = append(db.ticketItems, it)
	return it, nil
}

func (db *fakeDB) GetKitchenTicket(ctx context.Context, id uuid.UUID) (database.KitchenTicket, error) {
	t, ok := db.tickets[id]
	if !ok {
		return database.KitchenTicket{}, pgx.ErrNoRows
	}
	return t, nil
}

func (db *fakeDB) GetKitchenTicketForUpdate(ctx context.Context, id uuid.UUID) (database.KitchenTicket, error) {
	return db.GetKitchenTicket(ctx, id)
}

func (db *fakeDB) GetKitchenTicketBySale(ctx context.Context, saleID uuid.UUID) (database.KitchenTicket, error) {
	for _, t := range db.tickets {
		if t.SaleID == saleID {
			return t, nil
		}
	}
	return database.KitchenTicket{}, pgx.ErrNoRows
}

func (db *fakeDB) ListKitchenTickets(ctx context.Context, arg database.ListKitchenTicketsParams) ([]database.KitchenTicket, error) {
	out := []database.KitchenTicket{}
	for _, t := range db.tickets {
		if arg.Status.Valid && t.Status != arg.Status.String {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (db *fakeDB) ListKitchenTicketItems(ctx context.Context, ticketID uuid.UUID) ([]database.KitchenTicketItem, error) {
	out := []database.KitchenTicketItem{}
	for _, it := range db.ticketItems {
		if it.TicketID == ticketID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (db *fakeDB) UpdateKitchenTicketStatus(ctx context.Context, arg database.UpdateKitchenTicketStatusParams) (database.KitchenTicket, error) {
	t, ok := db.tickets[arg.ID]
	if !ok {
		return database.KitchenTicket{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.UpdatedAt = db.tick()
	db.tickets[t.ID] = t
	return t, nil
}

// --- Supplies, recipes, movements ---

func (db *fakeDB) CreateSupplyItem(ctx context.Context, arg database.CreateSupplyItemParams) (database.SupplyItem, error) {
	for _, s := range db.supplies {
		if s.NormalizedName == arg.NormalizedName {
			return database.SupplyItem{}, &pgconn.PgError{Code: "23505", ConstraintName: database.SupplyNormalizedNameConstraint}
		}
	}
	s := database.SupplyItem{
		ID:             uuid.New(),
		Name:           arg.Name,
		NormalizedName: arg.NormalizedName,
		Unit:           arg.Unit,
		Quantity:       arg.Quantity,
		MinQuantity:    arg.MinQuantity,
		UnitCost:       arg.UnitCost,
		IsActive:       true,
		CreatedAt:      db.tick(),
	}
	db.supplies[s.ID] = s
	return s, nil
}

func (db *fakeDB) GetSupplyItem(ctx context.Context, id uuid.UUID) (database.SupplyItem, error) {
	s, ok := db.supplies[id]
	if !ok {
		return database.SupplyItem{}, pgx.ErrNoRows
	}
	return s, nil
}

func (db *fakeDB) GetSupplyItemForUpdate(ctx context.Context, id uuid.UUID) (database.SupplyItem, error) {
	return db.GetSupplyItem(ctx, id)
}

func (db *fakeDB) GetSupplyItemByNormalizedName(ctx context.Context, normalizedName string) (database.SupplyItem, error) {
	for _, s := range db.supplies {
		if s.NormalizedName == normalizedName {
			return s, nil
		}
	}
	return database.SupplyItem{}, pgx.ErrNoRows
}

func (db *fakeDB) UpdateSupplyItem(ctx context.Context, arg database.UpdateSupplyItemParams) (database.SupplyItem, error) {
	item, ok := db.supplies[arg.ID]
	if !ok {
		return database.SupplyItem{}, pgx.ErrNoRows
	}
	if arg.NormalizedName.Valid {
		for _, other := range db.supplies {
			if other.ID != arg.ID && other.NormalizedName == arg.NormalizedName.String {
				return database.SupplyItem{}, &pgconn.PgError{Code: "23505", ConstraintName: database.SupplyNormalizedNameConstraint}
			}
		}
		item.Name = arg.Name.String
		item.NormalizedName = arg.NormalizedName.String
	}
	if arg.MinQuantity != nil {
		item.MinQuantity = *arg.MinQuantity
	}
	if arg.UnitCost != nil {
		item.UnitCost = *arg.UnitCost
	}
	if arg.IsActive.Valid {
		item.IsActive = arg.IsActive.Bool
	}
	item.UpdatedAt = db.tick()
	db.supplies[item.ID] = item
	return item, nil
}

func (db *fakeDB) ListSupplyItems(ctx context.Context, activeOnly bool) ([]database.SupplyItem, error) {
	out := []database.SupplyItem{}
	for _, s := range db.supplies {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (db *fakeDB) ListLowStockSupplyItems(ctx context.Context) ([]database.SupplyItem, error) {
	out := []database.SupplyItem{}
	for _, s := range db.supplies {
		if s.IsActive && s.Quantity.LessThanOrEqual(s.MinQuantity) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (db *fakeDB) DecrementSupplyQuantity(ctx context.Context, arg database.AdjustSupplyQuantityParams) (database.SupplyItem, error) {
	s, ok := db.supplies[arg.ID]
	if !ok || s.Quantity.LessThan(arg.Quantity) {
		return database.SupplyItem{}, pgx.ErrNoRows
	}
	s.Quantity = s.Quantity.Sub(arg.Quantity)
	db.supplies[s.ID] = s
	return s, nil
}

func (db *fakeDB) IncrementSupplyQuantity(ctx context.Context, arg database.AdjustSupplyQuantityParams) (database.SupplyItem, error) {
	s, ok := db.supplies[arg.ID]
	if !ok {
		return database.SupplyItem{}, pgx.ErrNoRows
	}
	s.Quantity = s.Quantity.Add(arg.Quantity)
	db.supplies[s.ID] = s
	return s, nil
}

func (db *fakeDB) CreateInventoryMovement(ctx context.Context, arg database.CreateInventoryMovementParams) (database.InventoryMovement, error) {
	if err := db.fail("CreateInventoryMovement"); err != nil {
		return database.InventoryMovement{}, err
	}
	m := database.InventoryMovement{
		ID:           uuid.New(),
		SupplyItemID: arg.SupplyItemID,
		Direction:    arg.Direction,
		Quantity:     arg.Quantity,
		Reason:       arg.Reason,
		Notes:        arg.Notes,
		TicketID:     arg.TicketID,
		CreatedAt:    db.tick(),
	}
	db.movements = append(db.movements, m)
	return m, nil
}

func (db *fakeDB) ListInventoryMovements(ctx context.Context, arg database.ListInventoryMovementsParams) ([]database.InventoryMovement, error) {
	out := []database.InventoryMovement{}
	for _, m := range db.movements {
		if arg.SupplyItemID.Valid && m.SupplyItemID != uuid.UUID(arg.SupplyItemID.Bytes) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (db *fakeDB) SumOutMovementsSince(ctx context.Context, since time.Time) ([]database.SumOutMovementsSinceRow, error) {
	totals := map[uuid.UUID]decimal.Decimal{}
	for _, m := range db.movements {
		if m.Direction == enum.MovementOut && !m.CreatedAt.Before(since) {
			totals[m.SupplyItemID] = totals[m.SupplyItemID].Add(m.Quantity)
		}
	}
	out := []database.SumOutMovementsSinceRow{}
	for id, total := range totals {
		out = append(out, database.SumOutMovementsSinceRow{SupplyItemID: id, Total: total})
	}
	return out, nil
}

func (db *fakeDB) ListRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) ([]database.RecipeLine, error) {
	out := []database.RecipeLine{}
	for _, r := range db.recipes {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (db *fakeDB) CountRecipeLinesByProducts(ctx context.Context, productIDs []uuid.UUID) (int64, error) {
	var n int64
	for _, r := range db.recipes {
		for _, id := range productIDs {
			if r.ProductID == id {
				n++
				break
			}
		}
	}
	return n, nil
}

func (db *fakeDB) DeleteRecipeLinesByProduct(ctx context.Context, productID uuid.UUID) error {
	kept := db.recipes[:0:0]
	for _, r := range db.recipes {
		if r.ProductID != productID {
			kept = append(kept, r)
		}
	}
	db.recipes = kept
	return nil
}

func (db *fakeDB) CreateRecipeLine(ctx context.Context, arg database.CreateRecipeLineParams) (database.RecipeLine, error) {
	r := database.RecipeLine{ID: uuid.New(), ProductID: arg.ProductID, SupplyItemID: arg.SupplyItemID, Quantity: arg.Quantity, Unit: arg.Unit}
	db.recipes = append(db.recipes, r)
	return r, nil
}

// --- Service constructors ---

type testEnv struct {
	db      *fakeDB
	pool    *mockPool
	house   database.User
	orders  *OrderService
	payment *PaymentService
	tickets *TicketService
	stock   *InventoryService
	reports *SalesReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newFakeDB()
	pool := &mockPool{db: db}
	house := db.addUser(enum.UserRoleCashier, true)
	logger := zap.NewNop()

	payment := NewPaymentService(pool, func(database.DBTX) PaymentStore { return db }, house.ID, decimal.RequireFromString("0.01"), logger)
	payment.now = func() time.Time { return db.clock }
	stock := NewInventoryService(pool, func(database.DBTX) InventoryStore { return db }, logger)
	stock.now = func() time.Time { return db.clock }

	return &testEnv{
		db:      db,
		pool:    pool,
		house:   house,
		orders:  NewOrderService(pool, func(database.DBTX) OrderStore { return db }, logger),
		payment: payment,
		tickets: NewTicketService(pool, func(database.DBTX) TicketStore { return db }, inventory.NewLedger(logger), logger),
		stock:   stock,
		reports: NewSalesReportService(pool, func(database.DBTX) SalesReportStore { return db }, logger),
	}
}
