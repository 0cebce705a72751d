package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/enum"
)

func strPtr(s string) *string { return &s }

func TestCreateWebOrder_PricesFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	latte := env.db.addProduct("Latte", "40", true)
	cookie := env.db.addProduct("Cookie", "15.50", true)

	detail, err := env.orders.CreateWebOrder(context.Background(), CreateWebOrderRequest{
		CustomerName:  "  Ana  ",
		ServiceType:   enum.ServiceTypeTakeaway,
		MilkType:      enum.MilkTypeLactoseFree,
		MilkSurcharge: decimal.RequireFromString("5"),
		Items: []LineRequest{
			{ProductID: latte.ID, Quantity: 2, Notes: "extra hot"},
			{ProductID: cookie.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := detail.Order.Total.StringFixed(2); got != "100.50" {
		t.Errorf("total: got %s, want 100.50", got)
	}
	if detail.Order.Status != enum.OrderStatusInitial || detail.Order.Origin != enum.OrderOriginWeb {
		t.Errorf("order: got %s/%s", detail.Order.Status, detail.Order.Origin)
	}
	if detail.Order.CustomerName.String != "Ana" {
		t.Errorf("customer name: got %q", detail.Order.CustomerName.String)
	}
	if len(detail.Items) != 2 || detail.Items[0].Notes.String != "extra hot" {
		t.Errorf("items: got %+v", detail.Items)
	}
	if env.db.commits != 1 {
		t.Errorf("commits: got %d, want 1", env.db.commits)
	}
}

func TestCreateWebOrder_ReportsEveryBadLine(t *testing.T) {
	env := newTestEnv(t)
	old := env.db.addProduct("Old blend", "30", false)

	_, err := env.orders.CreateWebOrder(context.Background(), CreateWebOrderRequest{
		Items: []LineRequest{
			{ProductID: old.ID, Quantity: 1},
			{ProductID: uuid.New(), Quantity: 1},
		},
	})
	ae := requireKind(t, err, apperr.KindBusinessRule)
	if len(ae.Violations) != 2 {
		t.Errorf("violations: got %v, want 2", ae.Violations)
	}
	if len(env.db.orders) != 0 {
		t.Errorf("no order should be stored, got %d", len(env.db.orders))
	}
}

func TestCreateWebOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	p := env.db.addProduct("Latte", "40", true)

	tests := []struct {
		name string
		req  CreateWebOrderRequest
		want int
	}{
		{"no items", CreateWebOrderRequest{}, 0},
		{"bad quantities", CreateWebOrderRequest{Items: []LineRequest{
			{ProductID: p.ID, Quantity: 0},
			{ProductID: uuid.Nil, Quantity: -1},
		}}, 3},
		{"bad modifiers", CreateWebOrderRequest{
			ServiceType:   "drive_through",
			MilkType:      "oat",
			MilkSurcharge: decimal.NewFromInt(-1),
			Items:         []LineRequest{{ProductID: p.ID, Quantity: 1}},
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orders.CreateWebOrder(context.Background(), tt.req)
			ae := requireKind(t, err, apperr.KindValidation)
			if len(ae.Violations) != tt.want {
				t.Errorf("violations: got %v, want %d", ae.Violations, tt.want)
			}
		})
	}
}

func TestUpdateOrder_SendToRegisterWithName(t *testing.T) {
	env := newTestEnv(t)
	order := env.db.addOrder(enum.OrderStatusInitial, "40")

	updated, err := env.orders.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{
		CustomerName: strPtr("Luis"),
		Status:       strPtr(enum.OrderStatusAtRegister),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusAtRegister || updated.CustomerName.String != "Luis" {
		t.Errorf("order: got %s %q", updated.Status, updated.CustomerName.String)
	}
}

func TestUpdateOrder_RejectsSystemStatuses(t *testing.T) {
	env := newTestEnv(t)
	order := env.db.addOrder(enum.OrderStatusAtRegister, "40")

	for _, status := range []string{enum.OrderStatusPaid, enum.OrderStatusInKitchen, enum.OrderStatusReady, "lost"} {
		_, err := env.orders.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{Status: strPtr(status)})
		requireKind(t, err, apperr.KindValidation)
	}
	if got := env.db.orders[order.ID].Status; got != enum.OrderStatusAtRegister {
		t.Errorf("status changed to %s", got)
	}
}

func TestUpdateOrder_NoFields(t *testing.T) {
	env := newTestEnv(t)
	order := env.db.addOrder(enum.OrderStatusInitial, "40")
	_, err := env.orders.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{})
	requireKind(t, err, apperr.KindValidation)
}

func TestUpdateOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orders.UpdateOrder(context.Background(), uuid.New(), UpdateOrderRequest{CustomerName: strPtr("x")})
	requireKind(t, err, apperr.KindNotFound)
}

func TestUpdateOrder_CancelFromAnyOpenStatus(t *testing.T) {
	env := newTestEnv(t)
	for _, status := range []string{
		enum.OrderStatusInitial,
		enum.OrderStatusAtRegister,
		enum.OrderStatusPaid,
		enum.OrderStatusInKitchen,
		enum.OrderStatusReady,
	} {
		order := env.db.addOrder(status, "40")
		updated, err := env.orders.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{Status: strPtr(enum.OrderStatusCancelled)})
		if err != nil {
			t.Fatalf("cancel from %s: %v", status, err)
		}
		if updated.Status != enum.OrderStatusCancelled {
			t.Errorf("cancel from %s: got %s", status, updated.Status)
		}
	}
}

func TestUpdateOrder_TerminalOrdersAreFrozen(t *testing.T) {
	env := newTestEnv(t)
	delivered := env.db.addOrder(enum.OrderStatusDelivered, "40")
	cancelled := env.db.addOrder(enum.OrderStatusCancelled, "40")

	_, err := env.orders.UpdateOrder(context.Background(), delivered.ID, UpdateOrderRequest{CustomerName: strPtr("late rename")})
	requireKind(t, err, apperr.KindStateConflict)

	_, err = env.orders.UpdateOrder(context.Background(), cancelled.ID, UpdateOrderRequest{Status: strPtr(enum.OrderStatusAtRegister)})
	ae := requireKind(t, err, apperr.KindStateConflict)
	if ae.Actual != enum.OrderStatusCancelled {
		t.Errorf("actual: got %s", ae.Actual)
	}
}

func TestDeliverOrder(t *testing.T) {
	env := newTestEnv(t)
	ready := env.db.addOrder(enum.OrderStatusReady, "40")
	paid := env.db.addOrder(enum.OrderStatusPaid, "40")

	updated, err := env.orders.DeliverOrder(context.Background(), ready.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enum.OrderStatusDelivered {
		t.Errorf("status: got %s", updated.Status)
	}

	_, err = env.orders.DeliverOrder(context.Background(), paid.ID)
	ae := requireKind(t, err, apperr.KindStateConflict)
	if len(ae.Expected) != 1 || ae.Expected[0] != enum.OrderStatusReady {
		t.Errorf("expected: got %v, want [ready]", ae.Expected)
	}
}

func TestListOrders_DefaultsToCashierQueue(t *testing.T) {
	env := newTestEnv(t)
	first := env.db.addOrder(enum.OrderStatusInitial, "10")
	second := env.db.addOrder(enum.OrderStatusAtRegister, "20")
	env.db.addOrder(enum.OrderStatusPaid, "30")
	env.db.addOrder(enum.OrderStatusDelivered, "40")

	orders, err := env.orders.ListOrders(context.Background(), ListOrdersFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != first.ID || orders[1].ID != second.ID {
		t.Errorf("queue: got %+v", orders)
	}

	paid, err := env.orders.ListOrders(context.Background(), ListOrdersFilter{Status: enum.OrderStatusPaid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paid) != 1 {
		t.Errorf("paid: got %d, want 1", len(paid))
	}
}

func TestUpdateOrder_LostRaceReportsCurrentStatus(t *testing.T) {
	env := newTestEnv(t)
	order := env.db.addOrder(enum.OrderStatusInitial, "10")
	env.db.concurrentOrderWrite = func() { env.db.setOrderStatus(order.ID, enum.OrderStatusCancelled) }

	status := enum.OrderStatusAtRegister
	_, err := env.orders.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{Status: &status})
	ae := requireKind(t, err, apperr.KindStateConflict)
	if ae.Actual != enum.OrderStatusCancelled {
		t.Errorf("actual: got %q, want %q", ae.Actual, enum.OrderStatusCancelled)
	}
	if len(ae.Expected) != 1 || ae.Expected[0] != enum.OrderStatusInitial {
		t.Errorf("expected: got %v", ae.Expected)
	}
}

func TestListOrders_OriginFilterSpansAllStatuses(t *testing.T) {
	env := newTestEnv(t)
	env.db.addOrder(enum.OrderStatusInitial, "10")
	counter := env.db.addOrder(enum.OrderStatusPaid, "30")
	counter.Origin = enum.OrderOriginInPerson
	env.db.orders[counter.ID] = counter

	inPerson, err := env.orders.ListOrders(context.Background(), ListOrdersFilter{Origin: enum.OrderOriginInPerson})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inPerson) != 1 || inPerson[0].ID != counter.ID {
		t.Errorf("in_person: got %+v, want the paid counter sale", inPerson)
	}

	web, err := env.orders.ListOrders(context.Background(), ListOrdersFilter{Origin: enum.OrderOriginWeb})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(web) != 1 {
		t.Errorf("web: got %d, want 1", len(web))
	}

	initialInPerson, _ := env.orders.ListOrders(context.Background(), ListOrdersFilter{
		Status: enum.OrderStatusInitial,
		Origin: enum.OrderOriginInPerson,
	})
	if len(initialInPerson) != 0 {
		t.Errorf("initial in_person: got %d, want 0", len(initialInPerson))
	}
}

func TestListOrders_InvalidFilters(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.orders.ListOrders(context.Background(), ListOrdersFilter{Status: "lost"})
	requireKind(t, err, apperr.KindValidation)
	_, err = env.orders.ListOrders(context.Background(), ListOrdersFilter{Origin: "phone"})
	requireKind(t, err, apperr.KindValidation)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)
	p := env.db.addProduct("Latte", "40", true)
	order := env.db.addOrder(enum.OrderStatusInitial, "80", LineRequest{ProductID: p.ID, Quantity: 2})

	detail, err := env.orders.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detail.Items) != 1 || detail.Items[0].Quantity != 2 {
		t.Errorf("items: got %+v", detail.Items)
	}

	_, err = env.orders.GetOrder(context.Background(), uuid.New())
	requireKind(t, err, apperr.KindNotFound)
}
