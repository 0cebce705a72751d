package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/handler"
	"github.com/cafe-pos/api/internal/middleware"
)

// --- Mock ProductStore ---

type mockProductStore struct {
	products   map[uuid.UUID]database.Product
	lastActive bool
}

func newMockProductStore(products ...database.Product) *mockProductStore {
	m := &mockProductStore{products: make(map[uuid.UUID]database.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductStore) ListProducts(_ context.Context, activeOnly bool) ([]database.Product, error) {
	m.lastActive = activeOnly
	var out []database.Product
	for _, p := range m.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductStore) GetProduct(_ context.Context, id uuid.UUID) (database.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockProductStore) CreateProduct(_ context.Context, arg database.CreateProductParams) (database.Product, error) {
	p := testProduct(arg.Name, arg.Price.String(), true)
	m.products[p.ID] = p
	return p, nil
}

func (m *mockProductStore) UpdateProduct(_ context.Context, arg database.UpdateProductParams) (database.Product, error) {
	p, ok := m.products[arg.ID]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	if arg.Name.Valid {
		p.Name = arg.Name.String
	}
	if arg.Price != nil {
		p.Price = *arg.Price
	}
	if arg.IsActive.Valid {
		p.IsActive = arg.IsActive.Bool
	}
	m.products[p.ID] = p
	return p, nil
}

func testProduct(name, price string, active bool) database.Product {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	return database.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     decimal.RequireFromString(price),
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func setupProductRouter(store *mockProductStore) *chi.Mux {
	h := handler.NewProductHandler(store, testLogger)
	r := chi.NewRouter()
	r.Route("/public/products", h.RegisterPublicRoutes)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/products", h.RegisterRoutes)
	})
	return r
}

func TestPublicMenu_ActiveOnly(t *testing.T) {
	store := newMockProductStore(testProduct("Latte", "45", true), testProduct("Old blend", "30", false))

	rr := doRequest(t, setupProductRouter(store), "GET", "/public/products", nil)
	expectStatus(t, rr, http.StatusOK)

	products, _ := decodeResponse(t, rr)["products"].([]interface{})
	if len(products) != 1 {
		t.Fatalf("products: got %v", products)
	}
	if p := products[0].(map[string]interface{}); p["name"] != "Latte" || p["price"] != "45.00" {
		t.Errorf("product: got %v", p)
	}
}

func TestListProducts_StaffSeesInactive(t *testing.T) {
	store := newMockProductStore(testProduct("Latte", "45", true), testProduct("Old blend", "30", false))
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "GET", "/products", nil, staff("CASHIER"))
	expectStatus(t, rr, http.StatusOK)
	if products, _ := decodeResponse(t, rr)["products"].([]interface{}); len(products) != 2 {
		t.Errorf("products: got %v", products)
	}

	expectStatus(t, doAuthRequest(t, router, "GET", "/products?active=true", nil, staff("CASHIER")), http.StatusOK)
	if !store.lastActive {
		t.Error("expected active filter to be passed through")
	}
}

func TestCreateProduct(t *testing.T) {
	store := newMockProductStore()
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "POST", "/products", `{"name":" Mocha ","price":"48.5"}`, staff("ADMIN"))
	expectStatus(t, rr, http.StatusCreated)
	resp := decodeResponse(t, rr)
	if resp["name"] != "Mocha" || resp["price"] != "48.50" {
		t.Errorf("product: got %v", resp)
	}

	expectStatus(t, doAuthRequest(t, router, "POST", "/products", `{"name":"Mocha","price":"48.5"}`, staff("CASHIER")), http.StatusForbidden)
	expectStatus(t, doAuthRequest(t, router, "POST", "/products", `{"name":"Free","price":"-1"}`, staff("ADMIN")), http.StatusBadRequest)
	expectStatus(t, doAuthRequest(t, router, "POST", "/products", `{"name":"Odd","price":"1.005"}`, staff("ADMIN")), http.StatusBadRequest)
}

func TestUpdateProduct(t *testing.T) {
	latte := testProduct("Latte", "45", true)
	store := newMockProductStore(latte)
	router := setupProductRouter(store)

	rr := doAuthRequest(t, router, "PATCH", "/products/"+latte.ID.String(), `{"price":"47","is_active":false}`, staff("ADMIN"))
	expectStatus(t, rr, http.StatusOK)
	resp := decodeResponse(t, rr)
	if resp["price"] != "47.00" || resp["is_active"] != false || resp["name"] != "Latte" {
		t.Errorf("product: got %v", resp)
	}

	expectStatus(t, doAuthRequest(t, router, "PATCH", "/products/"+latte.ID.String(), `{}`, staff("ADMIN")), http.StatusBadRequest)
	expectStatus(t, doAuthRequest(t, router, "PATCH", "/products/"+uuid.NewString(), `{"name":"X"}`, staff("ADMIN")), http.StatusNotFound)
}

func TestGetProduct(t *testing.T) {
	latte := testProduct("Latte", "45", true)
	router := setupProductRouter(newMockProductStore(latte))

	rr := doAuthRequest(t, router, "GET", "/products/"+latte.ID.String(), nil, staff("KITCHEN"))
	expectStatus(t, rr, http.StatusOK)
	expectStatus(t, doAuthRequest(t, router, "GET", "/products/"+uuid.NewString(), nil, staff("KITCHEN")), http.StatusNotFound)
}
