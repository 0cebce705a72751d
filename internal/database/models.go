package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type SupplyItem struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	NormalizedName string          `json:"normalized_name"`
	Unit           string          `json:"unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	MinQuantity    decimal.Decimal `json:"min_quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type RecipeLine struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	SupplyItemID uuid.UUID       `json:"supply_item_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
}

type Sale struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    pgtype.UUID     `json:"customer_id"`
	OperatorID    uuid.UUID       `json:"operator_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	ServiceType   pgtype.Text     `json:"service_type"`
	MilkType      pgtype.Text     `json:"milk_type"`
	MilkSurcharge decimal.Decimal `json:"milk_surcharge"`
	Comments      pgtype.Text     `json:"comments"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleItem struct {
	ID        uuid.UUID       `json:"id"`
	SaleID    uuid.UUID       `json:"sale_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID            uuid.UUID       `json:"id"`
	CustomerName  pgtype.Text     `json:"customer_name"`
	Status        string          `json:"status"`
	Origin        string          `json:"origin"`
	ServiceType   pgtype.Text     `json:"service_type"`
	MilkType      pgtype.Text     `json:"milk_type"`
	MilkSurcharge decimal.Decimal `json:"milk_surcharge"`
	Comments      pgtype.Text     `json:"comments"`
	Total         decimal.Decimal `json:"total"`
	SaleID        pgtype.UUID     `json:"sale_id"`
	TicketCode    pgtype.Text     `json:"ticket_code"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID   `json:"id"`
	OrderID   uuid.UUID   `json:"order_id"`
	ProductID uuid.UUID   `json:"product_id"`
	Quantity  int32       `json:"quantity"`
	Notes     pgtype.Text `json:"notes"`
}

type KitchenTicket struct {
	ID        uuid.UUID `json:"id"`
	SaleID    uuid.UUID `json:"sale_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type KitchenTicketItem struct {
	ID        uuid.UUID   `json:"id"`
	TicketID  uuid.UUID   `json:"ticket_id"`
	ProductID uuid.UUID   `json:"product_id"`
	Quantity  int32       `json:"quantity"`
	Notes     pgtype.Text `json:"notes"`
}

type InventoryMovement struct {
	ID           uuid.UUID       `json:"id"`
	SupplyItemID uuid.UUID       `json:"supply_item_id"`
	Direction    string          `json:"direction"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason"`
	Notes        pgtype.Text     `json:"notes"`
	TicketID     pgtype.UUID     `json:"ticket_id"`
	CreatedAt    time.Time       `json:"created_at"`
}
