package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ticketColumns = `id, sale_id, status, created_at, updated_at`

// KitchenTicketSaleConstraint is the unique constraint allowing one ticket per sale.
const KitchenTicketSaleConstraint = "kitchen_tickets_sale_id_key"

func scanKitchenTicket(row scanner) (KitchenTicket, error) {
	var i KitchenTicket
	err := row.Scan(&i.ID, &i.SaleID, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func scanKitchenTicketItem(row scanner) (KitchenTicketItem, error) {
	var i KitchenTicketItem
	err := row.Scan(&i.ID, &i.TicketID, &i.ProductID, &i.Quantity, &i.Notes)
	return i, err
}

const createKitchenTicket = `
INSERT INTO kitchen_tickets (sale_id, status)
VALUES ($1, 'pending')
RETURNING ` + ticketColumns

func (q *Queries) CreateKitchenTicket(ctx context.Context, saleID uuid.UUID) (KitchenTicket, error) {
	return scanKitchenTicket(q.db.QueryRow(ctx, createKitchenTicket, saleID))
}

const createKitchenTicketItem = `
INSERT INTO kitchen_ticket_items (ticket_id, product_id, quantity, notes)
VALUES ($1, $2, $3, $4)
RETURNING id, ticket_id, product_id, quantity, notes`

type CreateKitchenTicketItemParams struct {
	TicketID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Notes     pgtype.Text
}

func (q *Queries) CreateKitchenTicketItem(ctx context.Context, arg CreateKitchenTicketItemParams) (KitchenTicketItem, error) {
	return scanKitchenTicketItem(q.db.QueryRow(ctx, createKitchenTicketItem, arg.TicketID, arg.ProductID, arg.Quantity, arg.Notes))
}

const getKitchenTicket = `SELECT ` + ticketColumns + ` FROM kitchen_tickets WHERE id = $1`

func (q *Queries) GetKitchenTicket(ctx context.Context, id uuid.UUID) (KitchenTicket, error) {
	return scanKitchenTicket(q.db.QueryRow(ctx, getKitchenTicket, id))
}

// GetKitchenTicketForUpdate serializes concurrent transitions of one ticket.
const getKitchenTicketForUpdate = `SELECT ` + ticketColumns + ` FROM kitchen_tickets WHERE id = $1 FOR UPDATE`

func (q *Queries) GetKitchenTicketForUpdate(ctx context.Context, id uuid.UUID) (KitchenTicket, error) {
	return scanKitchenTicket(q.db.QueryRow(ctx, getKitchenTicketForUpdate, id))
}

const getKitchenTicketBySale = `SELECT ` + ticketColumns + ` FROM kitchen_tickets WHERE sale_id = $1`

func (q *Queries) GetKitchenTicketBySale(ctx context.Context, saleID uuid.UUID) (KitchenTicket, error) {
	return scanKitchenTicket(q.db.QueryRow(ctx, getKitchenTicketBySale, saleID))
}

const listKitchenTickets = `
SELECT ` + ticketColumns + `
FROM kitchen_tickets
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at ASC
LIMIT $2 OFFSET $3`

type ListKitchenTicketsParams struct {
	Status pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListKitchenTickets(ctx context.Context, arg ListKitchenTicketsParams) ([]KitchenTicket, error) {
	rows, err := q.db.Query(ctx, listKitchenTickets, arg.Status, arg.Limit, arg.Offset)
	return collect(rows, err, scanKitchenTicket)
}

const listKitchenTicketItems = `
SELECT id, ticket_id, product_id, quantity, notes
FROM kitchen_ticket_items
WHERE ticket_id = $1
ORDER BY id`

func (q *Queries) ListKitchenTicketItems(ctx context.Context, ticketID uuid.UUID) ([]KitchenTicketItem, error) {
	rows, err := q.db.Query(ctx, listKitchenTicketItems, ticketID)
	return collect(rows, err, scanKitchenTicketItem)
}

const updateKitchenTicketStatus = `
UPDATE kitchen_tickets
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + ticketColumns

type UpdateKitchenTicketStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdateKitchenTicketStatus(ctx context.Context, arg UpdateKitchenTicketStatusParams) (KitchenTicket, error) {
	return scanKitchenTicket(q.db.QueryRow(ctx, updateKitchenTicketStatus, arg.ID, arg.Status))
}
