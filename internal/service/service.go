// Package service holds the transactional business operations: order
// lifecycle, payment processing, kitchen tickets and the inventory ledger.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool runs plain reads and starts transactions. Satisfied by *pgxpool.Pool.
type Pool interface {
	database.DBTX
	TxBeginner
}

// LineRequest is one product line of an order, sale or ticket.
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int32
	Notes     string
}

// Page bounds a list query.
type Page struct {
	Limit  int32
	Offset int32
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func begin(ctx context.Context, pool TxBeginner) (pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "transaction", "begin tx")
	}
	return tx, nil
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperr.FromStore(err, "transaction", "commit")
	}
	return nil
}

type orderLocker interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// orderConflict re-reads an order whose guarded write matched no row and
// reports the status it holds now.
func orderConflict(ctx context.Context, store orderLocker, id uuid.UUID, expected ...string) error {
	current, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "order", "reload order")
	}
	return apperr.StateConflict("order", current.Status, expected...)
}

// validateLines reports every structurally invalid line at once.
func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return apperr.Validation("items are required")
	}
	var violations []string
	for i, l := range lines {
		if l.ProductID == uuid.Nil {
			violations = append(violations, fmt.Sprintf("item[%d]: product_id is required", i))
		}
		if l.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("item[%d]: quantity must be > 0", i))
		}
	}
	if len(violations) > 0 {
		return apperr.Validation("invalid items", violations...)
	}
	return nil
}

// GenerateTicketCode returns a human-facing ticket identifier of the form
// TICKET-YYYYMMDD-HHMMSS-XXXX. Uniqueness is probabilistic.
func GenerateTicketCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("TICKET-%s-%s", now.Format("20060102-150405"), suffix)
}

func text(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	return pgtype.Text{String: s, Valid: s != ""}
}

func optionalUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil || *id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

var (
	_ OrderStore     = (*database.Queries)(nil)
	_ PaymentStore   = (*database.Queries)(nil)
	_ TicketStore    = (*database.Queries)(nil)
	_ InventoryStore = (*database.Queries)(nil)
)
