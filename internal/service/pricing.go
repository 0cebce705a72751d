package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/cafe-pos/api/internal/apperr"
	"github.com/cafe-pos/api/internal/database"
)

// ProductGetter looks up catalog products. Satisfied by *database.Queries.
type ProductGetter interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
}

type pricedLine struct {
	ProductID uuid.UUID
	Quantity  int32
	Notes     pgtype.Text
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// priceLines prices every line from the current catalog and returns the
// products subtotal. Missing or inactive products are all reported together.
func priceLines(ctx context.Context, store ProductGetter, lines []LineRequest) ([]pricedLine, decimal.Decimal, error) {
	if err := validateLines(lines); err != nil {
		return nil, decimal.Zero, err
	}

	priced := make([]pricedLine, 0, len(lines))
	subtotal := decimal.Zero
	var violations []string
	for i, l := range lines {
		product, err := store.GetProduct(ctx, l.ProductID)
		if errors.Is(err, pgx.ErrNoRows) {
			violations = append(violations, fmt.Sprintf("item[%d]: product %s not found", i, l.ProductID))
			continue
		}
		if err != nil {
			return nil, decimal.Zero, apperr.FromStore(err, "product", "get product")
		}
		if !product.IsActive {
			violations = append(violations, fmt.Sprintf("item[%d]: product %q is inactive", i, product.Name))
			continue
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt32(l.Quantity))
		subtotal = subtotal.Add(lineTotal)
		priced = append(priced, pricedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Notes:     text(l.Notes),
			UnitPrice: product.Price,
			Subtotal:  lineTotal,
		})
	}
	if len(violations) > 0 {
		return nil, decimal.Zero, apperr.BusinessRule("order lines reference unavailable products", violations...)
	}
	return priced, subtotal, nil
}
