package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warebill/billing/internal/catalog"
	"github.com/warebill/billing/internal/order"
)

var _ catalog.Source = (*ProductStore)(nil)

// ProductStore serves packaging metadata from the customer product table.
// Products carry up to five labeling tiers as flat column pairs; empty pairs
// are skipped during hydration.
type ProductStore struct {
	Pool *pgxpool.Pool
}

// Packaging implements catalog.Source. A missing product is (nil, nil).
func (s *ProductStore) Packaging(ctx context.Context, customerID uuid.UUID, sku string) (*catalog.Packaging, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	normalized := order.NormalizeSKU(sku)
	if normalized == "" {
		return nil, nil
	}

	var (
		labels     [5]sql.NullString
		quantities [5]sql.NullInt64
	)
	err := s.Pool.QueryRow(ctx, `
SELECT labeling_unit_1, labeling_quantity_1,
       labeling_unit_2, labeling_quantity_2,
       labeling_unit_3, labeling_quantity_3,
       labeling_unit_4, labeling_quantity_4,
       labeling_unit_5, labeling_quantity_5
FROM customer_products
WHERE customer_id = $1 AND upper(replace(sku, ' ', '')) = $2`, customerID, normalized,
	).Scan(&labels[0], &quantities[0],
		&labels[1], &quantities[1],
		&labels[2], &quantities[2],
		&labels[3], &quantities[3],
		&labels[4], &quantities[4])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pkg := &catalog.Packaging{CustomerID: customerID, SKU: normalized}
	for i := range labels {
		if !labels[i].Valid || labels[i].String == "" || !quantities[i].Valid {
			continue
		}
		pkg.Tiers = append(pkg.Tiers, catalog.Tier{
			Label:    labels[i].String,
			Quantity: quantities[i].Int64,
		})
	}
	return pkg, nil
}
