package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warebill/billing/internal/billing"
	"github.com/warebill/billing/internal/order"
)

var _ billing.OrderSource = (*OrderStore)(nil)

// OrderStore fetches order snapshots from Postgres. Numeric columns are
// scanned as text and parsed into decimals; a value that does not parse is
// treated as absent rather than failing the fetch.
type OrderStore struct {
	Pool *pgxpool.Pool
}

// ClosedBetween implements billing.OrderSource. The window is inclusive at
// both ends, ordered by close time for deterministic reports.
func (s *OrderStore) ClosedBetween(ctx context.Context, customerID uuid.UUID, from, to time.Time) ([]order.Snapshot, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.Pool.Query(ctx, `
SELECT id, customer_id, reference_number,
       ship_to_name, ship_to_company, ship_to_city, ship_to_state, ship_to_country,
       carrier, notes,
       weight_lb::text, line_items, total_item_qty, volume_cuft::text, packages,
       sku_data, closed_at
FROM orders
WHERE customer_id = $1 AND closed_at >= $2 AND closed_at <= $3
ORDER BY closed_at, id`, customerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []order.Snapshot
	for rows.Next() {
		var (
			o                order.Snapshot
			refNumber        sql.NullString
			shipName         sql.NullString
			shipCompany      sql.NullString
			shipCity         sql.NullString
			shipState        sql.NullString
			shipCountry      sql.NullString
			carrier          sql.NullString
			notes            sql.NullString
			weight, volume   *string
			lineItems        sql.NullInt64
			totalQty         sql.NullInt64
			packages         sql.NullInt64
			skuData          []byte
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &refNumber,
			&shipName, &shipCompany, &shipCity, &shipState, &shipCountry,
			&carrier, &notes,
			&weight, &lineItems, &totalQty, &volume, &packages,
			&skuData, &o.ClosedAt); err != nil {
			return nil, err
		}
		o.ReferenceNumber = refNumber.String
		o.ShipToName = shipName.String
		o.ShipToCompany = shipCompany.String
		o.ShipToCity = shipCity.String
		o.ShipToState = shipState.String
		o.ShipToCountry = shipCountry.String
		o.Carrier = carrier.String
		o.Notes = notes.String
		o.WeightLb = parseNullDecimal(weight)
		o.VolumeCuFt = parseNullDecimal(volume)
		if lineItems.Valid {
			o.LineItems = &lineItems.Int64
		}
		if totalQty.Valid {
			o.TotalItemQty = &totalQty.Int64
		}
		if packages.Valid {
			o.Packages = &packages.Int64
		}
		if len(skuData) > 0 {
			o.SKUData = skuData
		}
		snapshots = append(snapshots, o)
	}
	return snapshots, rows.Err()
}
