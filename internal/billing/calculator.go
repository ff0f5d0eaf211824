package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warebill/billing/internal/catalog"
	"github.com/warebill/billing/internal/order"
)

// Calculator prices one service binding against one order. All cost paths
// fail closed: missing quantities, missing packaging metadata, or lookup
// failures reduce the billable quantity rather than surfacing an error, so
// Cost never returns a negative amount and never fails.
type Calculator struct {
	Packaging catalog.Source
	Log       *zerolog.Logger
}

func (c *Calculator) logger() *zerolog.Logger {
	if c != nil && c.Log != nil {
		return c.Log
	}
	nop := zerolog.Nop()
	return &nop
}

// Cost returns the amount the binding charges for the order. claimed holds
// the normalized SKUs owned by SKU-restricted bindings; pick-based services
// skip them. Flat bindings price once here and are deduplicated by the
// report generator.
func (c *Calculator) Cost(ctx context.Context, b Binding, o *order.Snapshot, claimed map[string]struct{}) decimal.Decimal {
	if b.Service.ChargeKind == ChargeFlat {
		return clampZero(b.UnitPrice)
	}

	if restricted := b.NormalizedRestrictedSKUs(); len(restricted) > 0 {
		return clampZero(c.restrictedCost(b, o, restricted))
	}

	switch ServiceCategory(b.Service.Name) {
	case CategoryCasePick:
		return clampZero(c.casePickCost(ctx, b, o, claimed))
	case CategoryResidualPick:
		return clampZero(c.residualPickCost(ctx, b, o, claimed))
	case CategoryUniqueSKU:
		return clampZero(c.uniqueSKUCost(b, o))
	default:
		return clampZero(c.genericCost(b, o))
	}
}

// restrictedCost sums the quantities of the order's SKUs that appear in the
// binding's restriction set.
func (c *Calculator) restrictedCost(b Binding, o *order.Snapshot, restricted map[string]struct{}) decimal.Decimal {
	matched := decimal.Zero
	for sku, qty := range o.SKUQuantities() {
		if _, ok := restricted[sku]; ok {
			matched = matched.Add(qty)
		}
	}
	return matched.Mul(b.UnitPrice)
}

// casePickCost bills full cases. Unclaimed SKUs without a case-labeled
// packaging tier contribute no cases; their units fall to the residual pick
// service instead.
func (c *Calculator) casePickCost(ctx context.Context, b Binding, o *order.Snapshot, claimed map[string]struct{}) decimal.Decimal {
	var cases int64
	for sku, qty := range o.SKUQuantities() {
		if _, ok := claimed[sku]; ok {
			continue
		}
		size, ok := c.caseSize(ctx, o.CustomerID, sku)
		if !ok {
			continue
		}
		cases += qty.IntPart() / size
	}
	return decimal.NewFromInt(cases).Mul(b.UnitPrice)
}

// residualPickCost bills the units left after full cases. A SKU without case
// packaging bills its entire quantity.
func (c *Calculator) residualPickCost(ctx context.Context, b Binding, o *order.Snapshot, claimed map[string]struct{}) decimal.Decimal {
	var units int64
	for sku, qty := range o.SKUQuantities() {
		if _, ok := claimed[sku]; ok {
			continue
		}
		if size, ok := c.caseSize(ctx, o.CustomerID, sku); ok {
			units += qty.IntPart() % size
		} else {
			units += qty.IntPart()
		}
	}
	return decimal.NewFromInt(units).Mul(b.UnitPrice)
}

func (c *Calculator) uniqueSKUCost(b Binding, o *order.Snapshot) decimal.Decimal {
	return decimal.NewFromInt(int64(len(o.SKUQuantities()))).Mul(b.UnitPrice)
}

// genericCost bills the order's total item quantity, defaulting to a single
// unit when the header count is absent.
func (c *Calculator) genericCost(b Binding, o *order.Snapshot) decimal.Decimal {
	qty, ok := o.Quantity()
	if !ok {
		qty = 1
	}
	return decimal.NewFromInt(qty).Mul(b.UnitPrice)
}

func (c *Calculator) caseSize(ctx context.Context, customerID uuid.UUID, sku string) (int64, bool) {
	if c == nil || c.Packaging == nil {
		return 0, false
	}
	pkg, err := c.Packaging.Packaging(ctx, customerID, sku)
	if err != nil {
		c.logger().Warn().Err(err).Str("sku", sku).Msg("packaging lookup failed")
		return 0, false
	}
	return pkg.CaseSize()
}

func clampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.Sign() < 0 {
		return decimal.Zero
	}
	return amount
}
