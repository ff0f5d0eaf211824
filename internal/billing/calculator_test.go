package billing_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warebill/billing/internal/billing"
	"github.com/warebill/billing/internal/catalog"
	"github.com/warebill/billing/internal/order"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intp(v int64) *int64 { return &v }

// mapSource serves packaging records keyed by normalized SKU.
type mapSource struct {
	byKey map[string]*catalog.Packaging
}

func (s *mapSource) Packaging(_ context.Context, _ uuid.UUID, sku string) (*catalog.Packaging, error) {
	return s.byKey[order.NormalizeSKU(sku)], nil
}

func caseSource(sku string, size int64) catalog.Source {
	return &mapSource{byKey: map[string]*catalog.Packaging{
		order.NormalizeSKU(sku): {SKU: sku, Tiers: []catalog.Tier{{Label: "case", Quantity: size}}},
	}}
}

func metered(name, price string) billing.Binding {
	return billing.Binding{
		ID:        uuid.New(),
		Service:   billing.Service{ID: uuid.New(), Name: name, ChargeKind: billing.ChargeMetered},
		UnitPrice: dec(price),
	}
}

func orderWithSKUs(skuJSON string) *order.Snapshot {
	return &order.Snapshot{ID: uuid.New(), CustomerID: uuid.New(), SKUData: skuJSON}
}

func TestCostSKURestricted(t *testing.T) {
	calc := &billing.Calculator{}
	b := metered("Special Handling", "1.00")
	b.RestrictedSKUs = []string{" abc "}
	o := orderWithSKUs(`[{"sku":"abc","quantity":3},{"sku":"xyz","quantity":5}]`)

	got := calc.Cost(context.Background(), b, o, nil)
	require.True(t, got.Equal(dec("3.00")), "got %s", got)
}

func TestCostUniqueSKUCount(t *testing.T) {
	calc := &billing.Calculator{}
	b := metered("SKU Cost", "1.00")
	o := orderWithSKUs(`[{"sku":"a","quantity":10},{"sku":"b","quantity":1},{"sku":"c","quantity":2},{"sku":"d","quantity":7}]`)

	got := calc.Cost(context.Background(), b, o, nil)
	require.True(t, got.Equal(dec("4.00")), "got %s", got)
}

func TestCostCasePickAndResidual(t *testing.T) {
	// Case size 12, quantity 25: two full cases plus one residual unit.
	src := caseSource("WIDGET", 12)
	calc := &billing.Calculator{Packaging: src}
	o := orderWithSKUs(`[{"sku":"widget","quantity":25}]`)
	ctx := context.Background()

	casePick := metered("Case Pick", "2.00")
	got := calc.Cost(ctx, casePick, o, nil)
	require.True(t, got.Equal(dec("4.00")), "case pick got %s", got)

	residual := metered("Pick Cost", "0.50")
	got = calc.Cost(ctx, residual, o, nil)
	require.True(t, got.Equal(dec("0.50")), "pick cost got %s", got)
}

func TestCostResidualWithoutPackagingBillsFullQuantity(t *testing.T) {
	calc := &billing.Calculator{Packaging: &mapSource{byKey: map[string]*catalog.Packaging{}}}
	o := orderWithSKUs(`[{"sku":"loose","quantity":9}]`)

	got := calc.Cost(context.Background(), metered("Pick Cost", "0.50"), o, nil)
	require.True(t, got.Equal(dec("4.50")), "got %s", got)

	// Without case packaging nothing counts as a case.
	got = calc.Cost(context.Background(), metered("Case Pick", "2.00"), o, nil)
	require.True(t, got.IsZero(), "got %s", got)
}

func TestCostPickServicesSkipClaimedSKUs(t *testing.T) {
	src := caseSource("WIDGET", 12)
	calc := &billing.Calculator{Packaging: src}
	o := orderWithSKUs(`[{"sku":"widget","quantity":25},{"sku":"gadget","quantity":4}]`)
	claimed := map[string]struct{}{"WIDGET": {}}

	got := calc.Cost(context.Background(), metered("Case Pick", "2.00"), o, claimed)
	require.True(t, got.IsZero(), "got %s", got)

	got = calc.Cost(context.Background(), metered("Pick Cost", "0.50"), o, claimed)
	require.True(t, got.Equal(dec("2.00")), "got %s", got)
}

func TestCostGenericUsesTotalItemQuantity(t *testing.T) {
	calc := &billing.Calculator{}
	o := orderWithSKUs(`[{"sku":"a","quantity":2}]`)
	o.TotalItemQty = intp(30)

	got := calc.Cost(context.Background(), metered("Storage Fee", "0.10"), o, nil)
	require.True(t, got.Equal(dec("3.00")), "got %s", got)

	// Missing header count defaults to a single unit.
	o.TotalItemQty = nil
	got = calc.Cost(context.Background(), metered("Storage Fee", "0.10"), o, nil)
	require.True(t, got.Equal(dec("0.10")), "got %s", got)
}

func TestCostFlatAndClamp(t *testing.T) {
	calc := &billing.Calculator{}
	flat := billing.Binding{
		Service:   billing.Service{Name: "Account Management", ChargeKind: billing.ChargeFlat},
		UnitPrice: dec("25.00"),
	}
	got := calc.Cost(context.Background(), flat, orderWithSKUs(""), nil)
	require.True(t, got.Equal(dec("25.00")), "got %s", got)

	flat.UnitPrice = dec("-5")
	got = calc.Cost(context.Background(), flat, orderWithSKUs(""), nil)
	require.True(t, got.IsZero(), "got %s", got)
}

func TestServiceCategory(t *testing.T) {
	require.Equal(t, billing.CategoryCasePick, billing.ServiceCategory("Standard Case Pick"))
	require.Equal(t, billing.CategoryResidualPick, billing.ServiceCategory("Pick Cost"))
	require.Equal(t, billing.CategoryUniqueSKU, billing.ServiceCategory("sku cost"))
	require.Equal(t, billing.CategoryGeneric, billing.ServiceCategory("Storage Fee"))
}
