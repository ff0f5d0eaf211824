package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warebill/billing/internal/order"
	"github.com/warebill/billing/internal/rules"
)

// ChargeKind distinguishes how often a service bills within one report.
type ChargeKind string

const (
	// ChargeFlat bills the unit price at most once per order.
	ChargeFlat ChargeKind = "flat"
	// ChargeMetered bills per order, scaled by a quantity basis.
	ChargeMetered ChargeKind = "metered"
)

// Service is a billable service definition shared across customers.
type Service struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	ChargeKind ChargeKind `json:"charge_kind"`
}

// Binding attaches a service to a customer with a negotiated unit price.
// RestrictedSKUs, when non-empty, limits metering to those normalized SKUs
// and claims them away from pick-based services. Groups gate applicability
// per order; a binding with no groups applies to every order.
type Binding struct {
	ID             uuid.UUID       `json:"id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	Service        Service         `json:"service"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	RestrictedSKUs []string        `json:"restricted_skus,omitempty"`
	Groups         []rules.Group   `json:"groups,omitempty"`
}

// Customer is the slice of customer identity the billing engine needs.
type Customer struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CustomerSource resolves customers by ID. A missing customer is (nil, nil).
type CustomerSource interface {
	Customer(ctx context.Context, id uuid.UUID) (*Customer, error)
}

// OrderSource fetches the closed orders of a customer inside a window.
type OrderSource interface {
	ClosedBetween(ctx context.Context, customerID uuid.UUID, from, to time.Time) ([]order.Snapshot, error)
}

// BindingSource fetches a customer's active service bindings.
type BindingSource interface {
	ForCustomer(ctx context.Context, customerID uuid.UUID) ([]Binding, error)
}

// NormalizedRestrictedSKUs returns the binding's SKU restriction as a set of
// normalized SKUs. An empty map means the binding is unrestricted.
func (b Binding) NormalizedRestrictedSKUs() map[string]struct{} {
	if len(b.RestrictedSKUs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b.RestrictedSKUs))
	for _, raw := range b.RestrictedSKUs {
		if sku := order.NormalizeSKU(raw); sku != "" {
			set[sku] = struct{}{}
		}
	}
	return set
}

// ClaimedSKUs collects every normalized SKU claimed by a SKU-restricted
// binding. Pick-based services skip these SKUs so an item is never billed
// both by its dedicated service and by the generic pick services.
func ClaimedSKUs(bindings []Binding) map[string]struct{} {
	claimed := make(map[string]struct{})
	for _, b := range bindings {
		for sku := range b.NormalizedRestrictedSKUs() {
			claimed[sku] = struct{}{}
		}
	}
	return claimed
}
