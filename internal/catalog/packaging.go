package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Tier is one (unit label, unit quantity) pair on a product's packaging
// record. Products carry up to five ordered tiers.
type Tier struct {
	Label    string `json:"label"`
	Quantity int64  `json:"quantity"`
}

// Packaging is the packaging metadata for one (customer, SKU) pair. Writers
// guarantee tiers have no gaps, but readers tolerate violations: a tier with
// an empty label or non-positive quantity simply never counts as a case.
type Packaging struct {
	CustomerID uuid.UUID `json:"customer_id"`
	SKU        string    `json:"sku"`
	Tiers      []Tier    `json:"tiers"`
}

// IsCase reports whether the tier's label denotes case packaging.
func (t Tier) IsCase() bool {
	return strings.EqualFold(strings.TrimSpace(t.Label), "case")
}

// CaseSize returns the smallest case-labeled tier quantity, if any. When a
// product carries several case tiers the smallest one defines the billable
// case size.
func (p *Packaging) CaseSize() (int64, bool) {
	if p == nil {
		return 0, false
	}
	var best int64
	for _, tier := range p.Tiers {
		if !tier.IsCase() || tier.Quantity <= 0 {
			continue
		}
		if best == 0 || tier.Quantity < best {
			best = tier.Quantity
		}
	}
	return best, best > 0
}

// Source looks up packaging metadata by customer and normalized SKU. A
// missing record is (nil, nil), not an error.
type Source interface {
	Packaging(ctx context.Context, customerID uuid.UUID, sku string) (*Packaging, error)
}
