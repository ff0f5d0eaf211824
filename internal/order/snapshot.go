package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of one order as the billing engine consumes
// it. Optional numeric fields are pointers so a missing value is
// distinguishable from zero. SKUData holds the raw SKU payload in whatever
// shape the upstream record carried; ParseSKUQuantities canonicalizes it on
// demand.
type Snapshot struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	ReferenceNumber string
	ShipToName      string
	ShipToCompany   string
	ShipToCity      string
	ShipToState     string
	ShipToCountry   string
	Carrier         string
	Notes           string
	WeightLb        *decimal.Decimal
	LineItems       *int64
	TotalItemQty    *int64
	VolumeCuFt      *decimal.Decimal
	Packages        *int64
	SKUData         any
	ClosedAt        time.Time
}

// SKUQuantities parses the raw SKU payload into a normalized SKU -> quantity
// map. The result is recomputed per call; the snapshot itself never mutates.
func (s *Snapshot) SKUQuantities() map[string]decimal.Decimal {
	if s == nil {
		return map[string]decimal.Decimal{}
	}
	return ParseSKUQuantities(s.SKUData)
}

// Weight returns the order weight and whether it is present.
func (s *Snapshot) Weight() (decimal.Decimal, bool) {
	if s == nil || s.WeightLb == nil {
		return decimal.Decimal{}, false
	}
	return *s.WeightLb, true
}

// Volume returns the order volume and whether it is present.
func (s *Snapshot) Volume() (decimal.Decimal, bool) {
	if s == nil || s.VolumeCuFt == nil {
		return decimal.Decimal{}, false
	}
	return *s.VolumeCuFt, true
}

// Quantity returns the total item quantity and whether it is present.
func (s *Snapshot) Quantity() (int64, bool) {
	if s == nil || s.TotalItemQty == nil {
		return 0, false
	}
	return *s.TotalItemQty, true
}
