package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status tracks a report run through its lifecycle.
type Status string

const (
	StatusValidating Status = "validating"
	StatusFetching   Status = "fetching"
	StatusComputing  Status = "computing"
	StatusAggregated Status = "aggregated"
	StatusFailed     Status = "failed"
)

// ServiceCost is one service's charge on one order.
type ServiceCost struct {
	ServiceID   uuid.UUID       `json:"service_id"`
	ServiceName string          `json:"service_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderCost is the per-order breakdown inside a report. Degraded marks an
// order whose pricing failed partway; it contributes a zero-cost entry so the
// report still covers the full order set.
type OrderCost struct {
	OrderID         uuid.UUID       `json:"order_id"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Services        []ServiceCost   `json:"services"`
	Total           decimal.Decimal `json:"total"`
	Degraded        bool            `json:"degraded,omitempty"`
}

// Report is the aggregated output of one generation run.
type Report struct {
	ID             uuid.UUID                  `json:"id"`
	CustomerID     uuid.UUID                  `json:"customer_id"`
	CustomerName   string                     `json:"customer_name,omitempty"`
	From           time.Time                  `json:"from"`
	To             time.Time                  `json:"to"`
	Status         Status                     `json:"status"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	Orders         []OrderCost                `json:"orders"`
	ServiceTotals  map[string]decimal.Decimal `json:"service_totals"`
	Total          decimal.Decimal            `json:"total"`
	DegradedOrders int                        `json:"degraded_orders"`
}

// ToCSV renders the report as one row per (order, service) charge. Fields
// containing commas or quotes are quoted.
func (r *Report) ToCSV() string {
	var sb strings.Builder
	sb.WriteString("Order ID,Service ID,Service Name,Amount\n")
	for _, oc := range r.Orders {
		for _, sc := range oc.Services {
			sb.WriteString(oc.OrderID.String())
			sb.WriteByte(',')
			sb.WriteString(sc.ServiceID.String())
			sb.WriteByte(',')
			sb.WriteString(csvField(sc.ServiceName))
			sb.WriteByte(',')
			sb.WriteString(sc.Amount.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
