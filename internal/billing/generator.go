package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/warebill/billing/internal/common"
	"github.com/warebill/billing/internal/obs"
	"github.com/warebill/billing/internal/order"
	"github.com/warebill/billing/internal/rules"
)

// Error codes surfaced by report generation.
const (
	CodeCustomerNotFound     = "customer_not_found"
	CodeInvalidDateRange     = "invalid_date_range"
	CodeNoServicesConfigured = "no_services_configured"
)

// DefaultMaxRange caps a report window at one year.
const DefaultMaxRange = 365 * 24 * time.Hour

// Request asks for a billing report over [From, To] for one customer.
type Request struct {
	CustomerID uuid.UUID `json:"customer_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

// Generator produces billing reports. It owns no storage; sources are
// injected so the same generator serves the worker and the CLI. A run fails
// only on validation or fetch problems. Once computing starts, per-order
// failures degrade that order to a zero-cost entry instead of failing the
// run.
type Generator struct {
	Customers CustomerSource
	Orders    OrderSource
	Bindings  BindingSource
	Calc      *Calculator
	Eval      rules.Evaluator
	Log       *zerolog.Logger
	Tracer    trace.Tracer
	MaxRange  time.Duration
}

func (g *Generator) logger() *zerolog.Logger {
	if g != nil && g.Log != nil {
		return g.Log
	}
	nop := zerolog.Nop()
	return &nop
}

func (g *Generator) maxRange() time.Duration {
	if g.MaxRange > 0 {
		return g.MaxRange
	}
	return DefaultMaxRange
}

// Generate runs the full report lifecycle. The returned report carries
// StatusAggregated on success. On failure the error is an AppError with a
// stable code where the failure is a caller mistake, and the report is still
// returned with StatusFailed so the terminal state stays observable.
func (g *Generator) Generate(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()
	if g.Tracer != nil {
		var span trace.Span
		ctx, span = g.Tracer.Start(ctx, "billing.generate_report",
			trace.WithAttributes(attribute.String("customer_id", req.CustomerID.String())))
		defer span.End()
	}

	report, err := g.generate(ctx, req)
	elapsed := time.Since(started)
	if err != nil {
		countRun("failed")
		g.logger().Error().Err(err).
			Stringer("customer_id", req.CustomerID).
			Dur("elapsed", elapsed).
			Msg("report generation failed")
		return report, err
	}
	countRun("success")
	if obs.ReportDuration != nil {
		obs.ReportDuration.Observe(elapsed.Seconds())
	}
	g.logger().Info().
		Stringer("report_id", report.ID).
		Stringer("customer_id", req.CustomerID).
		Int("orders", len(report.Orders)).
		Int("degraded_orders", report.DegradedOrders).
		Str("total", report.Total.String()).
		Dur("elapsed", elapsed).
		Msg("report generated")
	return report, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		ID:            uuid.New(),
		CustomerID:    req.CustomerID,
		From:          req.From,
		To:            req.To,
		GeneratedAt:   time.Now().UTC(),
		Status:        StatusValidating,
		Orders:        []OrderCost{},
		ServiceTotals: make(map[string]decimal.Decimal),
		Total:         decimal.Zero,
	}
	fail := func(err error) (*Report, error) {
		report.Status = StatusFailed
		return report, err
	}

	if req.CustomerID == uuid.Nil {
		return fail(common.NewAppError(CodeCustomerNotFound, "customer id is required", nil))
	}
	// Equal endpoints are a valid single-instant window.
	if req.From.IsZero() || req.To.IsZero() || req.From.After(req.To) {
		return fail(common.NewAppError(CodeInvalidDateRange, "report window must satisfy from <= to", nil))
	}
	if req.To.Sub(req.From) > g.maxRange() {
		return fail(common.NewAppError(CodeInvalidDateRange, "report window exceeds the maximum range", nil))
	}

	customer, err := g.Customers.Customer(ctx, req.CustomerID)
	if err != nil {
		return fail(err)
	}
	if customer == nil {
		return fail(common.NewAppError(CodeCustomerNotFound, "customer does not exist", nil))
	}
	report.CustomerName = customer.Name

	report.Status = StatusFetching
	bindings, err := g.Bindings.ForCustomer(ctx, req.CustomerID)
	if err != nil {
		return fail(err)
	}
	if len(bindings) == 0 {
		return fail(common.NewAppError(CodeNoServicesConfigured, "customer has no billable services", nil))
	}
	orders, err := g.Orders.ClosedBetween(ctx, req.CustomerID, req.From, req.To)
	if err != nil {
		return fail(err)
	}

	report.Status = StatusComputing
	report.Orders = make([]OrderCost, 0, len(orders))
	claimed := ClaimedSKUs(bindings)

	for i := range orders {
		o := &orders[i]
		oc := g.priceOrder(ctx, o, bindings, claimed)
		if oc.Degraded {
			report.DegradedOrders++
			if obs.ReportDegradedOrdersTotal != nil {
				obs.ReportDegradedOrdersTotal.Inc()
			}
		}
		for _, sc := range oc.Services {
			report.ServiceTotals[sc.ServiceName] = report.ServiceTotals[sc.ServiceName].Add(sc.Amount)
		}
		report.Total = report.Total.Add(oc.Total)
		report.Orders = append(report.Orders, oc)
	}
	if obs.ReportOrdersTotal != nil {
		obs.ReportOrdersTotal.Add(float64(len(orders)))
	}

	report.Status = StatusAggregated
	return report, nil
}

// priceOrder charges every applicable binding against one order. A flat
// service charges at most once per order, no matter how many bindings carry
// it. Any panic while pricing degrades the order to an empty zero-cost
// entry; the report still lists it so the order set stays complete.
func (g *Generator) priceOrder(ctx context.Context, o *order.Snapshot, bindings []Binding, claimed map[string]struct{}) (oc OrderCost) {
	oc = OrderCost{
		OrderID:         o.ID,
		ReferenceNumber: o.ReferenceNumber,
		Services:        []ServiceCost{},
		Total:           decimal.Zero,
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger().Error().Stringer("order_id", o.ID).Interface("panic", r).
				Msg("order pricing degraded")
			oc = OrderCost{
				OrderID:         o.ID,
				ReferenceNumber: o.ReferenceNumber,
				Services:        []ServiceCost{},
				Total:           decimal.Zero,
				Degraded:        true,
			}
		}
	}()

	chargedFlat := make(map[uuid.UUID]struct{})
	for _, b := range bindings {
		if b.Service.ChargeKind == ChargeFlat {
			if _, done := chargedFlat[b.Service.ID]; done {
				continue
			}
		}
		if !g.applies(b, o) {
			continue
		}
		if b.Service.ChargeKind == ChargeFlat {
			chargedFlat[b.Service.ID] = struct{}{}
		}
		amount := g.Calc.Cost(ctx, b, o, claimed)
		amount = g.applyAdjustments(b, o, amount)
		oc.Services = append(oc.Services, ServiceCost{
			ServiceID:   b.Service.ID,
			ServiceName: b.Service.Name,
			Amount:      amount,
		})
		oc.Total = oc.Total.Add(amount)
	}
	return oc
}

// applies reports whether the binding's rule groups admit the order. A
// binding with no groups applies unconditionally; otherwise any satisfied
// group admits it.
func (g *Generator) applies(b Binding, o *order.Snapshot) bool {
	if len(b.Groups) == 0 {
		return true
	}
	for _, group := range b.Groups {
		if g.Eval.EvaluateGroup(group, o) {
			return true
		}
	}
	return false
}

// applyAdjustments runs the calculation chains of every matching advanced
// rule over the base amount, in stored order.
func (g *Generator) applyAdjustments(b Binding, o *order.Snapshot, amount decimal.Decimal) decimal.Decimal {
	for _, group := range b.Groups {
		for _, ar := range group.Advanced {
			if len(ar.Calculations) == 0 && ar.Adjustment == nil {
				continue
			}
			if g.Eval.EvaluateAdvanced(ar, o) {
				amount = g.Eval.ApplyAdjustments(ar, o, amount)
			}
		}
	}
	if amount.Sign() < 0 {
		return decimal.Zero
	}
	return amount
}

func countRun(result string) {
	if obs.ReportRunsTotal != nil {
		obs.ReportRunsTotal.WithLabelValues(result).Inc()
	}
}
