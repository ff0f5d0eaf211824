package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	billingOnce sync.Once

	// ReportRunsTotal counts report generation runs by outcome.
	ReportRunsTotal *prometheus.CounterVec
	// ReportOrdersTotal counts orders processed across all report runs.
	ReportOrdersTotal prometheus.Counter
	// ReportDegradedOrdersTotal counts orders that fell back to a zero-cost entry.
	ReportDegradedOrdersTotal prometheus.Counter
	// ReportDuration records end-to-end report generation latency in seconds.
	ReportDuration prometheus.Histogram
)

// MustRegisterBillingMetrics initialises and registers billing Prometheus collectors.
func MustRegisterBillingMetrics(namespace string, reg prometheus.Registerer) {
	billingOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ReportRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Count of billing report generation runs by outcome.",
		}, []string{"result"})
		ReportOrdersTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_orders_total",
			Help:      "Total number of orders processed by report runs.",
		})
		ReportDegradedOrdersTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_degraded_orders_total",
			Help:      "Orders whose contribution degraded to a zero-cost entry.",
		})
		ReportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Latency of billing report generation runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		mustRegisterCollector(reg, ReportRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReportRunsTotal = v
			}
		})
		mustRegisterCollector(reg, ReportOrdersTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReportOrdersTotal = v
			}
		})
		mustRegisterCollector(reg, ReportDegradedOrdersTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReportDegradedOrdersTotal = v
			}
		})
		mustRegisterCollector(reg, ReportDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ReportDuration = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register billing metric: %w", err))
	}
}
