package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SalesMetrics holds the business metrics of the order and inventory engines.
type SalesMetrics struct {
	OrdersCreated       prometheus.Counter
	OrderValue          prometheus.Histogram
	OrderTransitions    *prometheus.CounterVec
	StockMovements      *prometheus.CounterVec
	StockRejections     *prometheus.CounterVec
	ConcurrencyConflict *prometheus.CounterVec
}

// NewSalesMetrics registers the metrics with reg. Pass prometheus.NewRegistry()
// in tests to keep the default registry clean.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	m := &SalesMetrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "omnipos",
			Subsystem: "sales",
			Name:      "orders_created_total",
			Help:      "Sale orders created.",
		}),
		OrderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "omnipos",
			Subsystem: "sales",
			Name:      "order_total_amount",
			Help:      "Total amount of created orders, in BRL.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnipos",
			Subsystem: "sales",
			Name:      "order_transitions_total",
			Help:      "Order status transitions by source, target and result.",
		}, []string{"from", "to", "result"}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnipos",
			Subsystem: "inventory",
			Name:      "stock_movements_total",
			Help:      "Committed stock movements by type.",
		}, []string{"type"}),
		StockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnipos",
			Subsystem: "inventory",
			Name:      "stock_rejections_total",
			Help:      "Operations rejected for lack of stock.",
		}, []string{"reason"}),
		ConcurrencyConflict: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omnipos",
			Subsystem: "sales",
			Name:      "concurrency_conflicts_total",
			Help:      "Operations aborted by lock contention.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.OrdersCreated,
		m.OrderValue,
		m.OrderTransitions,
		m.StockMovements,
		m.StockRejections,
		m.ConcurrencyConflict,
	)
	return m
}
