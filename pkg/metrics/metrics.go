package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersCompleted counts orders that reached a terminal status, by outcome.
var OrdersCompleted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexrouter_orders_completed_total",
		Help: "Total number of orders that reached a terminal status",
	},
	[]string{"status"},
)

// PipelineLatency records end-to-end latency of the execution pipeline per order.
var PipelineLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "dexrouter_pipeline_latency_seconds",
		Help:    "Latency in seconds to drive one order to a terminal status",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34},
	},
)

// RoutingDecisions counts routing decisions by winning venue.
var RoutingDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexrouter_routing_decisions_total",
		Help: "Total number of routing decisions by chosen venue",
	},
	[]string{"venue"},
)

// ExecutionRetries counts retried execution attempts.
var ExecutionRetries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexrouter_execution_retries_total",
		Help: "Total number of retried execution attempts",
	},
)

// ActiveObservers tracks currently connected status stream observers.
var ActiveObservers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "dexrouter_active_observers",
		Help: "Number of currently connected status stream observers",
	},
)

func init() {
	prometheus.MustRegister(OrdersCompleted, PipelineLatency)
	prometheus.MustRegister(RoutingDecisions, ExecutionRetries, ActiveObservers)
}
