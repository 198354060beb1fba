package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "billing_bff"

var (
	CheckoutTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_transition_total",
			Help:      "Count of checkout flow state transitions",
		},
		[]string{"from", "to"},
	)
	PaymentMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_mismatch_total",
			Help:      "Charges confirmed by the processor that the backend failed to record",
		},
	)
	ReconcileOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_outcome_total",
			Help:      "Success-page reconciliation outcomes: verified, failed, cached, missing_session",
		},
		[]string{"outcome"},
	)
	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of billing backend requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "operation", "result"},
	)
)

func init() {
	prometheus.MustRegister(CheckoutTransitions, PaymentMismatches, ReconcileOutcomes, BackendRequestDuration)
}
