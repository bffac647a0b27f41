package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics counts order placement outcomes.
type CheckoutMetrics struct {
	outcomes *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics. A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "tx_retries_total",
			Help:      "Checkout transactions retried after serialization failures or order number collisions.",
		}),
	}
	reg.MustRegister(m.outcomes, m.retries)
	return m
}

// IncOutcome records one of placed, invalid, empty_cart, stock_conflict, error.
func (m *CheckoutMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}
