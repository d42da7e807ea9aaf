package metrics

import "github.com/prometheus/client_golang/prometheus"

// BillingMetrics counts checkout sessions, gateway failures, entitlement
// changes and webhook deliveries.
type BillingMetrics struct {
	sessions     *prometheus.CounterVec
	gatewayFails *prometheus.CounterVec
	entitlements *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
}

func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	m := &BillingMetrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_created_total",
			Help:      "Checkout sessions created, by purchase type.",
		}, []string{"type"}),
		gatewayFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_gateway_failures_total",
			Help:      "Checkout gateway failures, by error code.",
		}, []string{"code"}),
		entitlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_updates_total",
			Help:      "Entitlement changes applied, by kind.",
		}, []string{"kind"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_events_total",
			Help:      "Stripe webhook deliveries, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.sessions, m.gatewayFails, m.entitlements, m.webhooks)
	return m
}

func (m *BillingMetrics) IncSession(purchaseType string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(normalizeLabel(purchaseType)).Inc()
}

func (m *BillingMetrics) IncGatewayFailure(code string) {
	if m == nil || m.gatewayFails == nil {
		return
	}
	m.gatewayFails.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *BillingMetrics) IncEntitlement(kind string) {
	if m == nil || m.entitlements == nil {
		return
	}
	m.entitlements.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncWebhook records a webhook outcome: processed, duplicate, ignored or failed.
func (m *BillingMetrics) IncWebhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
