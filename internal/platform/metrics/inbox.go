package metrics

import "github.com/prometheus/client_golang/prometheus"

// InboxMetrics counts client-side failures that the reconciler swallows
type InboxMetrics struct {
	GatewayFailures *prometheus.CounterVec
	ReadPosts       *prometheus.CounterVec
}

// NewInboxMetrics creates and registers the inbox metrics on reg
func NewInboxMetrics(reg prometheus.Registerer) *InboxMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &InboxMetrics{
		GatewayFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inbox",
				Name:      "gateway_failures_total",
				Help:      "Gateway calls that failed and were collapsed to an empty result",
			},
			[]string{"operation"},
		),
		ReadPosts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "inbox",
				Name:      "read_posts_total",
				Help:      "Detached mark-as-read posts by outcome",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.GatewayFailures, m.ReadPosts)
	return m
}
