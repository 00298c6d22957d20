package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// webhookUpdates counts inbound updates by outcome status.
	webhookUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizbot_webhook_updates_total",
			Help: "Inbound webhook updates by outcome.",
		},
		[]string{"status"},
	)

	// dispatches counts reply deliveries by result and resolution mode.
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizbot_dispatch_total",
			Help: "Reply deliveries by result and tenant resolution mode.",
		},
		[]string{"result", "mode"},
	)

	// persistFailures counts conversation records that could not be written.
	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bizbot_persist_failures_total",
			Help: "Conversation records that failed to persist.",
		},
	)
)

func init() {
	prometheus.MustRegister(webhookUpdates, dispatches, persistFailures)
}
