package brain

import "github.com/prometheus/client_golang/prometheus"

var (
	// replies counts produced replies by source.
	replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizbot_brain_replies_total",
			Help: "Replies produced by the conversation brain, by source.",
		},
		[]string{"source"},
	)

	// intents counts detected intents on the rule-based path.
	intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizbot_brain_intents_total",
			Help: "Detected intents.",
		},
		[]string{"intent"},
	)

	// guardTriggers counts short-circuits by guard check.
	guardTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizbot_guard_triggers_total",
			Help: "Edge-case guard checks that short-circuited a message.",
		},
		[]string{"check"},
	)

	// stepFailures counts steps that failed open.
	stepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizbot_brain_step_failures_total",
			Help: "Pipeline steps that failed and fell back to their default.",
		},
		[]string{"step"},
	)
)

func init() {
	prometheus.MustRegister(replies, intents, guardTriggers, stepFailures)
}
