package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline collectors. Label values are bounded: report type, a fixed set of
// statuses and skip reasons, and the two queue message kinds.
var (
	insightGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_generations_total",
			Help: "Per-user insight generation outcomes.",
		},
		[]string{"type", "status", "reason"},
	)

	insightAIRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_ai_retries_total",
			Help: "Retries scheduled after a rate-limited AI call.",
		},
		[]string{"type"},
	)

	queuePublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_total",
			Help: "Queue publish attempts by message kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	queueRedeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_redeliveries_total",
			Help: "Batch deliveries whose message id was already seen.",
		},
	)

	queueDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dispatch_total",
			Help: "Local emulator delivery attempts by message kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	schedulerPages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_pages_total",
			Help: "Scheduler pages processed, by whether a continuation was scheduled.",
		},
		[]string{"type", "next"},
	)
)

func init() {
	prometheus.MustRegister(insightGenerations, insightAIRetries, queuePublishes, queueRedeliveries, queueDispatches, schedulerPages)
}

// ObserveGeneration counts one per-user outcome. reason is empty for updates.
func ObserveGeneration(typ, status, reason string) {
	insightGenerations.WithLabelValues(typ, status, reason).Inc()
}

// ObserveAIRetry counts one scheduled AI retry.
func ObserveAIRetry(typ string) {
	insightAIRetries.WithLabelValues(typ).Inc()
}

// ObservePublish counts one queue publish.
func ObservePublish(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	queuePublishes.WithLabelValues(kind, outcome).Inc()
}

// ObserveRedelivery counts one repeated message id.
func ObserveRedelivery() { queueRedeliveries.Inc() }

// ObserveDispatch counts one emulator delivery attempt. Any non-2xx reply
// counts as an error.
func ObserveDispatch(kind string, status int, err error) {
	outcome := "ok"
	if err != nil || status < 200 || status > 299 {
		outcome = "error"
	}
	queueDispatches.WithLabelValues(kind, outcome).Inc()
}

// ObserveSchedulerPage counts one scheduler page.
func ObserveSchedulerPage(typ string, next bool) {
	v := "false"
	if next {
		v = "true"
	}
	schedulerPages.WithLabelValues(typ, v).Inc()
}
