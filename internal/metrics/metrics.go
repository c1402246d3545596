package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_session_transitions_total",
			Help: "Lifecycle transitions of assessment instances",
		},
		[]string{"transition"},
	)

	AnswersSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_answers_submitted_total",
			Help: "Grading answers written (inserts and overwrites)",
		},
	)

	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assessment_ws_connections",
			Help: "Live realtime connections",
		},
		[]string{"role"},
	)

	WSDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_ws_delivery_failures_total",
			Help: "Realtime messages that could not be delivered",
		},
		[]string{"role"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
