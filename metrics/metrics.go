package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NotificationOutcomeSent       = "sent"
	NotificationOutcomeSuppressed = "suppressed"
	NotificationOutcomeFailed     = "failed"
)

var (
	SamplesEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucose_alerts_samples_evaluated_total",
			Help: "Total number of glucose samples evaluated for alerts",
		},
		[]string{"status"}, // status: alert, none, rejected, failed
	)

	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucose_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"kind", "severity"},
	)

	PersistentSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glucose_alerts_persistent_suppressed_total",
			Help: "Total number of persistent hyperglycemia alerts suppressed by an existing alert in the window",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucose_alerts_notifications_total",
			Help: "Total number of notification decisions",
		},
		[]string{"outcome"},
	)

	ReadingsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucose_alerts_readings_skipped_total",
			Help: "Total number of historical readings skipped because they could not be decrypted",
		},
		[]string{"source"},
	)

	ConsumerRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glucose_alerts_consumer_retries_total",
			Help: "Total number of retried kafka consumer operations",
		},
		[]string{"stage"}, // stage: fetch, handle, commit
	)

	SamplesDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glucose_alerts_samples_discarded_total",
			Help: "Total number of kafka glucose samples committed without evaluation because they are invalid",
		},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glucose_alerts_detection_duration_seconds",
			Help:    "Time taken to evaluate a glucose sample",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)
