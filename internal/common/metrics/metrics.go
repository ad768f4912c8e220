package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_notifications_enqueued_total",
			Help: "Total number of notification rows enqueued",
		},
		[]string{"channel", "trigger"},
	)

	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_attempts_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"channel", "outcome"},
	)

	DispatchBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "outbox_dispatch_batch_duration_seconds",
			Help: "Duration of one dispatch batch in seconds",
		},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "outbox_send_duration_seconds",
			Help: "Duration of a single provider send in seconds",
		},
		[]string{"channel", "provider"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_queue_depth",
			Help: "Number of queued notification rows at last dispatch selection",
		},
	)
)
