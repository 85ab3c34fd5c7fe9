package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shift_notify_notifications_sent_total",
			Help: "Total number of messages accepted by a channel provider",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shift_notify_notifications_failed_total",
			Help: "Total number of failed channel sends",
		},
		[]string{"channel", "error_code"},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shift_notify_notifications_skipped_total",
			Help: "Total number of recipients skipped per reason",
		},
		[]string{"reason"},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shift_notify_send_duration_seconds",
			Help:    "Duration of a single channel send in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	DispatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shift_notify_dispatch_runs_total",
			Help: "Total number of dispatch runs by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	SMSQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shift_notify_sms_queue_depth",
			Help: "Number of SMS requests waiting for the queue worker",
		},
	)

	RemindersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shift_notify_reminders_processed_total",
			Help: "Total number of due reminders handled by the scheduler",
		},
		[]string{"status"},
	)
)
