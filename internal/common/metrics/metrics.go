// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationRecipients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_recipients_total",
			Help: "Total recipients resolved per dispatch channel",
		},
		[]string{"channel"},
	)

	NotificationSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_send_failures_total",
			Help: "Per-recipient gateway delivery failures",
		},
		[]string{"channel"},
	)

	TickRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_tick_records_processed_total",
			Help: "Records advanced by the daily lifecycle tick",
		},
		[]string{"phase"},
	)

	TickRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_tick_records_failed_total",
			Help: "Records skipped by the daily lifecycle tick due to errors",
		},
		[]string{"phase"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "lifecycle_tick_duration_seconds",
			Help: "Duration of a full daily tick run",
		},
	)
)
