package email

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/partnerhub/notify/internal/outbox"
)

const namespace = "partnerhub_notify"

var (
	outboxSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "records",
			Help:      "Number of outbox records by channel and status",
		},
		[]string{"channel", "status"},
	)

	emailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "attempts_total",
			Help:      "Email delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	emailSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "send_duration_seconds",
			Help:      "Time to perform one transport send",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	sweeperRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "requeued_total",
			Help:      "Failed email records flipped back to pending",
		},
	)

	digestFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batching",
			Name:      "flushes_total",
			Help:      "Digest flushes performed",
		},
	)

	digestItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batching",
			Name:      "items_total",
			Help:      "Notifications delivered inside digests",
		},
	)

	accumulatorsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batching",
			Name:      "accumulators_total",
			Help:      "Batch accumulators created",
		},
	)

	itemsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batching",
			Name:      "coalesced_total",
			Help:      "Notifications appended to an existing accumulator",
		},
	)
)

func recordEmailOutcome(outcome string) {
	emailsProcessed.WithLabelValues(outcome).Inc()
}

func recordSendDuration(d time.Duration) {
	emailSendDuration.Observe(d.Seconds())
}

func recordRequeued(count int64) {
	sweeperRequeued.Add(float64(count))
}

func recordDigestFlush(items int) {
	digestFlushes.Inc()
	digestItems.Add(float64(items))
}

func recordAccumulatorOpened() {
	accumulatorsOpened.Inc()
}

func recordCoalesced() {
	itemsCoalesced.Inc()
}

// RecordOutboxStats updates the outbox size gauges.
func RecordOutboxStats(stats *outbox.Stats) {
	outboxSize.WithLabelValues("INBOX", "pending").Set(float64(stats.Inbox.Pending))
	outboxSize.WithLabelValues("INBOX", "sent").Set(float64(stats.Inbox.Sent))
	outboxSize.WithLabelValues("INBOX", "failed").Set(float64(stats.Inbox.Failed))
	outboxSize.WithLabelValues("EMAIL", "pending").Set(float64(stats.Email.Pending))
	outboxSize.WithLabelValues("EMAIL", "sent").Set(float64(stats.Email.Sent))
	outboxSize.WithLabelValues("EMAIL", "failed").Set(float64(stats.Email.Failed))
}
