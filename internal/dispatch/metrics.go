package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/partnerhub/notify/internal/domain"
)

const namespace = "partnerhub_notify"

var (
	dispatchedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Dispatched events by outcome",
		},
		[]string{"outcome"},
	)

	notificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "notifications_created_total",
			Help:      "Durable notification rows created by channel",
		},
		[]string{"channel"},
	)
)

func recordDispatch(outcome string) {
	dispatchedEvents.WithLabelValues(outcome).Inc()
}

func recordNotificationCreated(channel domain.Channel) {
	notificationsCreated.WithLabelValues(string(channel)).Inc()
}
