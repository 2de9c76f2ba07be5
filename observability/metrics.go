// Package observability exposes engine counters to Prometheus.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveConnections   prometheus.Gauge
	MessagesSent        prometheus.Counter
	BroadcastEvents     prometheus.Counter
	PresenceTransitions *prometheus.CounterVec
	SweeperTicks        prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "soulconnect",
			Name:      "active_connections",
			Help:      "Live transport sessions currently registered.",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "soulconnect",
			Name:      "messages_sent_total",
			Help:      "Messages that reached the Persisted state.",
		}),
		BroadcastEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "soulconnect",
			Name:      "broadcast_events_total",
			Help:      "Events fanned out to room members.",
		}),
		PresenceTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soulconnect",
			Name:      "presence_transitions_total",
			Help:      "Presence transitions broadcast to rooms, by new state.",
		}, []string{"state"}),
		SweeperTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "soulconnect",
			Name:      "sweeper_ticks_total",
			Help:      "Presence sweeper passes, including skipped ones.",
		}),
	}
}
