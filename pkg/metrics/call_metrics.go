package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call metrics for monitoring session lifecycle and signaling fan-out
var (
	CallInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_initiated_total",
		Help: "Total number of call sessions created",
	}, []string{"kind", "media_kind"})

	CallEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_ended_total",
		Help: "Total number of call sessions reaching a terminal state",
	}, []string{"status"}) // "ended", "cancelled"

	CallDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "call_duration_seconds",
		Help:    "Connected duration of ended calls",
		Buckets: []float64{10, 30, 60, 180, 300, 600, 1800, 3600},
	})

	CallRoomIDCollisionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_room_id_collision_total",
		Help: "Total number of room ID allocation collisions",
	})

	CallUpdateConflictTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_update_conflict_total",
		Help: "Total number of conditional session updates lost to a concurrent writer",
	})

	SignalRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_signal_relayed_total",
		Help: "Total number of signaling payloads relayed",
	}, []string{"type", "delivery"}) // delivery: "targeted", "broadcast"

	SideEffectFailureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_side_effect_failure_total",
		Help: "Total number of swallowed side-effect failures",
	}, []string{"effect"})

	WebSocketConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "call_websocket_connections_active",
		Help: "Current number of open call sockets",
	})

	RoomSubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "call_room_subscriptions_active",
		Help: "Current number of active room pub/sub subscriptions",
	})
)
