// Package metrics holds the Prometheus collectors of the sync engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "chatsync"

var (
	// SnapshotsEmitted counts snapshots published by live collections.
	SnapshotsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_emitted_total",
		Help:      "Snapshots published to subscribers, by stream.",
	}, []string{"stream"})

	// BatchesSuperseded counts resolved batches dropped because a newer
	// batch had already arrived.
	BatchesSuperseded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_superseded_total",
		Help:      "Resolved change batches discarded in favour of newer ones.",
	}, []string{"stream"})

	ProjectionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "projection_errors_total",
		Help:      "Documents skipped because they could not be projected.",
	}, []string{"kind"})

	StreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_errors_total",
		Help:      "Subscription level errors reported by the store.",
	}, []string{"stream"})

	RoomsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rooms_created_total",
		Help:      "Rooms written by provisioning, by room type.",
	}, []string{"type"})

	// ConnectedClients is the number of open WebSocket sessions.
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Open WebSocket sync sessions.",
	})

	ResolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "room_resolve_seconds",
		Help:      "Time spent resolving one change batch of rooms.",
		Buckets:   prometheus.DefBuckets,
	})
)

// MustRegister registers every collector with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		SnapshotsEmitted,
		BatchesSuperseded,
		ProjectionErrors,
		StreamErrors,
		RoomsCreated,
		ResolveDuration,
		ConnectedClients,
	)
}
