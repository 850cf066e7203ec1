// Package metrics exposes the matchmaker's prometheus collectors:
// room lifecycle counters and gauges plus concurrency-gate and IPC
// round-trip latency histograms.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RoomsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaker_rooms_created_total",
		Help: "Total number of rooms created by this process.",
	}, []string{"room_name"})

	RoomsDisposed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaker_rooms_disposed_total",
		Help: "Total number of rooms disposed by this process.",
	}, []string{"room_name"})

	RoomCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchmaker_room_count",
		Help: "Number of rooms currently owned by this process.",
	})

	ConcurrencyGateWaitMillis = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchmaker_concurrency_gate_wait_ms",
		Help:    "Milliseconds a findOneRoomAvailable call waited at the concurrency gate.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	IPCRequestDurationMillis = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchmaker_ipc_request_duration_ms",
		Help:    "Milliseconds an IPC request/reply round trip took.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"outcome"})
)

// Register adds every collector to reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(RoomsCreated, RoomsDisposed, RoomCount, ConcurrencyGateWaitMillis, IPCRequestDurationMillis)
}
