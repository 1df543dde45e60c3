package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive is the number of open websocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "board_ws_connections_active",
		Help: "Open websocket connections on this instance.",
	})

	// BusPublished counts edit events published to the fanout bus.
	BusPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_bus_published_total",
		Help: "Edit events published to the fanout bus.",
	})

	// EventsPersisted counts edit events written into room snapshots.
	EventsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_events_persisted_total",
		Help: "Edit events applied to room snapshots.",
	})

	// Flushes counts persistence worker flush cycles.
	Flushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_persist_flushes_total",
		Help: "Persistence worker flush cycles.",
	})

	// RoomsReaped counts abandoned empty rooms deleted by the reaper.
	RoomsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_rooms_reaped_total",
		Help: "Abandoned empty rooms deleted by the reaper.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
