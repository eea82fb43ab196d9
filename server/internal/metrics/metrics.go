package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for inbound frames.
const (
	ReasonMalformed   = "malformed"
	ReasonUnknownType = "unknown_type"
	ReasonRateLimited = "rate_limited"
)

// Metrics groups every collector the bridge updates.
type Metrics struct {
	reg *prometheus.Registry

	ConnectionsTotal      prometheus.Counter
	ConnectionsActive     prometheus.Gauge
	ConnectionsRejected   *prometheus.CounterVec
	RoomsActive           prometheus.Gauge
	RoomsEvicted          prometheus.Counter
	FramesReceived        *prometheus.CounterVec
	FramesDropped         *prometheus.CounterVec
	Broadcasts            *prometheus.CounterVec
	DeliveriesFailed      prometheus.Counter
	HistoryEvicted        prometheus.Counter
	HeartbeatProbes       prometheus.Counter
	HeartbeatTerminations prometheus.Counter
	ConnectionDuration    prometheus.Histogram
}

// New creates a Metrics registered on a fresh registry, together with the
// standard Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_connections_total",
			Help: "WebSocket connections admitted.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_connections_active",
			Help: "Sessions currently registered in a room.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_connections_rejected_total",
			Help: "Connection attempts refused before admission, by reason.",
		}, []string{"reason"}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bridge_rooms",
			Help: "Rooms currently held in the registry.",
		}),
		RoomsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_rooms_evicted_total",
			Help: "Idle rooms removed from the registry.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_frames_received_total",
			Help: "Inbound frames accepted, by envelope type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_frames_dropped_total",
			Help: "Inbound frames ignored, by reason.",
		}, []string{"reason"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_broadcasts_total",
			Help: "Outbound fan-outs, by envelope type.",
		}, []string{"type"}),
		DeliveriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_deliveries_failed_total",
			Help: "Frames that could not be queued or written to a session.",
		}),
		HistoryEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_history_evicted_total",
			Help: "Messages pushed out of a room history by newer ones.",
		}),
		HeartbeatProbes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_heartbeat_probes_total",
			Help: "Transport pings sent by the heartbeat monitor.",
		}),
		HeartbeatTerminations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_heartbeat_terminations_total",
			Help: "Sessions terminated for not answering a ping.",
		}),
		ConnectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_connection_duration_seconds",
			Help:    "Session lifetime from admission to disconnect.",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600, 14400},
		}),
	}

	m.reg.MustRegister(
		m.ConnectionsTotal,
		m.ConnectionsActive,
		m.ConnectionsRejected,
		m.RoomsActive,
		m.RoomsEvicted,
		m.FramesReceived,
		m.FramesDropped,
		m.Broadcasts,
		m.DeliveriesFailed,
		m.HistoryEvicted,
		m.HeartbeatProbes,
		m.HeartbeatTerminations,
		m.ConnectionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are bound to.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
