// Package metrics holds the Prometheus collectors exposed by the admin HTTP
// surface: connected-player count, per-tag frame/command throughput, and the
// two failure counters that matter operationally (HELO failures, heartbeat
// evictions).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles every metric this server exposes, registered against a
// single registry so Handler() can serve them all from one endpoint.
type Collectors struct {
	registry *prometheus.Registry

	ConnectedPlayers   prometheus.Gauge
	FramesReceived     *prometheus.CounterVec
	CommandsSent       *prometheus.CounterVec
	HeloFailures       prometheus.Counter
	HeartbeatEvictions prometheus.Counter
	FramesRateLimited  prometheus.Counter
}

// New creates a fresh registry and registers every collector against it.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		registry: reg,
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slimproto",
			Name:      "connected_players",
			Help:      "Number of players currently registered.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slimproto",
			Name:      "frames_received_total",
			Help:      "Inbound frames received, by tag.",
		}, []string{"tag"}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slimproto",
			Name:      "commands_sent_total",
			Help:      "Outbound command frames sent, by tag.",
		}, []string{"tag"}),
		HeloFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slimproto",
			Name:      "helo_failures_total",
			Help:      "Connections that failed the HELO handshake (bad tag, short payload, or timeout).",
		}),
		HeartbeatEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slimproto",
			Name:      "heartbeat_evictions_total",
			Help:      "Sessions evicted by the heartbeat supervisor for exceeding the inactivity timeout.",
		}),
		FramesRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slimproto",
			Name:      "frames_rate_limited_total",
			Help:      "Inbound frames dropped by a session's rate limiter.",
		}),
	}

	reg.MustRegister(
		c.ConnectedPlayers,
		c.FramesReceived,
		c.CommandsSent,
		c.HeloFailures,
		c.HeartbeatEvictions,
		c.FramesRateLimited,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector set.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
