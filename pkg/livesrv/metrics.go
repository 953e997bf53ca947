package livesrv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds the Prometheus instruments for a Server.
type serverMetrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	framesSent        prometheus.Counter
	framesDropped     prometheus.Counter
	frameBytes        prometheus.Counter
	loopPanics        prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "livebind",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Currently open WebSocket connections.",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livebind",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted.",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livebind",
			Subsystem: "server",
			Name:      "frames_sent_total",
			Help:      "Value frames pushed to clients.",
		}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livebind",
			Subsystem: "server",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a client's queue was full.",
		}),
		frameBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livebind",
			Subsystem: "server",
			Name:      "frame_bytes_total",
			Help:      "Payload bytes pushed to clients.",
		}),
		loopPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "livebind",
			Subsystem: "server",
			Name:      "loop_panics_total",
			Help:      "Connection loops terminated by a panic, including delivery failures.",
		}),
	}
}
