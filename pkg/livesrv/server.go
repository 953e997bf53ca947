package livesrv

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Server serves live value feeds over WebSocket.
type Server struct {
	feeds    []Feed
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *serverMetrics
	tracer   trace.Tracer
	upgrader websocket.Upgrader

	pingInterval time.Duration
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for connection lifecycle and errors.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerRegistry sets the Prometheus registry served at /metrics.
func WithServerRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithPingInterval sets how often the server pings idle connections.
func WithPingInterval(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithCheckOrigin sets the WebSocket origin check. The default accepts
// all origins, which is only appropriate behind a trusted proxy.
func WithCheckOrigin(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// NewServer creates a Server pushing the given feeds.
func NewServer(feeds []Feed, opts ...ServerOption) *Server {
	s := &Server{
		feeds:        feeds,
		logger:       slog.Default(),
		registry:     prometheus.NewRegistry(),
		tracer:       otel.Tracer("livebind/livesrv"),
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
		readTimeout:  60 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newServerMetrics(s.registry)
	return s
}

// Handler returns the HTTP handler: /live upgrades to WebSocket,
// /healthz reports liveness, /metrics serves the Prometheus registry.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/live", s.handleLive)

	return r
}

// handleLive upgrades the request and runs the connection until the
// client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(s, ws)
	s.metrics.connectionsTotal.Inc()
	s.metrics.connectionsActive.Inc()
	defer s.metrics.connectionsActive.Dec()

	c.run()
}
