// Package health serves the processor's liveness and metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/metrics"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StateReporter exposes the processor facts reported by /healthz.
type StateReporter interface {
	ConfigName() string
	Enabled() bool
}

// Server provides HTTP health check and metrics endpoints.
type Server struct {
	addr    string
	pinger  Pinger
	state   StateReporter
	metrics *metrics.Collector
	logger  *zap.Logger

	server   *http.Server
	listener net.Listener
}

// NewServer creates a health server. pinger and collector may be nil, in
// which case Redis is reported as disabled and /metrics is not served.
func NewServer(addr string, pinger Pinger, state StateReporter, collector *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		pinger:  pinger,
		state:   state,
		metrics: collector,
		logger:  logger.With(zap.String("component", "health")),
	}
}

// Handler returns the server's routes.
func (h *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	if h.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

// Start binds the listen address and serves in the background. Bind errors
// are returned synchronously.
func (h *Server) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.listener = ln

	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server error", zap.Error(err))
		}
	}()

	h.logger.Info("health server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (h *Server) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (h *Server) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is reachable (or not configured), 503 otherwise.
func (h *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Redis:  "disabled",
	}
	if h.state != nil {
		enabled := h.state.Enabled()
		response.Config = h.state.ConfigName()
		response.Enabled = &enabled
	}

	code := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.pinger.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Redis = "disconnected"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			response.Redis = "connected"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status  string `json:"status"`
	Config  string `json:"config,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Redis   string `json:"redis,omitempty"`
	Error   string `json:"error,omitempty"`
}
