package httpruntime

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// StreamMode selects how a request's response is delivered: a single JSON body, an SSE stream, or an SSE stream
// interleaved with debug frames.
type StreamMode int

const (
	Complete StreamMode = iota
	Streaming
	Debug
)

// ObservationRequest is the decoded body of an agent observation
// request.
type ObservationRequest struct {
	Observation any        `json:"observation"`
	Priority    Priority   `json:"priority,omitempty"`
	StreamMode  StreamMode `json:"streamMode,omitempty"`
}

// Handler drives one agent's coordinator for a decoded observation.
// Handler implementations wrap coordinator.Coordinator.Step, adapting
// the action/tool-call types involved to JSON.
type Handler interface {
	Handle(ctx context.Context, agentID string, obs any) (any, error)
}

// ServerConfig configures the graceful-shutdown and connection-limit
// behavior of Server, grounded on example/cmd/assistant/http.go's
// wg+ctx.Done+Shutdown(timeout) goroutine shape, generalized from a
// single goa-generated mux to an arbitrary chi.Router, plus env-var
// wiring for connection limits.
type ServerConfig struct {
	Addr              string
	Backpressure      Config
	Connections       ConnectionConfig
	ShutdownDrain     time.Duration
	ShutdownPerSignal time.Duration
	Cleanup           func(context.Context) error
}

// ConnectionConfigFromEnv reads SKREAVER_CONNECTION_LIMIT_MAX,
// SKREAVER_CONNECTION_LIMIT_PER_IP, and
// SKREAVER_CONNECTION_LIMIT_ENABLED.
func ConnectionConfigFromEnv() ConnectionConfig {
	cfg := ConnectionConfig{}
	if v := os.Getenv("SKREAVER_CONNECTION_LIMIT_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("SKREAVER_CONNECTION_LIMIT_MAX"); v != "" {
		cfg.MaxConnections, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("SKREAVER_CONNECTION_LIMIT_PER_IP"); v != "" {
		cfg.MaxPerIP, _ = strconv.Atoi(v)
	}
	return cfg
}

// Metrics are the Prometheus collectors the Server registers.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec
}

// NewMetrics constructs and registers the Server's collectors against
// reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skreaver_http_requests_total",
			Help: "Total HTTP observation requests by agent and outcome.",
		}, []string{"agent", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "skreaver_http_request_duration_seconds",
			Help: "Observation request processing duration.",
		}, []string{"agent"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skreaver_http_queue_depth",
			Help: "Current per-agent backpressure queue depth.",
		}, []string{"agent"}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.queueDepth)
	return m
}

// Server is the HTTP runtime: it admits requests through a
// Controller, dispatches to per-agent Handlers, exposes health and
// metrics, and shuts down gracefully on SIGINT/SIGTERM.
type Server struct {
	cfg        ServerConfig
	controller *Controller
	tracker    *ConnectionTracker
	metrics    *Metrics
	ws         *WSManager

	mu       sync.RWMutex
	handlers map[string]Handler

	httpServer *http.Server
}

// NewServer constructs a Server. metrics may be nil to skip Prometheus
// registration (e.g. in tests).
func NewServer(cfg ServerConfig, metrics *Metrics) *Server {
	if cfg.ShutdownDrain <= 0 {
		cfg.ShutdownDrain = 30 * time.Second
	}
	return &Server{
		cfg:        cfg,
		controller: NewController(cfg.Backpressure),
		tracker:    NewConnectionTracker(cfg.Connections),
		metrics:    metrics,
		ws:         NewWSManager(),
		handlers:   make(map[string]Handler),
	}
}

// RegisterAgent wires h as the Handler for agentID's observation
// endpoint.
func (s *Server) RegisterAgent(agentID string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[agentID] = h
}

// Router builds the chi.Router mounting every endpoint.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))
	r.Use(s.tracker.Middleware)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Post("/agents/{id}/observe", s.handleObserve)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": s.tracker.Total(),
	})
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	s.mu.RLock()
	h, ok := s.handlers[agentID]
	s.mu.RUnlock()
	if !ok {
		writeBackpressureError(w, &errorsx.BackpressureError{Kind: errorsx.BackpressureAgentNotFound, AgentID: agentID})
		return
	}

	var req ObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	admitCtx := r.Context()
	if s.cfg.Backpressure.QueueTimeout > 0 {
		var cancel context.CancelFunc
		admitCtx, cancel = context.WithTimeout(admitCtx, s.cfg.Backpressure.QueueTimeout)
		defer cancel()
	}

	_, release, err := s.controller.Admit(admitCtx, agentID, req.Priority)
	if err != nil {
		s.observe(agentID, "rejected", 0)
		writeBackpressureError(w, err)
		return
	}
	defer release()

	procCtx := r.Context()
	if s.cfg.Backpressure.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		procCtx, cancel = context.WithTimeout(procCtx, s.cfg.Backpressure.ProcessingTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := h.Handle(procCtx, agentID, req.Observation)
	elapsed := time.Since(start)
	s.controller.ObserveProcessingTime(elapsed)

	if err != nil {
		s.observe(agentID, "error", elapsed)
		if _, ok := errorsx.As[*errorsx.CoordinatorError](err); ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	s.observe(agentID, "success", elapsed)

	switch req.StreamMode {
	case Streaming, Debug:
		s.writeSSE(w, result, req.StreamMode == Debug)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, result any, debugFrames bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if debugFrames {
		data, _ := json.Marshal(map[string]string{"frame": "debug", "at": time.Now().UTC().Format(time.RFC3339Nano)})
		_, _ = w.Write([]byte("event: debug\ndata: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	data, _ := json.Marshal(result)
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}

func (s *Server) observe(agentID, outcome string, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.requestsTotal.WithLabelValues(agentID, outcome).Inc()
	if d > 0 {
		s.metrics.requestDuration.WithLabelValues(agentID).Observe(d.Seconds())
	}
}

func writeBackpressureError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	if be, ok := errorsx.As[*errorsx.BackpressureError](err); ok {
		switch be.Kind {
		case errorsx.BackpressureAgentNotFound:
			status = http.StatusNotFound
		case errorsx.BackpressureQueueTimeout, errorsx.BackpressureProcessingTimeout:
			status = http.StatusGatewayTimeout
		}
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// Serve starts listening on cfg.Addr and blocks until ctx is canceled,
// at which point it stops accepting new requests, drains in-flight
// requests up to ShutdownDrain, runs cfg.Cleanup, and returns.
func (s *Server) Serve(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.cfg.Addr, Handler: s.Router(), ReadHeaderTimeout: 60 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownDrain)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	if s.cfg.Cleanup != nil {
		if cerr := s.cfg.Cleanup(shutdownCtx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
