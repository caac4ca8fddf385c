package microservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chopralab/sciborg/pkg/command"
	"github.com/chopralab/sciborg/pkg/config"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sciborg_http_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sciborg_http_request_duration_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	commandExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sciborg_command_executions_total",
		Help: "Driver command executions, by command and outcome.",
	}, []string{"microservice", "command", "outcome"})
)

// Server exposes a driver microservice over HTTP: its descriptor, its
// command list, and command execution.
type Server struct {
	cfg          *config.ServerConfig
	microservice *command.DriverMicroservice
	httpServer   *http.Server
	logger       *slog.Logger
}

func NewServer(cfg *config.ServerConfig, ms *command.DriverMicroservice) (*Server, error) {
	if ms == nil {
		return nil, fmt.Errorf("server requires a microservice")
	}
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		cfg:          cfg,
		microservice: ms,
		logger:       slog.Default(),
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.routes(),
	}
	return s, nil
}

// Addr returns the address the server binds.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("microservice server listening",
		"microservice", s.microservice.Name,
		"addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.ShutdownTimeout))
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route tree, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.EnableMetrics != nil && *s.cfg.EnableMetrics {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	r.Get("/descriptor", s.handleDescriptor)
	r.Get("/commands", s.handleListCommands)
	r.Post("/commands/{name}", s.handleExecute)

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.status)).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.microservice.ToInfoMicroservice())
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	info := s.microservice.ToInfoMicroservice()
	names := make([]string, 0, len(info.Commands))
	for name := range info.Commands {
		names = append(names, name)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"commands": names})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cmd, ok := s.microservice.Get(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("command '%s' not found", name))
		return
	}

	var args command.Args
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	result, err := cmd.Execute(nil, nil, args)
	if err != nil {
		commandExecutions.WithLabelValues(s.microservice.Name, name, "error").Inc()
		s.logger.Warn("command execution failed",
			"microservice", s.microservice.Name,
			"command", name,
			"error", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	commandExecutions.WithLabelValues(s.microservice.Name, name, "ok").Inc()
	if result == nil {
		result = command.Result{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
