package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the loop position reported by /health.
type Snapshot struct {
	Cursor    uint64 `json:"cursor"`
	ChainHead uint64 `json:"chainHead"`
	Running   bool   `json:"running"`
}

// HealthCheck probes one dependency; a non-nil error marks the process
// unhealthy.
type HealthCheck func(ctx context.Context) error

// Server exposes /health and /metrics.
type Server struct {
	server *http.Server
	status func() Snapshot
	checks map[string]HealthCheck
}

// NewServer creates the HTTP server. status may be nil when the loop is not
// wired yet; checks probe dependencies (database, redis).
func NewServer(port int, status func() Snapshot, checks map[string]HealthCheck) *Server {
	mux := http.NewServeMux()
	s := &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		status: status,
		checks: checks,
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	code := http.StatusOK

	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			resp["status"] = "unhealthy"
			resp[name] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	if s.status != nil {
		resp["ingest"] = s.status()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
