// Package status serves the health and status endpoints deployments
// probe.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vendora-ai/vendora/internal/buildinfo"
	"github.com/vendora-ai/vendora/internal/store"
)

// Server exposes liveness and status over HTTP.
type Server struct {
	listen string
	store  store.Store
	model  string
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a status server bound to the given listen address.
func NewServer(listen string, st store.Store, model string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		listen: listen,
		store:  st,
		model:  model,
		logger: logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the listener in a goroutine. Fatal listener errors are
// delivered to errCh.
func (s *Server) Start(errCh chan<- error) {
	s.logger.Info("status server listening", "address", s.listen)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Debug("health response write failed", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"build":          buildinfo.Info(),
		"uptime_seconds": int64(buildinfo.Uptime().Seconds()),
		"model":          s.model,
	}
	if s.store != nil {
		payload["store"] = s.store.Stats(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("status response write failed", "error", err)
	}
}
