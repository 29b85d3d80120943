package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/splitsync/pkg/executors"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a sync run is already in progress")

// Runner performs one synchronization.
type Runner interface {
	Run(ctx context.Context) (*executors.Report, error)
}

// Server exposes run status over HTTP and triggers runs on a schedule or on
// request. At most one run is in progress at a time.
type Server struct {
	logger   *log.Logger
	runner   Runner
	interval time.Duration
	mux      *http.ServeMux

	running sync.Mutex
	baseCtx context.Context

	mu      sync.RWMutex
	last    *executors.Report
	lastErr error
}

// New creates a server. An interval of zero disables scheduled runs.
func New(runner Runner, interval time.Duration, logger *log.Logger) *Server {
	s := &Server{
		logger:   logger,
		runner:   runner,
		interval: interval,
		mux:      http.NewServeMux(),
		baseCtx:  context.Background(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until ctx is cancelled. When an interval is set, a run
// is started immediately and then on every tick.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	if s.interval > 0 {
		go s.schedule(ctx)
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) schedule(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Trigger(ctx); err != nil {
			s.logger.Warn("scheduled run failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Trigger runs the pipeline once unless a run is already in progress, in
// which case it returns ErrBusy.
func (s *Server) Trigger(ctx context.Context) (*executors.Report, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	report, err := s.runner.Run(ctx)
	s.mu.Lock()
	s.last, s.lastErr = report, err
	s.mu.Unlock()
	return report, err
}

// Last returns the most recent report and its error, or nil before the first run.
func (s *Server) Last() (*executors.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.withLogging(s.handleHealth))
	s.mux.HandleFunc("/api/runs/last", s.withLogging(s.handleLastRun))
	s.mux.HandleFunc("/api/sync", s.withLogging(s.handleSync))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	report, err := s.Last()
	if report == nil {
		s.respondError(w, r, http.StatusNotFound, "no run yet", nil)
		return
	}
	if err := s.writeJSON(w, http.StatusOK, runResponse(report, err)); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	// Runs outlive the request; only server shutdown cancels them.
	report, err := s.Trigger(s.baseCtx)
	if errors.Is(err, ErrBusy) {
		s.respondError(w, r, http.StatusConflict, err.Error(), nil)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	if err := s.writeJSON(w, status, runResponse(report, err)); err != nil {
		s.logger.Warn("failed to write json response", "err", err)
	}
}

func runResponse(report *executors.Report, err error) map[string]interface{} {
	resp := map[string]interface{}{
		"status": "success",
		"report": report,
	}
	if err != nil {
		resp["status"] = "error"
		resp["error"] = err.Error()
	}
	return resp
}

// --- helpers ---

// writeJSON encodes v as JSON with the given status and writes headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging wraps a handler to log request start/end and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}
