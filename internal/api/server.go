// Package api serves the daemon's read-only admin endpoints.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/orientd/internal/engine"
	"github.com/banshee-data/orientd/internal/history"
	"github.com/banshee-data/orientd/internal/httputil"
	"github.com/banshee-data/orientd/internal/version"
)

// DefaultTransitionLimit is used when /transitions has no limit parameter.
const DefaultTransitionLimit = 50

// ShutdownTimeout bounds graceful shutdown of the admin listener.
const ShutdownTimeout = 5 * time.Second

// StatusSource reports live loop counters.
type StatusSource interface {
	Status() engine.Status
}

// TransitionSource lists journaled transitions, newest first.
type TransitionSource interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	engine.Status
	Device   string       `json:"device"`
	InputID  string       `json:"input_id"`
	Build    version.Info `json:"build"`
	History  bool         `json:"history"`
	ServedAt time.Time    `json:"served_at"`
}

// Server holds the admin handlers.
type Server struct {
	status  StatusSource
	history TransitionSource
	device  string
	inputID string
	log     logrus.FieldLogger
}

// NewServer builds the admin server. hist may be nil when the journal is
// disabled.
func NewServer(status StatusSource, hist TransitionSource, device, inputID string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{status: status, history: hist, device: device, inputID: inputID, log: log}
}

// ServeMux returns a mux with the admin routes registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.showStatus)
	mux.HandleFunc("/transitions", s.listTransitions)
	return mux
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, StatusResponse{
		Status:   s.status.Status(),
		Device:   s.device,
		InputID:  s.inputID,
		Build:    version.Get(),
		History:  s.history != nil,
		ServedAt: time.Now().UTC(),
	})
}

func (s *Server) listTransitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "transition history is disabled")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", DefaultTransitionLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if limit > history.MaxRecent {
		limit = history.MaxRecent
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("failed to list transitions")
		httputil.InternalServerError(w, "failed to list transitions")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	httputil.WriteJSONOK(w, entries)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration at debug level.
func LoggingMiddleware(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.WithFields(logrus.Fields{
			"method":      r.Method,
			"uri":         r.RequestURI,
			"status":      lrw.statusCode,
			"duration_ms": float64(time.Since(start).Nanoseconds()) / 1e6,
		}).Debug("admin request")
	})
}

// Serve runs handler on ln until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, log logrus.FieldLogger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", ln.Addr().String()).Info("admin server listening")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("admin server shutdown error")
	}
	log.Info("admin server stopped")
	return <-errCh
}
