// Package web provides an HTTP status server for the nightlight daemon.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/ledger"
	"github.com/sweeney/nightlight/internal/status"
)

// History returns recorded events. Recent is newest first, Since is oldest
// first.
type History interface {
	Recent(ctx context.Context, limit int) ([]ledger.Entry, error)
	Since(ctx context.Context, t time.Time, limit int) ([]ledger.Entry, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	history    History
	metrics    http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables /history.json backed by h.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts ...Option) *Server {
	s := &Server{tracker: tracker}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/health", s.handleHealth)
	if s.history != nil {
		mux.HandleFunc("/history.json", s.handleHistory)
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleHealth returns 200 once the loop has ticked, 503 before.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if !snap.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Write(formatHealth(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var entries []ledger.Entry
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			http.Error(w, fmt.Sprintf("invalid since %q", raw), http.StatusBadRequest)
			return
		}
		entries, err = s.history.Since(r.Context(), since, limit)
	} else {
		entries, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("history query failed")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatHistory(entries))
}
