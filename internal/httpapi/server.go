// Package httpapi serves the process-wide, session-less aggregate read
// surface named in spec §6 (/features, /health, /metrics, /engine/*, …).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lobanalytics/microstructure/internal/analytics"
)

// Deps bundles the process-wide collaborators the aggregate surface reads
// from. None of these are per-session state.
type Deps struct {
	Sessions *analytics.SessionManager
	Router   *analytics.EngineRouter
	Cache    *analytics.AggregateCache
}

// Server is the read-only HTTP server for the aggregate surface.
type Server struct {
	router *mux.Router
	server *http.Server
	deps   Deps
}

// NewServer builds the server and registers routes, following the same
// middleware-chain shape the teacher's internal HTTP server uses.
func NewServer(addr string, deps Deps) *Server {
	r := mux.NewRouter()
	s := &Server{router: r, deps: deps}

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/features", s.handleFeatures).Methods(http.MethodGet)
	r.HandleFunc("/snapshot/latest", s.handleLatestSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/anomalies/summary", s.handleAnomalySummary).Methods(http.MethodGet)
	r.HandleFunc("/alerts/stats", s.handleAlertStats).Methods(http.MethodGet)
	r.HandleFunc("/engine/status", s.handleEngineStatus).Methods(http.MethodGet)
	r.HandleFunc("/engine/switch/{target}", s.handleEngineSwitch).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the server; it blocks until Shutdown is called.
func (s *Server) ListenAndServe() error { return s.server.ListenAndServe() }

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"active_sessions": s.deps.Sessions.Count(),
		"engine":         s.deps.Router.Status(),
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	f, ok, err := s.deps.Cache.LatestFeatures(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no features published yet"})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok, err := s.deps.Cache.LatestSnapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot published yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAnomalySummary(w http.ResponseWriter, r *http.Request) {
	summary, ok, err := s.deps.Cache.LatestAnomalySummary(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, analytics.AnomalySummary{CountsByType: map[string]int{}})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	sess := s.deps.Sessions.Get(sessionID)
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session_id"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "metrics": sess.Metrics()})
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Router.Status())
}

func (s *Server) handleEngineSwitch(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]
	var mode analytics.EngineMode
	switch target {
	case "primary":
		mode = analytics.ModePrimary
	case "secondary":
		mode = analytics.ModeSecondary
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target must be primary or secondary"})
		return
	}
	s.deps.Router.Switch(mode)
	writeJSON(w, http.StatusOK, s.deps.Router.Status())
}
