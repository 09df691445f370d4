// Package adminapi exposes a small read-mostly HTTP API for operators,
// separate from the TCP wire protocol clients and storage servers speak.
// It is additive operational tooling: status/SS-listing reads and a
// graceful-shutdown trigger, the same effect as the stdin "SHUTDOWN"
// console command.
package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/pkg/coordinator/session"
	"github.com/marmos91/dfs/pkg/coordinator/ssregistry"
)

// Response is the standard envelope every admin endpoint replies with.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Server holds the state the admin API reads from and the shutdown hook
// POST /shutdown triggers.
type Server struct {
	SS       *ssregistry.Registry
	Sessions *session.Table
	Started  time.Time

	// Shutdown is invoked once by POST /shutdown; nil is treated as a
	// no-op so tests can exercise the route without wiring a real
	// coordinator.
	Shutdown func()
}

// Router builds the chi handler for the admin API: GET /status, GET /ss,
// POST /shutdown, and the metrics endpoint when enabled.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/status", s.handleStatus)
	r.Get("/ss", s.handleListSS)
	r.Post("/shutdown", s.handleShutdown)
	metrics.Mount(r, "/metrics")

	return r
}

type statusPayload struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Sessions      int     `json:"sessions"`
	ActiveSS      int     `json:"active_storage_servers"`
	FailedSS      int     `json:"failed_storage_servers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	active, failed := s.SS.Counts()
	writeJSON(w, http.StatusOK, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data: statusPayload{
			UptimeSeconds: time.Since(s.Started).Seconds(),
			Sessions:      s.Sessions.Count(),
			ActiveSS:      active,
			FailedSS:      failed,
		},
	})
}

type ssPayload struct {
	ID            string    `json:"id"`
	ClientAddr    string    `json:"client_addr"`
	Status        string    `json:"status"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	FileCount     int       `json:"file_count"`
}

func (s *Server) handleListSS(w http.ResponseWriter, r *http.Request) {
	recs := s.SS.List()
	out := make([]ssPayload, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ssPayload{
			ID:            rec.ID,
			ClientAddr:    rec.ClientAddr(),
			Status:        rec.Status.String(),
			RegisteredAt:  rec.RegisteredAt,
			LastHeartbeat: rec.LastHeartbeat,
			FileCount:     len(rec.Files),
		})
	}
	writeJSON(w, http.StatusOK, Response{Status: "ok", Timestamp: time.Now().UTC(), Data: out})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, Response{Status: "ok", Timestamp: time.Now().UTC()})
	if s.Shutdown != nil {
		go s.Shutdown()
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("admin api: failed to encode response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("admin api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
