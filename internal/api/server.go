// Package api exposes the stack control surface over HTTP: switch the UE
// on and off, toggle data, and read metrics, status, and history.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/uestack/internal/db"
	"github.com/banshee-data/uestack/internal/stack"
	"github.com/banshee-data/uestack/internal/version"
)

// StackController is the slice of the stack the HTTP handlers drive.
// Satisfied by *stack.Stack.
type StackController interface {
	SwitchOn() bool
	SwitchOff() bool
	EnableData() bool
	DisableData() bool
	StartServiceRequest() bool
	GetMetrics() (stack.Metrics, bool)
	IsRegistered() bool
	Running() bool
	State() string
	CurrentTick() stack.TickPoint
	DroppedSDUs() uint64
}

type Server struct {
	stack StackController
	db    *db.DB
	log   zerolog.Logger
}

// NewServer builds the control surface. The database may be nil; the
// history and admin routes then report history as unconfigured.
func NewServer(log zerolog.Logger, stk StackController, database *db.DB) *Server {
	return &Server{stack: stk, db: database, log: log}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs method, path, status, and duration of every
// request.
func LoggingMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", lrw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/switch_on", s.switchOn)
	mux.HandleFunc("/api/switch_off", s.switchOff)
	mux.HandleFunc("/api/enable_data", s.enableData)
	mux.HandleFunc("/api/disable_data", s.disableData)
	mux.HandleFunc("/api/service_request", s.serviceRequest)
	mux.HandleFunc("/api/metrics", s.showMetrics)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/history", s.showHistory)
	if s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// control wraps the POST endpoints that queue one stack operation and
// answer with whether it was accepted.
func (s *Server) control(w http.ResponseWriter, r *http.Request, op func() bool) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !op() {
		s.writeJSONError(w, http.StatusConflict, "Stack not running")
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
}

func (s *Server) switchOn(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.stack.SwitchOn)
}

func (s *Server) enableData(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.stack.EnableData)
}

func (s *Server) disableData(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.stack.DisableData)
}

func (s *Server) serviceRequest(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.stack.StartServiceRequest)
}

// switchOff is not a plain control endpoint: it blocks until the radio
// bearers flushed or the detach deadline expired.
func (s *Server) switchOff(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !s.stack.Running() {
		s.writeJSONError(w, http.StatusConflict, "Stack not running")
		return
	}
	if !s.stack.SwitchOff() {
		s.writeJSONError(w, http.StatusGatewayTimeout, "Detach did not complete before deadline")
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
}

type metricsResponse struct {
	Ready   bool          `json:"ready"`
	Metrics stack.Metrics `json:"metrics"`
}

func (s *Server) showMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	m, ready := s.stack.GetMetrics()
	if err := json.NewEncoder(w).Encode(metricsResponse{Ready: ready, Metrics: m}); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write metrics")
		return
	}
}

type statusResponse struct {
	State         string `json:"state"`
	Registered    bool   `json:"registered"`
	Tick          uint32 `json:"tick"`
	ULDroppedSDUs uint64 `json:"ul_dropped_sdus"`
	Version       string `json:"version"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := statusResponse{
		State:         s.stack.State(),
		Registered:    s.stack.IsRegistered(),
		Tick:          uint32(s.stack.CurrentTick()),
		ULDroppedSDUs: s.stack.DroppedSDUs(),
		Version:       version.Short(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "History not configured")
		return
	}

	limit := 100 // default value
	if l := r.URL.Query().Get("limit"); l != "" {
		parsedLimit, err := strconv.Atoi(l)
		if err != nil || parsedLimit < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsedLimit
	}

	if session := r.URL.Query().Get("session"); session != "" {
		snaps, err := s.db.SessionSnapshots(session)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve history: %v", err))
			return
		}
		if err := json.NewEncoder(w).Encode(snaps); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write history")
		}
		return
	}

	snaps, err := s.db.RecentSnapshots(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve history: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(snaps); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write history")
		return
	}
}
