// Package api provides the optional HTTP status API for the governor.
// It mirrors the control socket (status, mode, trigger) and adds journal
// views, health and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutu-network/aigov/internal/domain"
	"github.com/tutu-network/aigov/internal/health"
	"github.com/tutu-network/aigov/internal/infra/sqlite"
)

// Controller is the governor state the API reads and mutates.
type Controller interface {
	Snapshot() domain.Snapshot
	SetMode(m domain.Mode) domain.Mode
	RequestTrigger() bool
}

// Journal is the read side of the event journal.
type Journal interface {
	RecentCycles(limit int) ([]domain.Cycle, error)
	RecentEvents(kind string, limit int) ([]domain.Event, error)
	Stats() (sqlite.Stats, error)
}

// defaultLimit caps list endpoints when no limit is given.
const defaultLimit = 50

// Server is the governor HTTP API server.
type Server struct {
	ctrl           Controller
	journal        Journal
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server. journal and checker may be nil.
func NewServer(ctrl Controller, journal Journal, checker *health.Checker) *Server {
	return &Server{ctrl: ctrl, journal: journal, checker: checker}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/mode", s.handleSetMode)
		r.Post("/trigger", s.handleTrigger)
		r.Get("/cycles", s.handleCycles)
		r.Get("/events", s.handleEvents)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Handlers ───────────────────────────────────────────────────────────────

type statusResponse struct {
	TemperatureC   float64       `json:"temperature_c"`
	CPULoadPercent float64       `json:"cpu_load_percent"`
	Mode           string        `json:"mode"`
	ModeCode       int           `json:"mode_code"`
	PendingTrigger bool          `json:"pending_trigger"`
	Stats          *sqlite.Stats `json:"stats,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	resp := statusResponse{
		TemperatureC:   snap.TemperatureC,
		CPULoadPercent: snap.CPULoadPercent,
		Mode:           snap.Mode.String(),
		ModeCode:       int(snap.Mode),
		PendingTrigger: snap.PendingTrigger,
	}
	if s.journal != nil {
		if st, err := s.journal.Stats(); err == nil {
			resp.Stats = &st
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	m, err := domain.ParseMode(strings.ToUpper(strings.TrimSpace(req.Mode)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prev := s.ctrl.SetMode(m)
	writeJSON(w, http.StatusOK, map[string]string{
		"mode":     m.String(),
		"previous": prev.String(),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	queued := s.ctrl.RequestTrigger()
	writeJSON(w, http.StatusAccepted, map[string]bool{
		"triggered":       true,
		"already_pending": !queued,
	})
}

type outcomeView struct {
	ElapsedMS      int64  `json:"elapsed_ms"`
	WithinDeadline bool   `json:"within_deadline"`
	Error          string `json:"error,omitempty"`
}

type cycleView struct {
	ID             string       `json:"id"`
	At             time.Time    `json:"at"`
	TemperatureC   float64      `json:"temperature_c"`
	CPULoadPercent float64      `json:"cpu_load_percent"`
	Mode           string       `json:"mode"`
	Band           string       `json:"band"`
	ThreadBudget   int          `json:"thread_budget"`
	PollMS         int64        `json:"poll_ms"`
	Admitted       bool         `json:"admitted"`
	Outcome        *outcomeView `json:"outcome,omitempty"`
	ManualTrigger  bool         `json:"manual_trigger"`
	SensorFault    bool         `json:"sensor_fault"`
}

func toCycleView(c domain.Cycle) cycleView {
	v := cycleView{
		ID:             c.ID,
		At:             c.At,
		TemperatureC:   c.TemperatureC,
		CPULoadPercent: c.CPULoadPercent,
		Mode:           c.Mode.String(),
		Band:           string(c.Decision.Band),
		ThreadBudget:   c.Decision.ThreadBudget,
		PollMS:         c.Decision.PollInterval.Milliseconds(),
		Admitted:       c.Decision.Admitted,
		ManualTrigger:  c.ManualTrigger,
		SensorFault:    c.SensorFault,
	}
	if o := c.Outcome; o != nil {
		v.Outcome = &outcomeView{ElapsedMS: o.ElapsedMillis, WithinDeadline: o.WithinDeadline}
		if o.Err != nil {
			v.Outcome.Error = o.Err.Error()
		}
	}
	return v
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cycles, err := s.journal.RecentCycles(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]cycleView, 0, len(cycles))
	for _, c := range cycles {
		views = append(views, toCycleView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": views})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.journal.RecentEvents(r.URL.Query().Get("kind"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.checker.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.checker.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

var errBadLimit = errors.New("limit must be a positive integer")

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errBadLimit
	}
	return n, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
