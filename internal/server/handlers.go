package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
	"github.com/htn332805/RemDarwin-sub003/internal/monitoring"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
	"github.com/htn332805/RemDarwin-sub003/internal/store"
)

// defaultWindowDays is the metrics window served when the days query
// parameter is absent.
const defaultWindowDays = 7

// Handlers bundles the HTTP endpoints over the risk service
type Handlers struct {
	service RiskService
	checker *monitoring.HealthChecker
	health  http.Handler
	metrics http.Handler
}

// NewHandlers wires the endpoint set. A nil health checker degrades
// /health to an unconditional 200.
func NewHandlers(service RiskService, health *monitoring.HealthChecker) *Handlers {
	var healthHandler http.Handler
	if health != nil {
		healthHandler = health
	} else {
		healthHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	return &Handlers{
		service: service,
		checker: health,
		health:  healthHandler,
		metrics: monitoring.NewMetricsHandler(),
	}
}

// Dashboard handles GET /api/v1/dashboard
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type metricsWindowResponse struct {
	Days    int                `json:"days"`
	Count   int                `json:"count"`
	Metrics []store.RiskMetric `json:"metrics"`
}

// MetricsWindow handles GET /api/v1/metrics/window?days=N
func (h *Handlers) MetricsWindow(w http.ResponseWriter, r *http.Request) {
	days := defaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorStatus(w, http.StatusBadRequest, fmt.Sprintf("days must be an integer, got %q", raw))
			return
		}
		days = parsed
	}

	metrics, err := h.service.MetricsWindow(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if metrics == nil {
		metrics = []store.RiskMetric{}
	}
	writeJSON(w, http.StatusOK, metricsWindowResponse{Days: days, Count: len(metrics), Metrics: metrics})
}

// EvaluatePosition handles POST /api/v1/positions/evaluate. A rejected
// position is still a 200: the evaluation succeeded and the decision
// is the payload.
func (h *Handlers) EvaluatePosition(w http.ResponseWriter, r *http.Request) {
	var req risk.EvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	decision, err := h.service.EvaluatePosition(r.Context(), req)
	if h.checker != nil {
		h.checker.MarkEvaluation()
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// NotFound returns a JSON 404 for unknown routes
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorStatus(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("component", "server").Msg("Response encoding failed")
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps engine error categories onto HTTP statuses
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case rerrors.IsInvalidInput(err):
		status = http.StatusBadRequest
	case rerrors.IsDataUnavailable(err):
		status = http.StatusServiceUnavailable
	case rerrors.IsCategory(err, rerrors.ErrorCategoryTimeout):
		status = http.StatusGatewayTimeout
	}

	log.Warn().
		Err(err).
		Str("component", "server").
		Str("request_id", RequestID(r.Context())).
		Int("status", status).
		Msg("Request failed")
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
