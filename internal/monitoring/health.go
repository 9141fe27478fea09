package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// Pinger tests backend connectivity. The risk-event log store
// satisfies this.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	mu       sync.RWMutex
	pinger   Pinger
	errors   []string
	lastEval time.Time
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastEval    time.Time `json:"last_eval,omitempty"`
	StoreOnline bool      `json:"store_online"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker. A nil pinger reports the
// store as offline but does not degrade overall health.
func NewHealthChecker(pinger Pinger) *HealthChecker {
	return &HealthChecker{
		pinger: pinger,
		errors: make([]string, 0),
	}
}

// MarkEvaluation records that the admission pipeline produced a decision
func (h *HealthChecker) MarkEvaluation() {
	h.mu.Lock()
	h.lastEval = time.Now()
	h.mu.Unlock()
}

// RecordFailure appends an error to the health report
func (h *HealthChecker) RecordFailure(msg string) {
	h.mu.Lock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
	h.mu.Unlock()
}

// ClearFailures resets the recorded errors
func (h *HealthChecker) ClearFailures() {
	h.mu.Lock()
	h.errors = h.errors[:0]
	h.mu.Unlock()
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	lastEval := h.lastEval
	errs := append([]string(nil), h.errors...)
	h.mu.RUnlock()

	storeOnline := false
	status := "healthy"

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			status = "degraded"
			errs = append(errs, "store ping failed: "+err.Error())
		} else {
			storeOnline = true
		}
	}

	if len(errs) > 5 {
		status = "unhealthy"
	}

	switch status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastEval:    lastEval,
		StoreOnline: storeOnline,
		Uptime:      time.Since(startTime).String(),
		Errors:      errs,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
