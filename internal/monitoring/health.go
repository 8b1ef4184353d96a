package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks liveness signals from the trading loop and serves
// them as a JSON health endpoint.
type HealthChecker struct {
	mu          sync.RWMutex
	lastCycle   time.Time
	lastPrices  map[string]float64
	isConnected bool
	errors      []string
}

type HealthStatus struct {
	Status      string             `json:"status"`
	Timestamp   time.Time          `json:"timestamp"`
	LastCycle   time.Time          `json:"last_cycle"`
	LastPrices  map[string]float64 `json:"last_prices"`
	IsConnected bool               `json:"is_connected"`
	Uptime      string             `json:"uptime"`
	Errors      []string           `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		lastPrices: make(map[string]float64),
		errors:     make([]string, 0),
	}
}

// RecordCycle marks a completed evaluation cycle.
func (h *HealthChecker) RecordCycle(symbol string, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.lastPrices[symbol] = price
}

// SetConnected updates the exchange connectivity flag.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordError appends an error to the health report, keeping the last 10.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// ClearErrors resets the error list after recovery.
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || time.Since(h.lastCycle) > time.Hour {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	prices := make(map[string]float64, len(h.lastPrices))
	for k, v := range h.lastPrices {
		prices[k] = v
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastCycle:   h.lastCycle,
		LastPrices:  prices,
		IsConnected: h.isConnected,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
