// Package health aggregates dependency probes into liveness and readiness
// endpoints. Components register Check functions; readiness runs them all
// in parallel and reports the worst observed status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// readyTimeout bounds how long a readiness probe may spend on checks.
const readyTimeout = 5 * time.Second

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// severity orders statuses for aggregation. Higher is worse.
func (s Status) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check probes a single dependency and returns its status.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker holds the registered checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Register adds a named health check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

type probeResult struct {
	name   string
	health ComponentHealth
}

// Run executes all registered checks in parallel and aggregates them.
// The overall status is the worst status among the components.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	results := make(chan probeResult, len(c.checks))
	for name, check := range c.checks {
		go func(name string, check Check) {
			start := time.Now()
			h := check(ctx)
			h.Latency = time.Since(start).Round(time.Millisecond).String()
			results <- probeResult{name: name, health: h}
		}(name, check)
	}
	n := len(c.checks)
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, n),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i := 0; i < n; i++ {
		r := <-results
		report.Components[r.name] = r.health
		if r.health.Status.severity() > report.Status.severity() {
			report.Status = r.health.Status
		}
	}
	return report
}

// LiveHandler returns an HTTP handler for liveness probes. It reports
// only that the process is serving, never touching dependencies.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler returns an HTTP handler for readiness probes.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		report := c.Run(ctx)
		code := http.StatusOK
		if report.Status != StatusUp {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
