// Package health checks that a workspace is ready for a run: the selected
// provider can be built and reached, the state directory is writable, the
// manifest validates and any recorded run state can be read.
//
//	m := health.NewManager()
//	m.AddChecker(health.NewWorkspaceChecker(ws))
//	m.AddChecker(health.NewManifestChecker(path))
//	report := m.Check(ctx)
package health

import (
	"context"
	"time"
)

// Checker verifies one precondition of a run.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "run-state".
	Name() string

	// Check must respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	// StatusHealthy means nothing stands in the way of a run.
	StatusHealthy Status = "healthy"

	// StatusDegraded means a run can start but something needs attention,
	// e.g. no manifest has been written yet.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means a run would fail.
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result is what a checker found.
type Result struct {
	Name       string         `json:"name"`
	Status     Status         `json:"status"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Latency    time.Duration  `json:"latency"`
}

// NewResult creates a result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail and returns the result for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithSuggestion sets the hint printed next to a failed check.
func (r *Result) WithSuggestion(s string) *Result {
	r.Suggestion = s
	return r
}

// Healthy creates a healthy result.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
