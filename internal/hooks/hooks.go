// Package hooks runs user-configured scripts and webhooks on run lifecycle
// events: a run starting, a role finishing or failing, a run ending.
package hooks

import (
	"context"
	"fmt"
	"time"
)

// EventType names a lifecycle event hooks can subscribe to.
type EventType string

const (
	EventRunStart    EventType = "on_run_start"
	EventRoleDone    EventType = "on_role_done"
	EventRoleFailed  EventType = "on_role_failed"
	EventRunComplete EventType = "on_run_complete"
	EventRunFailed   EventType = "on_run_failed"
)

// EventTypes lists every event type.
func EventTypes() []EventType {
	return []EventType{EventRunStart, EventRoleDone, EventRoleFailed, EventRunComplete, EventRunFailed}
}

// Event is the payload handed to a hook. Webhooks receive it as JSON; scripts
// receive it as FOUNDRY_* environment variables.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Attempt   int       `json:"attempt"`
	RoleID    string    `json:"role_id,omitempty"`
	Artifacts int       `json:"artifacts,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Hook reacts to events.
type Hook interface {
	Name() string
	Events() []EventType
	Execute(ctx context.Context, event *Event) error
}

// Failure modes decide how a failed hook is logged. A hook never changes the
// outcome of a run.
const (
	FailureIgnore = "ignore"
	FailureWarn   = "warn"
)

// DefaultTimeout bounds a hook without its own timeout.
const DefaultTimeout = 30 * time.Second

// HookConfig is one entry of the hooks list in config.yaml.
type HookConfig struct {
	Name        string         `yaml:"name" json:"name"`
	Type        string         `yaml:"type" json:"type"`
	Events      []EventType    `yaml:"events" json:"events"`
	Enabled     bool           `yaml:"enabled" json:"enabled"`
	Config      map[string]any `yaml:"config" json:"config"`
	Timeout     time.Duration  `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	FailureMode string         `yaml:"failure_mode,omitempty" json:"failure_mode,omitempty"`
}

// Validate checks the fields every hook type shares.
func (c *HookConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("hook name is required")
	}
	if c.Type == "" {
		return fmt.Errorf("hook %s: type is required", c.Name)
	}
	if len(c.Events) == 0 {
		return fmt.Errorf("hook %s: at least one event is required", c.Name)
	}
	for _, e := range c.Events {
		if !isEventType(e) {
			return fmt.Errorf("hook %s: unknown event %q", c.Name, e)
		}
	}
	switch c.FailureMode {
	case "", FailureIgnore, FailureWarn:
	default:
		return fmt.Errorf("hook %s: failure_mode must be %s or %s", c.Name, FailureIgnore, FailureWarn)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("hook %s: timeout must be non-negative", c.Name)
	}
	return nil
}

func (c *HookConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *HookConfig) stringValue(key string) string {
	s, _ := c.Config[key].(string)
	return s
}

func isEventType(e EventType) bool {
	for _, t := range EventTypes() {
		if t == e {
			return true
		}
	}
	return false
}

// Result records one hook execution.
type Result struct {
	Hook     string        `json:"hook"`
	Event    EventType     `json:"event"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}
