package trace

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// Event is one line of a run trace file.
type Event struct {
	// Seq orders events within a trace file, starting at 1.
	Seq int `json:"seq"`

	Type      scheduler.EventType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	RunID     string              `json:"run_id"`
	Attempt   int                 `json:"attempt"`

	RoleID   string `json:"role_id,omitempty"`
	RoleName string `json:"role_name,omitempty"`
	Index    int    `json:"index,omitempty"`
	Total    int    `json:"total,omitempty"`

	Order     []string `json:"order,omitempty"`
	Artifacts int      `json:"artifacts,omitempty"`
	Resumed   bool     `json:"resumed,omitempty"`
	// DurationMS is set for role-done and role-failed.
	DurationMS int64 `json:"duration_ms,omitempty"`

	Level     string `json:"level"`
	Error     string `json:"error,omitempty"`
	Succeeded *bool  `json:"succeeded,omitempty"`
}

// FromScheduler converts a scheduler event.
func FromScheduler(e scheduler.Event) Event {
	ev := Event{
		Type:       e.Type,
		Timestamp:  e.Timestamp.UTC(),
		RunID:      e.RunID,
		Attempt:    e.Attempt,
		RoleID:     e.RoleID,
		RoleName:   e.RoleName,
		Index:      e.Index,
		Total:      e.Total,
		Order:      e.Order,
		Artifacts:  e.Artifacts,
		Resumed:    e.Resumed,
		DurationMS: e.Duration.Milliseconds(),
		Level:      inferLevel(e.Type),
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
		ev.Level = "error"
	}
	if e.Type == scheduler.EventRunFinished {
		ok := e.Succeeded
		ev.Succeeded = &ok
	}
	return ev
}

// ToJSON renders the event as a single line.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses one trace line.
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func inferLevel(t scheduler.EventType) string {
	switch t {
	case scheduler.EventRoleFailed:
		return "error"
	default:
		return "info"
	}
}
