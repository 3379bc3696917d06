package scheduler

import "time"

// RoleState is the lifecycle position of one role within a run.
type RoleState string

const (
	StatePending RoleState = "PENDING"
	StateReady   RoleState = "READY"
	StateRunning RoleState = "RUNNING"
	StateDone    RoleState = "DONE"
	StateFailed  RoleState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s RoleState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// EventType identifies a scheduler event.
type EventType string

const (
	EventRunStarted  EventType = "run-started"
	EventRoleStarted EventType = "role-started"
	EventRoleDone    EventType = "role-done"
	EventRoleFailed  EventType = "role-failed"
	EventRunFinished EventType = "run-finished"
)

// Event is delivered to observers as a run progresses.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RunID     string
	Attempt   int

	// Order is set on run-started.
	Order []string

	RoleID   string
	RoleName string
	// Index is the 1-based position of the role in the order; Total is the
	// number of roles.
	Index int
	Total int

	Artifacts int
	// Resumed marks a role-done for a role completed by an earlier attempt.
	Resumed  bool
	Duration time.Duration
	Err      error

	// Succeeded is set on run-finished.
	Succeeded bool
}

// Observer receives scheduler events. OnEvent is called synchronously from
// the scheduler goroutine and must not block for long.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
