package hooks

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// Dispatcher feeds scheduler events to a registry. Hooks run on a single
// background goroutine in event order, so a slow hook never holds up the
// scheduler. Close waits for queued events.
type Dispatcher struct {
	registry *Registry
	logger   *log.Logger
	ctx      context.Context

	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	results []Result
}

// NewDispatcher starts a dispatcher. Hooks keep running after ctx is
// cancelled; each is bounded by its own timeout.
func NewDispatcher(ctx context.Context, registry *Registry, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	d := &Dispatcher{
		registry: registry,
		logger:   logger,
		ctx:      context.WithoutCancel(ctx),
		queue:    make(chan *Event, 64),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

// OnEvent implements scheduler.Observer.
func (d *Dispatcher) OnEvent(e scheduler.Event) {
	event, ok := FromSchedulerEvent(e)
	if !ok || !d.registry.HasHooksFor(event.Type) {
		return
	}
	d.queue <- event
}

// Close stops accepting events and waits for queued hooks to finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.queue) })
	<-d.done
}

// Results returns every execution so far.
func (d *Dispatcher) Results() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Result(nil), d.results...)
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for event := range d.queue {
		results := d.registry.Trigger(d.ctx, event)
		for _, r := range results {
			d.report(r)
		}
		d.mu.Lock()
		d.results = append(d.results, results...)
		d.mu.Unlock()
	}
}

func (d *Dispatcher) report(r Result) {
	if r.Err == nil {
		d.logger.Debug("hook finished", "hook", r.Hook, "event", string(r.Event), "duration", r.Duration)
		return
	}
	args := []any{"hook", r.Hook, "event", string(r.Event), "duration", r.Duration, "error", r.Err}
	if d.registry.failureMode(r.Hook, r.Event) == FailureIgnore {
		d.logger.Debug("hook failed", args...)
		return
	}
	d.logger.Warn("hook failed", args...)
}

// FromSchedulerEvent maps a scheduler event to a hook event. Role-started
// events and role-done events of roles resumed from an earlier attempt have
// no hook counterpart.
func FromSchedulerEvent(e scheduler.Event) (*Event, bool) {
	event := &Event{
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Attempt:   e.Attempt,
		RoleID:    e.RoleID,
	}
	switch e.Type {
	case scheduler.EventRunStarted:
		event.Type = EventRunStart
	case scheduler.EventRoleDone:
		if e.Resumed {
			return nil, false
		}
		event.Type = EventRoleDone
		event.Artifacts = e.Artifacts
	case scheduler.EventRoleFailed:
		event.Type = EventRoleFailed
	case scheduler.EventRunFinished:
		event.Type = EventRunFailed
		if e.Succeeded {
			event.Type = EventRunComplete
		}
	default:
		return nil, false
	}
	if e.Err != nil {
		event.Error = e.Err.Error()
	}
	return event, true
}
