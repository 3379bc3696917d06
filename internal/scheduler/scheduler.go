// Package scheduler drives worker roles through a manifest's dependency
// graph one at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/ledger"
	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/worker"
)

// Invoker runs a single role. worker.Invoker implements it.
type Invoker interface {
	Invoke(ctx context.Context, role manifest.Role, m *manifest.Manifest) (*worker.Result, error)
}

// Journal receives the audit trail of a run. ledger.Ledger implements it.
type Journal interface {
	RecordDecision(author, what, why string) error
	RecordError(author, content string) error
	RecordLearning(author, content string) error
	RecordFeatureRequest(author, content string) error
}

// StateStore persists run state. checkpoint.Store implements it.
type StateStore interface {
	Save(state *checkpoint.RunState) error
}

// Scheduler sequences role invocations. It never runs two roles at once.
type Scheduler struct {
	invoker   Invoker
	journal   Journal
	store     StateStore
	state     *checkpoint.RunState
	observers []Observer
	logger    *log.Logger
	now       func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithJournal sets the ledger that receives decisions, errors, learnings
// and feature requests.
func WithJournal(j Journal) Option {
	return func(s *Scheduler) { s.journal = j }
}

// WithStateStore persists the run state after every role.
func WithStateStore(st StateStore) Option {
	return func(s *Scheduler) { s.store = st }
}

// WithState resumes from an earlier run state. Roles it lists as completed
// are not invoked again.
func WithState(state *checkpoint.RunState) Option {
	return func(s *Scheduler) { s.state = state }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides the time source used for events and task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(inv Invoker, opts ...Option) *Scheduler {
	s := &Scheduler{
		invoker: inv,
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the run state. It is nil before the first Run.
func (s *Scheduler) State() *checkpoint.RunState {
	return s.state
}

// Run executes every role of m in dependency order. The order is computed
// before anything runs, so a cyclic manifest invokes no role. The first
// failing role aborts the run; roles finished before it keep their output.
// The returned report is never nil.
func (s *Scheduler) Run(ctx context.Context, m *manifest.Manifest) (*Report, error) {
	if s.state == nil {
		s.state = checkpoint.NewRunState(m.ProjectName)
	}
	ctx = log.ContextWithRunID(ctx, s.state.RunID)
	logger := s.logger.WithContext(ctx)

	report := &Report{
		RunID:   s.state.RunID,
		Project: m.ProjectName,
		Attempt: s.state.Attempt,
	}

	order, err := Order(m)
	if err != nil {
		report.Status = checkpoint.StatusFailed
		report.Outcomes = pendingOutcomes(m, m.RoleIDs())
		s.journalErr(logger, s.recordError(ledger.Orchestrator, err.Error()))
		logger.Error("cannot order roles", "error", err)
		return report, err
	}
	report.Order = order
	report.Outcomes = pendingOutcomes(m, order)

	s.journalErr(logger, s.recordDecision(ledger.Orchestrator,
		fmt.Sprintf("Execution order (attempt %d): %s", s.state.Attempt, strings.Join(order, " → ")),
		"Topological order of depends_on; ties keep manifest declaration order."))

	s.emit(Event{Type: EventRunStarted, Order: order, Total: len(order)})
	logger.Info("run started", "project", m.ProjectName, "roles", len(order), "attempt", s.state.Attempt)

	for i, id := range order {
		role, _ := m.Role(id)
		outcome := &report.Outcomes[i]
		base := Event{RoleID: id, RoleName: role.DisplayName(), Index: i + 1, Total: len(order)}

		if s.state.IsCompleted(id) {
			s.transition(logger, outcome, StateDone)
			outcome.Resumed = true
			if last, ok := s.state.LastTask(id); ok {
				outcome.Artifacts = last.ArtifactCount
			}
			ev := base
			ev.Type, ev.Resumed, ev.Artifacts = EventRoleDone, true, outcome.Artifacts
			s.emit(ev)
			logger.Info("role already completed", "role", id)
			continue
		}

		if err := ctx.Err(); err != nil {
			return s.abort(ctx, report, err)
		}

		s.transition(logger, outcome, StateReady)
		s.transition(logger, outcome, StateRunning)
		ev := base
		ev.Type = EventRoleStarted
		s.emit(ev)

		started := s.now()
		result, err := s.invoker.Invoke(ctx, role, m)
		finished := s.now()
		outcome.Duration = finished.Sub(started)

		if err != nil {
			s.transition(logger, outcome, StateFailed)
			outcome.Err = err
			s.state.Record(checkpoint.Task{
				RoleID:     id,
				Status:     checkpoint.TaskFailed,
				Error:      err.Error(),
				StartedAt:  started.UTC(),
				FinishedAt: finished.UTC(),
			})
			var noArtifacts *protocol.NoArtifactsError
			if errors.As(err, &noArtifacts) {
				for _, d := range noArtifacts.Decisions {
					s.journalErr(logger, s.recordDecision(id, d.What, d.Why))
				}
			}
			s.journalErr(logger, s.recordError(id, err.Error()))

			ev := base
			ev.Type, ev.Err, ev.Duration = EventRoleFailed, err, outcome.Duration
			s.emit(ev)
			logger.Error("role failed", "role", id, "error", err)

			return s.finish(ctx, report, checkpoint.StatusFailed, err)
		}

		s.transition(logger, outcome, StateDone)
		outcome.Artifacts = len(result.Artifacts)
		s.state.Record(checkpoint.Task{
			RoleID:        id,
			Status:        checkpoint.TaskDone,
			ArtifactCount: len(result.Artifacts),
			Checksums:     result.Checksums,
			StartedAt:     started.UTC(),
			FinishedAt:    finished.UTC(),
		})
		if err := s.save(); err != nil {
			logger.Error("cannot persist run state", "role", id, "error", err)
			return s.finish(ctx, report, checkpoint.StatusFailed, err)
		}
		s.journalResult(logger, id, result)

		ev = base
		ev.Type, ev.Artifacts, ev.Duration = EventRoleDone, outcome.Artifacts, outcome.Duration
		s.emit(ev)
	}

	return s.finish(ctx, report, checkpoint.StatusSucceeded, nil)
}

// abort ends a run interrupted between roles.
func (s *Scheduler) abort(ctx context.Context, report *Report, cause error) (*Report, error) {
	s.journalErr(s.logger, s.recordError(ledger.Orchestrator, fmt.Sprintf("run interrupted: %v", cause)))
	return s.finish(ctx, report, checkpoint.StatusFailed, cause)
}

func (s *Scheduler) finish(ctx context.Context, report *Report, status checkpoint.Status, cause error) (*Report, error) {
	s.state.Finish(status)
	report.Status = status
	if err := s.save(); err != nil && cause == nil {
		cause = err
	}
	s.emit(Event{
		Type:      EventRunFinished,
		Total:     len(report.Outcomes),
		Succeeded: status == checkpoint.StatusSucceeded,
		Err:       cause,
	})
	s.logger.WithContext(ctx).Info("run finished",
		"status", string(status),
		"done", report.Count(StateDone),
		"failed", report.Count(StateFailed),
		"pending", report.Count(StatePending))
	return report, cause
}

func (s *Scheduler) journalResult(logger *log.Logger, roleID string, result *worker.Result) {
	for _, d := range result.Decisions {
		s.journalErr(logger, s.recordDecision(roleID, d.What, d.Why))
	}
	for _, path := range result.Undeclared {
		s.journalErr(logger, s.recordLearning(roleID,
			fmt.Sprintf("Produced %s, which is not among its declared outputs; it stays in the role directory and is not assembled.", path)))
	}
	for _, path := range result.Missing {
		s.journalErr(logger, s.recordFeatureRequest(roleID,
			fmt.Sprintf("Declared output %s was not produced.", path)))
	}
}

func (s *Scheduler) transition(logger *log.Logger, o *RoleOutcome, to RoleState) {
	logger.Debug("role state", "role", o.RoleID, "from", string(o.State), "to", string(to))
	o.State = to
}

func (s *Scheduler) save() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.state); err != nil {
		return fmt.Errorf("persist run state: %w", err)
	}
	return nil
}

func (s *Scheduler) emit(e Event) {
	e.Timestamp = s.now()
	e.RunID = s.state.RunID
	e.Attempt = s.state.Attempt
	for _, o := range s.observers {
		o.OnEvent(e)
	}
}

// Ledger write failures are logged and do not abort the run; RunState stays
// the authoritative record.
func (s *Scheduler) journalErr(logger *log.Logger, err error) {
	if err != nil {
		logger.Warn("ledger write failed", "error", err)
	}
}

func (s *Scheduler) recordDecision(author, what, why string) error {
	if s.journal == nil {
		return nil
	}
	return s.journal.RecordDecision(author, what, why)
}

func (s *Scheduler) recordError(author, content string) error {
	if s.journal == nil {
		return nil
	}
	return s.journal.RecordError(author, content)
}

func (s *Scheduler) recordLearning(author, content string) error {
	if s.journal == nil {
		return nil
	}
	return s.journal.RecordLearning(author, content)
}

func (s *Scheduler) recordFeatureRequest(author, content string) error {
	if s.journal == nil {
		return nil
	}
	return s.journal.RecordFeatureRequest(author, content)
}

func pendingOutcomes(m *manifest.Manifest, ids []string) []RoleOutcome {
	out := make([]RoleOutcome, len(ids))
	for i, id := range ids {
		role, _ := m.Role(id)
		out[i] = RoleOutcome{RoleID: id, Name: role.DisplayName(), State: StatePending}
	}
	return out
}
