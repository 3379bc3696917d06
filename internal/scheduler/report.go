package scheduler

import (
	"time"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/ledger"
)

// RoleOutcome is the final position of one role after a run.
type RoleOutcome struct {
	RoleID    string
	Name      string
	State     RoleState
	Artifacts int
	Resumed   bool
	Duration  time.Duration
	Err       error
}

// Report describes a finished or aborted run. Outcomes follow the execution
// order; when no order could be computed they follow declaration order.
type Report struct {
	RunID    string
	Project  string
	Attempt  int
	Status   checkpoint.Status
	Order    []string
	Outcomes []RoleOutcome
}

// Succeeded reports whether every role is DONE.
func (r *Report) Succeeded() bool {
	return r.Status == checkpoint.StatusSucceeded
}

// Outcome returns the outcome for roleID.
func (r *Report) Outcome(roleID string) (RoleOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.RoleID == roleID {
			return o, true
		}
	}
	return RoleOutcome{}, false
}

// Count returns how many roles ended in state s.
func (r *Report) Count(s RoleState) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// Failed returns the failed role, if any. Fail-fast means there is at most
// one.
func (r *Report) Failed() (RoleOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.State == StateFailed {
			return o, true
		}
	}
	return RoleOutcome{}, false
}

// LedgerSummary converts the report into the ledger's summary input.
func (r *Report) LedgerSummary() ledger.Summary {
	s := ledger.Summary{
		Project: r.Project,
		RunID:   r.RunID,
		Status:  string(r.Status),
		Attempt: r.Attempt,
		Roles:   make([]ledger.RoleSummary, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		row := ledger.RoleSummary{
			RoleID:    o.RoleID,
			Name:      o.Name,
			State:     string(o.State),
			Artifacts: o.Artifacts,
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		s.Roles = append(s.Roles, row)
	}
	return s
}
