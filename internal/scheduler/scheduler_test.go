package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/ledger"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/worker"
)

// diamond is A; B and C depend on A; D depends on B and C.
func diamond() *manifest.Manifest {
	return &manifest.Manifest{
		ProjectName: "diamond",
		Roles: []manifest.Role{
			{ID: "A", Name: "Architect", Outputs: []string{"a.md"}},
			{ID: "B", Name: "Backend", Outputs: []string{"b.go"}, DependsOn: []string{"A"}},
			{ID: "C", Name: "Frontend", Outputs: []string{"c.js"}, DependsOn: []string{"A"}},
			{ID: "D", Name: "QA", Outputs: []string{"d_test.go"}, DependsOn: []string{"B", "C"}},
		},
	}
}

type fakeInvoker struct {
	calls   []string
	fail    map[string]error
	results map[string]*worker.Result
}

func (f *fakeInvoker) Invoke(_ context.Context, role manifest.Role, _ *manifest.Manifest) (*worker.Result, error) {
	f.calls = append(f.calls, role.ID)
	if err := f.fail[role.ID]; err != nil {
		return nil, err
	}
	if r, ok := f.results[role.ID]; ok {
		return r, nil
	}
	return &worker.Result{
		RoleID:    role.ID,
		Artifacts: []protocol.Artifact{{Path: role.Outputs[0], Content: role.ID}},
		Checksums: map[string]string{role.Outputs[0]: "sum-" + role.ID},
	}, nil
}

type journalEntry struct {
	stream  ledger.Stream
	author  string
	content string
}

type fakeJournal struct {
	entries []journalEntry
}

func (j *fakeJournal) add(s ledger.Stream, author, content string) error {
	j.entries = append(j.entries, journalEntry{s, author, content})
	return nil
}

func (j *fakeJournal) RecordDecision(author, what, why string) error {
	return j.add(ledger.Decisions, author, what+" | "+why)
}
func (j *fakeJournal) RecordError(author, content string) error {
	return j.add(ledger.Errors, author, content)
}
func (j *fakeJournal) RecordLearning(author, content string) error {
	return j.add(ledger.Learnings, author, content)
}
func (j *fakeJournal) RecordFeatureRequest(author, content string) error {
	return j.add(ledger.FeatureRequests, author, content)
}

func (j *fakeJournal) stream(s ledger.Stream) []journalEntry {
	var out []journalEntry
	for _, e := range j.entries {
		if e.stream == s {
			out = append(out, e)
		}
	}
	return out
}

// fakeStore snapshots the completed set at every save.
type fakeStore struct {
	saves [][]string
	err   error
}

func (st *fakeStore) Save(state *checkpoint.RunState) error {
	st.saves = append(st.saves, append([]string(nil), state.Completed...))
	return st.err
}

func TestOrderBreaksTiesByDeclaration(t *testing.T) {
	order, err := Order(diamond())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, order)

	m := diamond()
	m.Roles[1], m.Roles[2] = m.Roles[2], m.Roles[1]
	order, err = Order(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B", "D"}, order)
}

func TestOrderIgnoresDuplicateDependencies(t *testing.T) {
	m := &manifest.Manifest{Roles: []manifest.Role{
		{ID: "a", Outputs: []string{"a"}},
		{ID: "b", Outputs: []string{"b"}, DependsOn: []string{"a", "a"}},
	}}
	order, err := Order(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestOrderDetectsCycle(t *testing.T) {
	m := &manifest.Manifest{Roles: []manifest.Role{
		{ID: "a", Outputs: []string{"a"}, DependsOn: []string{"b"}},
		{ID: "b", Outputs: []string{"b"}, DependsOn: []string{"a"}},
		{ID: "c", Outputs: []string{"c"}},
		{ID: "d", Outputs: []string{"d"}, DependsOn: []string{"a"}},
	}}

	_, err := Order(m)
	var cyc *CyclicManifestError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a", "b", "d"}, cyc.Stuck)
	assert.Contains(t, err.Error(), "a, b, d")
}

func TestOrderIsTopologicallySound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 50; n++ {
		size := 1 + rng.Intn(12)
		m := &manifest.Manifest{}
		for i := 0; i < size; i++ {
			r := manifest.Role{ID: fmt.Sprintf("r%d", i), Outputs: []string{fmt.Sprintf("f%d", i)}}
			// Only earlier roles may be dependencies, which keeps the graph acyclic.
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					r.DependsOn = append(r.DependsOn, fmt.Sprintf("r%d", j))
				}
			}
			m.Roles = append(m.Roles, r)
		}
		// Shuffle declaration order so it does not already match the answer.
		rng.Shuffle(len(m.Roles), func(i, j int) { m.Roles[i], m.Roles[j] = m.Roles[j], m.Roles[i] })

		order, err := Order(m)
		require.NoError(t, err)
		require.Len(t, order, size)

		pos := make(map[string]int, size)
		for i, id := range order {
			pos[id] = i
		}
		for _, r := range m.Roles {
			for _, dep := range r.DependsOn {
				assert.Less(t, pos[dep], pos[r.ID], "%s must run before %s", dep, r.ID)
			}
		}

		again, err := Order(m)
		require.NoError(t, err)
		assert.Equal(t, order, again)
	}
}

func TestRunExecutesInOrder(t *testing.T) {
	inv := &fakeInvoker{}
	store := &fakeStore{}
	journal := &fakeJournal{}
	s := New(inv, WithStateStore(store), WithJournal(journal))

	report, err := s.Run(context.Background(), diamond())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, inv.calls)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 4, report.Count(StateDone))
	assert.Equal(t, []string{"A", "B", "C", "D"}, s.State().Completed)
	assert.Equal(t, checkpoint.StatusSucceeded, s.State().Status)

	// One save per role plus the final status.
	require.Len(t, store.saves, 5)
	assert.Equal(t, []string{"A"}, store.saves[0])
	assert.Equal(t, []string{"A", "B", "C", "D"}, store.saves[3])

	decisions := journal.stream(ledger.Decisions)
	require.NotEmpty(t, decisions)
	assert.Equal(t, ledger.Orchestrator, decisions[0].author)
	assert.Contains(t, decisions[0].content, "A → B → C → D")
}

func TestRunFailsFast(t *testing.T) {
	boom := &protocol.NoArtifactsError{}
	inv := &fakeInvoker{fail: map[string]error{"B": fmt.Errorf("role B: %w", boom)}}
	store := &fakeStore{}
	journal := &fakeJournal{}
	s := New(inv, WithStateStore(store), WithJournal(journal))

	report, err := s.Run(context.Background(), diamond())
	require.Error(t, err)

	var noArtifacts *protocol.NoArtifactsError
	assert.ErrorAs(t, err, &noArtifacts)
	assert.Equal(t, []string{"A", "B"}, inv.calls, "C and D must never start")

	states := map[string]RoleState{}
	for _, o := range report.Outcomes {
		states[o.RoleID] = o.State
	}
	assert.Equal(t, map[string]RoleState{"A": StateDone, "B": StateFailed, "C": StatePending, "D": StatePending}, states)

	failed, ok := report.Failed()
	require.True(t, ok)
	assert.Equal(t, "B", failed.RoleID)

	state := s.State()
	assert.Equal(t, checkpoint.StatusFailed, state.Status)
	assert.Equal(t, []string{"A"}, state.Completed)
	require.Len(t, state.Tasks, 2)
	assert.Equal(t, checkpoint.TaskFailed, state.Tasks[1].Status)
	assert.Len(t, store.saves, 2)

	errs := journal.stream(ledger.Errors)
	require.Len(t, errs, 1)
	assert.Equal(t, "B", errs[0].author)
}

func TestRunRecordsDecisionsOfResponseWithoutFiles(t *testing.T) {
	noFiles := &protocol.NoArtifactsError{Decisions: []protocol.Decision{{What: "use sqlite", Why: "simple"}}}
	inv := &fakeInvoker{fail: map[string]error{"A": fmt.Errorf("role A: %w", noFiles)}}
	journal := &fakeJournal{}
	s := New(inv, WithJournal(journal))

	_, err := s.Run(context.Background(), diamond())
	require.ErrorAs(t, err, &noFiles)

	var fromA []string
	for _, e := range journal.stream(ledger.Decisions) {
		if e.author == "A" {
			fromA = append(fromA, e.content)
		}
	}
	assert.Equal(t, []string{"use sqlite | simple"}, fromA)
	require.Len(t, journal.stream(ledger.Errors), 1)
}

func TestRunFinishesWhenStateCannotBeSaved(t *testing.T) {
	diskFull := errors.New("no space left on device")
	inv := &fakeInvoker{}
	store := &fakeStore{err: diskFull}
	var events []Event
	s := New(inv, WithStateStore(store),
		WithObserver(ObserverFunc(func(e Event) { events = append(events, e) })))

	report, err := s.Run(context.Background(), diamond())
	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, []string{"A"}, inv.calls)
	assert.Equal(t, checkpoint.StatusFailed, report.Status)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventRunFinished, last.Type)
	assert.False(t, last.Succeeded)
	assert.ErrorIs(t, last.Err, diskFull)
}

func TestRunCycleInvokesNothing(t *testing.T) {
	m := diamond()
	m.Roles[0].DependsOn = []string{"D"}
	inv := &fakeInvoker{}
	store := &fakeStore{}
	journal := &fakeJournal{}
	var events []Event
	s := New(inv, WithStateStore(store), WithJournal(journal),
		WithObserver(ObserverFunc(func(e Event) { events = append(events, e) })))

	report, err := s.Run(context.Background(), m)

	var cyc *CyclicManifestError
	require.ErrorAs(t, err, &cyc)
	assert.Empty(t, inv.calls)
	assert.Empty(t, store.saves)
	assert.Empty(t, events)
	assert.Equal(t, 4, report.Count(StatePending))
	require.Len(t, journal.stream(ledger.Errors), 1)
}

func TestRunResumesCompletedRoles(t *testing.T) {
	state := checkpoint.NewRunState("diamond")
	state.Record(checkpoint.Task{RoleID: "A", Status: checkpoint.TaskDone, ArtifactCount: 3})
	state.Record(checkpoint.Task{RoleID: "B", Status: checkpoint.TaskFailed, Error: "boom"})
	state.Finish(checkpoint.StatusFailed)
	state.BeginAttempt()

	inv := &fakeInvoker{}
	s := New(inv, WithState(state))

	report, err := s.Run(context.Background(), diamond())
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "D"}, inv.calls)
	assert.Equal(t, 2, report.Attempt)
	assert.Equal(t, state.RunID, report.RunID)

	a, ok := report.Outcome("A")
	require.True(t, ok)
	assert.True(t, a.Resumed)
	assert.Equal(t, StateDone, a.State)
	assert.Equal(t, 3, a.Artifacts)

	assert.Equal(t, []string{"A", "B", "C", "D"}, state.Completed)
	assert.Len(t, state.Tasks, 5, "earlier tasks are kept")
}

func TestRunJournalsWorkerFindings(t *testing.T) {
	inv := &fakeInvoker{results: map[string]*worker.Result{
		"A": {
			Artifacts:  []protocol.Artifact{{Path: "a.md"}, {Path: "notes.txt"}},
			Decisions:  []protocol.Decision{{What: "Use REST", Why: "Simple clients"}},
			Undeclared: []string{"notes.txt"},
		},
		"B": {Missing: []string{"b.go"}, Artifacts: []protocol.Artifact{{Path: "other.go"}}},
	}}
	journal := &fakeJournal{}
	s := New(inv, WithJournal(journal))

	_, err := s.Run(context.Background(), diamond())
	require.NoError(t, err)

	decisions := journal.stream(ledger.Decisions)
	require.Len(t, decisions, 2)
	assert.Equal(t, "A", decisions[1].author)
	assert.Equal(t, "Use REST | Simple clients", decisions[1].content)

	learnings := journal.stream(ledger.Learnings)
	require.Len(t, learnings, 1)
	assert.Contains(t, learnings[0].content, "notes.txt")

	requests := journal.stream(ledger.FeatureRequests)
	require.Len(t, requests, 1)
	assert.Equal(t, "B", requests[0].author)
	assert.Contains(t, requests[0].content, "b.go")
}

func TestRunEmitsEvents(t *testing.T) {
	inv := &fakeInvoker{fail: map[string]error{"C": errors.New("service unavailable")}}
	var got []string
	s := New(inv, WithObserver(ObserverFunc(func(e Event) {
		got = append(got, fmt.Sprintf("%s:%s:%d/%d", e.Type, e.RoleID, e.Index, e.Total))
	})))

	_, err := s.Run(context.Background(), diamond())
	require.Error(t, err)
	assert.Equal(t, []string{
		"run-started::0/4",
		"role-started:A:1/4",
		"role-done:A:1/4",
		"role-started:B:2/4",
		"role-done:B:2/4",
		"role-started:C:3/4",
		"role-failed:C:3/4",
		"run-finished::0/4",
	}, got)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := &fakeInvoker{}
	store := &fakeStore{}
	s := New(inv, WithStateStore(store))

	report, err := s.Run(ctx, diamond())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, inv.calls)
	assert.Equal(t, checkpoint.StatusFailed, report.Status)
	assert.Len(t, store.saves, 1)
}

func TestReportLedgerSummary(t *testing.T) {
	inv := &fakeInvoker{fail: map[string]error{"B": errors.New("no artifacts")}}
	report, _ := New(inv).Run(context.Background(), diamond())

	summary := report.LedgerSummary()
	assert.Equal(t, "diamond", summary.Project)
	assert.Equal(t, "failed", summary.Status)
	require.Len(t, summary.Roles, 4)
	assert.Equal(t, ledger.RoleSummary{RoleID: "B", Name: "Backend", State: "FAILED", Error: "no artifacts"}, summary.Roles[1])
	assert.Equal(t, "PENDING", summary.Roles[3].State)
}
