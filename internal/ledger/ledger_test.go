package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLedger(t *testing.T, dir string) *Ledger {
	t.Helper()
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	n := 0
	l, err := Open(dir,
		WithClock(func() time.Time { return at }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	require.NoError(t, err)
	return l
}

func TestAppendWritesMarkdownEntries(t *testing.T) {
	dir := t.TempDir()
	l := fixedLedger(t, dir)

	require.NoError(t, l.RecordDecision("backend", "Use SQLite", "Single-file deployment"))
	require.NoError(t, l.RecordDecision("", "Order: a, b", "Kahn traversal"))

	data, err := os.ReadFile(filepath.Join(dir, "decisions.md"))
	require.NoError(t, err)
	want := "# Decisions\n\n" +
		"### [id-1] 2025-03-04T04:06:07Z · backend\n\n**What:** Use SQLite\n**Why:** Single-file deployment\n\n" +
		"### [id-2] 2025-03-04T04:06:07Z · Orchestrator\n\n**What:** Order: a, b\n**Why:** Kahn traversal\n\n"
	assert.Equal(t, want, string(data))
}

func TestEntriesRoundTrip(t *testing.T) {
	l := fixedLedger(t, t.TempDir())

	require.NoError(t, l.RecordError("qa", "role qa: no artifacts\n### [fake] header inside content"))
	require.NoError(t, l.RecordError("Orchestrator", "run aborted"))

	entries, err := l.Entries(Errors)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "id-1", entries[0].ID)
	assert.Equal(t, "qa", entries[0].Author)
	assert.Equal(t, "role qa: no artifacts\n### [fake] header inside content", entries[0].Content)
	assert.Equal(t, Errors, entries[1].Stream)
	assert.True(t, entries[1].Timestamp.Equal(time.Date(2025, 3, 4, 4, 6, 7, 0, time.UTC)))

	assert.Equal(t, 2, l.Counts()[Errors], "escaped header lines are not counted")

	none, err := l.Entries(Learnings)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpenRecoversCounts(t *testing.T) {
	dir := t.TempDir()
	first := fixedLedger(t, dir)
	require.NoError(t, first.RecordLearning("backend", "undeclared file api/helpers.py"))
	require.NoError(t, first.RecordFeatureRequest("backend", "missing api/models.py"))
	require.NoError(t, first.RecordFeatureRequest("frontend", "missing web/App.jsx"))

	second, err := Open(dir)
	require.NoError(t, err)
	counts := second.Counts()
	assert.Equal(t, 1, counts[Learnings])
	assert.Equal(t, 2, counts[FeatureRequests])
	assert.Equal(t, 0, counts[Decisions])

	_, err = second.Append(Learnings, "human", "appended later")
	require.NoError(t, err)
	entries, err := second.Entries(Learnings)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "undeclared file api/helpers.py", entries[0].Content, "earlier entries are never rewritten")

	data, err := os.ReadFile(filepath.Join(dir, "learnings.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "# Learnings\n"), "title is written once")
}

func TestConcurrentAppends(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.RecordLearning("worker", fmt.Sprintf("entry %d", i))
		}(i)
	}
	wg.Wait()

	entries, err := l.Entries(Learnings)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
	assert.Equal(t, 20, l.Counts()[Learnings])
}

func TestParseStream(t *testing.T) {
	tests := map[string]Stream{
		"errors":           Errors,
		"Learnings":        Learnings,
		"feature-requests": FeatureRequests,
		"feature_requests": FeatureRequests,
		" decisions ":      Decisions,
	}
	for in, want := range tests {
		got, err := ParseStream(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStream("summary")
	assert.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	l := fixedLedger(t, dir)
	require.NoError(t, l.RecordDecision("a", "x", "y"))
	require.NoError(t, l.RecordError("b", "boom"))

	longErr := strings.Repeat("é", 200) + " | pipe"
	path, err := l.WriteSummary(Summary{
		Project: "todo",
		RunID:   "run-1",
		Status:  "failed",
		Attempt: 1,
		Roles: []RoleSummary{
			{RoleID: "a", Name: "Architect", State: "DONE", Artifacts: 2},
			{RoleID: "b", State: "FAILED", Error: longErr},
			{RoleID: "c", State: "PENDING"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SummaryFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# Run Summary: todo")
	assert.Contains(t, out, "| Architect (a) | DONE | 2 |  |")
	assert.Contains(t, out, "| c | PENDING | 0 |  |")
	assert.Contains(t, out, "- Decisions: 1\n- Errors: 1\n- Learnings: 0\n- Feature Requests: 0")
	for _, f := range FollowUps {
		assert.Contains(t, out, f)
	}
	assert.Contains(t, out, strings.Repeat("é", 159)+"…")
	assert.NotContains(t, out, "pipe", "excerpt is cut before the tail")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short error", Excerpt("short\n  error", 160))
	assert.Equal(t, "abcd…", Excerpt("abcdefgh", 5))
	assert.Equal(t, "abc", Excerpt("abc", 0))
}
