package trace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/worker"
)

type okInvoker struct{ fail string }

func (o okInvoker) Invoke(_ context.Context, role manifest.Role, _ *manifest.Manifest) (*worker.Result, error) {
	if role.ID == o.fail {
		return nil, errors.New("generation failed")
	}
	return &worker.Result{RoleID: role.ID, Artifacts: []protocol.Artifact{{Path: role.Outputs[0]}}}, nil
}

func twoRoles() *manifest.Manifest {
	return &manifest.Manifest{
		ProjectName: "trace",
		Roles: []manifest.Role{
			{ID: "api", Outputs: []string{"api.go"}},
			{ID: "web", Outputs: []string{"web.js"}, DependsOn: []string{"api"}},
		},
	}
}

func TestLoggerRecordsSchedulerEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(Config{RunID: "run-1", Dir: dir, Enabled: true}, nil)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	_, runErr := scheduler.New(okInvoker{fail: "web"}, scheduler.WithObserver(logger)).
		Run(context.Background(), twoRoles())
	if runErr == nil {
		t.Fatal("expected the web role to fail")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := ReadFile(filepath.Join(dir, "trace_run-1.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	want := []scheduler.EventType{
		scheduler.EventRunStarted,
		scheduler.EventRoleStarted,
		scheduler.EventRoleDone,
		scheduler.EventRoleStarted,
		scheduler.EventRoleFailed,
		scheduler.EventRunFinished,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event %d: type = %s, want %s", i, ev.Type, want[i])
		}
		if ev.Seq != i+1 {
			t.Errorf("event %d: seq = %d", i, ev.Seq)
		}
	}

	if got := events[0].Order; len(got) != 2 || got[0] != "api" {
		t.Errorf("run-started order = %v", got)
	}
	if events[2].Artifacts != 1 || events[2].RoleID != "api" {
		t.Errorf("role-done = %+v", events[2])
	}
	if events[4].Level != "error" || events[4].Error != "generation failed" {
		t.Errorf("role-failed = %+v", events[4])
	}
	if last := events[5]; last.Succeeded == nil || *last.Succeeded {
		t.Errorf("run-finished should report failure: %+v", last)
	}
}

func TestLoggerContinuesSequenceAcrossAttempts(t *testing.T) {
	dir := t.TempDir()
	for attempt := 0; attempt < 2; attempt++ {
		logger, err := NewLogger(Config{RunID: "run-2", Dir: dir, Enabled: true}, nil)
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		logger.OnEvent(scheduler.Event{Type: scheduler.EventRunStarted, RunID: "run-2", Attempt: attempt + 1})
		if err := logger.Close(); err != nil {
			t.Fatal(err)
		}
	}

	events, err := ReadFile(filepath.Join(dir, "trace_run-2.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[1].Seq != 2 || events[1].Attempt != 2 {
		t.Errorf("events = %+v", events)
	}
}

func TestDisabledLoggerKeepsEventsInMemory(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(Config{RunID: "run-3", Dir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.OnEvent(scheduler.Event{Type: scheduler.EventRoleStarted, RoleID: "api", Timestamp: time.Now()})

	if got := logger.Events(); len(got) != 1 || got[0].RoleID != "api" {
		t.Errorf("Events() = %+v", got)
	}
	if _, err := os.Stat(logger.Path()); !os.IsNotExist(err) {
		t.Error("disabled logger must not create a trace file")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on disabled logger = %v", err)
	}
}

func TestCleanupKeepsNewestTraces(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	for i, name := range []string{"trace_a.jsonl", "trace_b.jsonl", "trace_c.jsonl"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatal(err)
		}
		stamp := old.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatal(err)
		}
	}

	logger, err := NewLogger(Config{RunID: "d", Dir: dir, MaxFiles: 2, Enabled: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = logger.Close() }()

	files, _ := filepath.Glob(filepath.Join(dir, "trace_*.jsonl"))
	if len(files) != 2 {
		t.Fatalf("kept %v", files)
	}
	for _, removed := range []string{"trace_a.jsonl", "trace_b.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, removed)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", removed)
		}
	}
}

func TestFromSchedulerDuration(t *testing.T) {
	ev := FromScheduler(scheduler.Event{Type: scheduler.EventRoleDone, Duration: 1500 * time.Millisecond})
	if ev.DurationMS != 1500 || ev.Succeeded != nil || ev.Level != "info" {
		t.Errorf("FromScheduler() = %+v", ev)
	}
}
