package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

type recordingHook struct {
	name   string
	events []EventType
	err    error

	mu   sync.Mutex
	seen []*Event
}

func (h *recordingHook) Name() string        { return h.name }
func (h *recordingHook) Events() []EventType { return h.events }

func (h *recordingHook) Execute(_ context.Context, e *Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, e)
	return h.err
}

func (h *recordingHook) types() []EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []EventType
	for _, e := range h.seen {
		out = append(out, e.Type)
	}
	return out
}

func registryWith(t *testing.T, hooks ...*recordingHook) *Registry {
	t.Helper()
	r := NewRegistry()
	byName := make(map[string]*recordingHook)
	for _, h := range hooks {
		byName[h.name] = h
	}
	r.RegisterFactory("recording", func(c *HookConfig) (Hook, error) {
		return byName[c.Name], nil
	})
	for _, h := range hooks {
		require.NoError(t, r.RegisterFromConfig(&HookConfig{Name: h.name, Type: "recording", Events: h.events, Enabled: true}))
	}
	return r
}

func TestHookConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  HookConfig
		wantErr string
	}{
		{"valid", HookConfig{Name: "a", Type: "script", Events: []EventType{EventRunFailed}}, ""},
		{"no name", HookConfig{Type: "script", Events: []EventType{EventRunFailed}}, "name is required"},
		{"no type", HookConfig{Name: "a", Events: []EventType{EventRunFailed}}, "type is required"},
		{"no events", HookConfig{Name: "a", Type: "script"}, "at least one event"},
		{"unknown event", HookConfig{Name: "a", Type: "script", Events: []EventType{"on_step_after"}}, "unknown event"},
		{"bad failure mode", HookConfig{Name: "a", Type: "script", Events: []EventType{EventRunStart}, FailureMode: "fail"}, "failure_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRegistryLoad(t *testing.T) {
	r := NewRegistry()
	err := r.Load([]HookConfig{
		{Name: "notify", Type: "webhook", Events: []EventType{EventRunComplete, EventRunFailed}, Enabled: true, Config: map[string]any{"url": "http://localhost:1"}},
		{Name: "off", Type: "webhook", Events: []EventType{EventRunStart}, Enabled: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.HasHooksFor(EventRunFailed))
	assert.False(t, r.HasHooksFor(EventRunStart), "disabled hooks are not registered")

	err = r.Load([]HookConfig{{Name: "notify", Type: "webhook", Events: []EventType{EventRunStart}, Enabled: true, Config: map[string]any{"url": "http://x"}}})
	assert.ErrorContains(t, err, "registered twice")

	err = NewRegistry().Load([]HookConfig{{Name: "x", Type: "slack", Events: []EventType{EventRunStart}, Enabled: true}})
	assert.ErrorContains(t, err, "unknown type")

	err = NewRegistry().Load([]HookConfig{{Name: "x", Type: "script", Events: []EventType{EventRunStart}, Enabled: true}})
	assert.ErrorContains(t, err, "script path required")
}

func TestRegistryTriggerTimeout(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("slow", func(c *HookConfig) (Hook, error) {
		return &slowHook{name: c.Name, events: c.Events}, nil
	})
	require.NoError(t, r.RegisterFromConfig(&HookConfig{
		Name: "slow", Type: "slow", Events: []EventType{EventRunStart}, Enabled: true, Timeout: 10 * time.Millisecond,
	}))

	results := r.Trigger(context.Background(), &Event{Type: EventRunStart})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

type slowHook struct {
	name   string
	events []EventType
}

func (h *slowHook) Name() string        { return h.name }
func (h *slowHook) Events() []EventType { return h.events }
func (h *slowHook) Execute(ctx context.Context, _ *Event) error {
	select {
	case <-time.After(time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestFromSchedulerEvent(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		in   scheduler.Event
		want EventType
		ok   bool
	}{
		{"run started", scheduler.Event{Type: scheduler.EventRunStarted}, EventRunStart, true},
		{"role started", scheduler.Event{Type: scheduler.EventRoleStarted}, "", false},
		{"role done", scheduler.Event{Type: scheduler.EventRoleDone, Artifacts: 2}, EventRoleDone, true},
		{"role resumed", scheduler.Event{Type: scheduler.EventRoleDone, Resumed: true}, "", false},
		{"role failed", scheduler.Event{Type: scheduler.EventRoleFailed, Err: boom}, EventRoleFailed, true},
		{"run succeeded", scheduler.Event{Type: scheduler.EventRunFinished, Succeeded: true}, EventRunComplete, true},
		{"run failed", scheduler.Event{Type: scheduler.EventRunFinished, Err: boom}, EventRunFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromSchedulerEvent(tt.in)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, got.Type)
			if tt.in.Err != nil {
				assert.Equal(t, "boom", got.Error)
			}
		})
	}
}

func TestDispatcherRunsHooksInEventOrder(t *testing.T) {
	all := &recordingHook{name: "all", events: EventTypes()}
	failing := &recordingHook{name: "failing", events: []EventType{EventRoleFailed}, err: errors.New("hook broke")}
	d := NewDispatcher(context.Background(), registryWith(t, all, failing), log.Discard())

	d.OnEvent(scheduler.Event{Type: scheduler.EventRunStarted, RunID: "r1", Attempt: 1})
	d.OnEvent(scheduler.Event{Type: scheduler.EventRoleStarted, RoleID: "api"})
	d.OnEvent(scheduler.Event{Type: scheduler.EventRoleDone, RoleID: "api", Artifacts: 3})
	d.OnEvent(scheduler.Event{Type: scheduler.EventRoleFailed, RoleID: "web", Err: errors.New("no files")})
	d.OnEvent(scheduler.Event{Type: scheduler.EventRunFinished, Err: errors.New("no files")})
	d.Close()
	d.Close()

	assert.Equal(t, []EventType{EventRunStart, EventRoleDone, EventRoleFailed, EventRunFailed}, all.types())
	assert.Equal(t, []EventType{EventRoleFailed}, failing.types())

	var failed []string
	for _, r := range d.Results() {
		if r.Err != nil {
			failed = append(failed, r.Hook)
		}
	}
	assert.Equal(t, []string{"failing"}, failed, "a failing hook is recorded, not propagated")
}

func TestWebhookHook(t *testing.T) {
	var (
		got    Event
		header string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Token")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h, err := NewWebhookHook(&HookConfig{
		Name:   "notify",
		Events: []EventType{EventRoleDone},
		Config: map[string]any{"url": srv.URL, "headers": map[string]any{"X-Token": "abc"}},
	})
	require.NoError(t, err)

	err = h.Execute(context.Background(), &Event{Type: EventRoleDone, RunID: "r1", RoleID: "api", Artifacts: 2})
	require.NoError(t, err)
	assert.Equal(t, "abc", header)
	assert.Equal(t, "api", got.RoleID)
	assert.Equal(t, 2, got.Artifacts)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	h, err = NewWebhookHook(&HookConfig{Name: "n", Config: map[string]any{"url": failing.URL}})
	require.NoError(t, err)
	assert.ErrorContains(t, h.Execute(context.Background(), &Event{Type: EventRunStart}), "status 502")
}

func TestScriptHook(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	script := filepath.Join(dir, "hook.sh")
	require.NoError(t, os.WriteFile(script, []byte(`echo "$FOUNDRY_EVENT $FOUNDRY_ROLE_ID $FOUNDRY_ARTIFACTS $1" > "$2"`+"\n"), 0600))

	h, err := NewScriptHook(&HookConfig{
		Name:   "record",
		Events: []EventType{EventRoleDone},
		Config: map[string]any{"script": script, "args": []any{"extra", out}},
	})
	require.NoError(t, err)

	require.NoError(t, h.Execute(context.Background(), &Event{Type: EventRoleDone, RoleID: "api", Artifacts: 4}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "on_role_done api 4 extra", strings.TrimSpace(string(data)))

	require.NoError(t, os.WriteFile(script, []byte("echo nope >&2\nexit 3\n"), 0600))
	err = h.Execute(context.Background(), &Event{Type: EventRoleDone})
	assert.ErrorContains(t, err, "nope")
}
