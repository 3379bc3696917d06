package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// ProviderChecker verifies that the provider a run would use can be built
// and is available. It makes no generation call.
type ProviderChecker struct {
	config *provider.ProvidersConfig
	name   string
}

// NewProviderChecker checks the provider Select(name) picks from config.
func NewProviderChecker(config *provider.ProvidersConfig, name string) *ProviderChecker {
	return &ProviderChecker{config: config, name: name}
}

func (c *ProviderChecker) Name() string {
	return "provider"
}

func (c *ProviderChecker) Check(ctx context.Context) *Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy(err.Error())
	}
	selected, err := c.config.Select(c.name)
	if err != nil {
		return Unhealthy(err.Error()).
			WithSuggestion("Run 'foundry init' and enable a provider in .foundry/providers.yaml")
	}

	if selected.Type == provider.ProviderTypeAPI {
		if key, _ := selected.Config["api_key"].(string); key == "" {
			return Unhealthy(fmt.Sprintf("provider %s has no API key", selected.Name)).
				WithDetail("provider", selected.Name).
				WithSuggestion(fmt.Sprintf("Export %s_API_KEY", strings.ToUpper(selected.Name)))
		}
	}

	registry := provider.NewRegistry()
	defer func() { _ = registry.CloseAll() }()

	// Every enabled provider is built; the ones that fail are reported, not
	// fatal.
	broken := make(map[string]string)
	for i := range c.config.Providers {
		pc := &c.config.Providers[i]
		if pc.Name == selected.Name {
			continue
		}
		if err := registry.LoadFromConfig(pc); err != nil {
			broken[pc.Name] = err.Error()
		}
	}
	if err := registry.LoadFromConfig(selected); err != nil {
		return Unhealthy(err.Error()).WithDetail("provider", selected.Name)
	}
	client, err := registry.Get(selected.Name)
	if err != nil {
		return Unhealthy(err.Error()).WithDetail("provider", selected.Name)
	}

	info := client.GetInfo()
	if !client.IsAvailable() {
		return Unhealthy(fmt.Sprintf("provider %s is not available", selected.Name)).
			WithDetail("provider", selected.Name).
			WithDetail("type", string(info.Type))
	}
	result := Healthy(fmt.Sprintf("%s (%s) is ready", selected.Name, info.Type)).
		WithDetail("provider", selected.Name).
		WithDetail("type", string(info.Type)).
		WithDetail("version", info.Version).
		WithDetail("loaded", registry.List())
	if len(broken) > 0 {
		result.WithDetail("broken", broken)
	}
	return result
}

// WorkspaceChecker verifies that the state directory can be created and
// written.
type WorkspaceChecker struct {
	stateDir string
}

func NewWorkspaceChecker(stateDir string) *WorkspaceChecker {
	return &WorkspaceChecker{stateDir: stateDir}
}

func (c *WorkspaceChecker) Name() string {
	return "workspace"
}

func (c *WorkspaceChecker) Check(_ context.Context) *Result {
	if err := os.MkdirAll(c.stateDir, 0750); err != nil {
		return Unhealthy(fmt.Sprintf("cannot create %s: %v", c.stateDir, err))
	}
	f, err := os.CreateTemp(c.stateDir, ".probe-*")
	if err != nil {
		return Unhealthy(fmt.Sprintf("%s is not writable: %v", c.stateDir, err)).
			WithSuggestion("Check the permissions of the workspace directory")
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Healthy(c.stateDir + " is writable")
}

// ManifestChecker verifies that the manifest loads, validates and orders.
// A missing manifest is degraded: plan can still write one.
type ManifestChecker struct {
	path string
}

func NewManifestChecker(path string) *ManifestChecker {
	return &ManifestChecker{path: path}
}

func (c *ManifestChecker) Name() string {
	return "manifest"
}

func (c *ManifestChecker) Check(_ context.Context) *Result {
	if _, err := os.Stat(c.path); errors.Is(err, fs.ErrNotExist) {
		return Degraded("no manifest at " + c.path).
			WithSuggestion("Write one by hand or run 'foundry plan'")
	}

	m, err := manifest.Load(c.path)
	if err != nil {
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			issues := make([]string, len(verr.Issues))
			for i, issue := range verr.Issues {
				issues[i] = issue.String()
			}
			return Unhealthy(fmt.Sprintf("%d manifest issues", len(verr.Issues))).
				WithDetail("issues", issues).
				WithSuggestion("Run 'foundry validate' for details")
		}
		return Unhealthy(err.Error())
	}

	order, err := scheduler.Order(m)
	if err != nil {
		return Unhealthy(err.Error())
	}
	return Healthy(fmt.Sprintf("project %s: %d roles", m.ProjectName, len(order))).
		WithDetail("order", order)
}

// RunStateChecker reports on the recorded run, if any.
type RunStateChecker struct {
	store *checkpoint.Store
}

func NewRunStateChecker(store *checkpoint.Store) *RunStateChecker {
	return &RunStateChecker{store: store}
}

func (c *RunStateChecker) Name() string {
	return "run-state"
}

func (c *RunStateChecker) Check(_ context.Context) *Result {
	state, err := c.store.Load()
	if errors.Is(err, checkpoint.ErrNoState) {
		return Healthy("no run recorded")
	}
	if err != nil {
		return Unhealthy(err.Error()).
			WithSuggestion("Remove " + c.store.Path() + " to start a fresh run")
	}

	r := NewResult(StatusHealthy, fmt.Sprintf("run %s %s (attempt %d, %d roles completed)",
		state.RunID, state.Status, state.Attempt, len(state.Completed))).
		WithDetail("run_id", state.RunID).
		WithDetail("completed", state.Completed)
	switch state.Status {
	case checkpoint.StatusFailed, checkpoint.StatusRunning:
		r.Status = StatusDegraded
		r.Suggestion = "Resume with 'foundry run --resume'"
	}
	return r
}
