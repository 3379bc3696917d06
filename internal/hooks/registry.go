package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Factory builds a hook from its configuration.
type Factory func(config *HookConfig) (Hook, error)

type registered struct {
	hook        Hook
	timeout     time.Duration
	failureMode string
}

// Registry holds the enabled hooks, indexed by event.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	byEvent   map[EventType][]registered
	names     map[string]bool

	maxConcurrency int
}

// NewRegistry returns a registry with the built-in hook types.
func NewRegistry() *Registry {
	r := &Registry{
		factories:      make(map[string]Factory),
		byEvent:        make(map[EventType][]registered),
		names:          make(map[string]bool),
		maxConcurrency: 4,
	}
	RegisterBuiltins(r)
	return r
}

// RegisterFactory adds or replaces a hook type.
func (r *Registry) RegisterFactory(hookType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[hookType] = f
}

// Load validates and registers every enabled hook in configs.
func (r *Registry) Load(configs []HookConfig) error {
	for i := range configs {
		if err := r.RegisterFromConfig(&configs[i]); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFromConfig builds and registers one hook. Disabled hooks are
// skipped.
func (r *Registry) RegisterFromConfig(config *HookConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if !config.Enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[config.Type]
	if !ok {
		return fmt.Errorf("hook %s: unknown type %q", config.Name, config.Type)
	}
	if r.names[config.Name] {
		return fmt.Errorf("hook %s is registered twice", config.Name)
	}
	hook, err := factory(config)
	if err != nil {
		return fmt.Errorf("hook %s: %w", config.Name, err)
	}

	mode := config.FailureMode
	if mode == "" {
		mode = FailureWarn
	}
	entry := registered{hook: hook, timeout: config.timeout(), failureMode: mode}
	for _, e := range hook.Events() {
		r.byEvent[e] = append(r.byEvent[e], entry)
	}
	r.names[config.Name] = true
	return nil
}

// Count returns the number of registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// HasHooksFor reports whether any hook subscribes to e.
func (r *Registry) HasHooksFor(e EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEvent[e]) > 0
}

// Trigger runs the hooks subscribed to event.Type concurrently, each under
// its own timeout. Results follow registration order.
func (r *Registry) Trigger(ctx context.Context, event *Event) []Result {
	r.mu.RLock()
	entries := append([]registered(nil), r.byEvent[event.Type]...)
	limit := r.maxConcurrency
	r.mu.RUnlock()

	if len(entries) == 0 {
		return nil
	}

	results := make([]Result, len(entries))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry registered) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			hookCtx, cancel := context.WithTimeout(ctx, entry.timeout)
			defer cancel()

			start := time.Now()
			err := entry.hook.Execute(hookCtx, event)
			results[i] = Result{Hook: entry.hook.Name(), Event: event.Type, Err: err, Duration: time.Since(start)}
		}(i, entry)
	}
	wg.Wait()
	return results
}

func (r *Registry) failureMode(name string, e EventType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.byEvent[e] {
		if entry.hook.Name() == name {
			return entry.failureMode
		}
	}
	return FailureWarn
}
