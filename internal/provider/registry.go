package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the clients built from the enabled entries of
// providers.yaml.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderClient
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]ProviderClient)}
}

// Register adds a client under name.
func (r *Registry) Register(name string, provider ProviderClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return provider, nil
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes all registered providers
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, provider := range r.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %s: %w", name, err))
		}
	}

	r.providers = make(map[string]ProviderClient)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %v", errs)
	}
	return nil
}

// LoadFromConfig creates and registers a provider. Disabled providers are
// skipped.
func (r *Registry) LoadFromConfig(config *ProviderConfig) error {
	if config.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if !config.Enabled {
		return nil
	}

	provider, err := NewProvider(config)
	if err != nil {
		return fmt.Errorf("failed to create provider %s: %w", config.Name, err)
	}
	return r.Register(config.Name, provider)
}

// NewProvider builds the client described by config.
func NewProvider(config *ProviderConfig) (ProviderClient, error) {
	switch config.Type {
	case ProviderTypeCLI:
		path := config.stringValue("path", "")
		if path == "" {
			return nil, fmt.Errorf("executable path required for CLI provider %s", config.Name)
		}
		return NewExecutableProvider(path, config)

	case ProviderTypeFixture:
		dir := config.stringValue("dir", "")
		if dir == "" {
			return nil, fmt.Errorf("fixture directory required for provider %s", config.Name)
		}
		return NewFixtureProvider(dir, config)

	case ProviderTypeAPI:
		switch config.stringValue("api", config.Name) {
		case "openai":
			return NewOpenAIProvider(config)
		case "anthropic":
			return NewAnthropicProvider(config)
		default:
			return nil, fmt.Errorf("unknown API provider: %s", config.Name)
		}

	default:
		return nil, fmt.Errorf("unknown provider type: %s", config.Type)
	}
}
