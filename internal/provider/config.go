package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProvidersConfig represents the complete providers.yaml configuration
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`

	// Default names the provider used when none is requested; otherwise the
	// first enabled provider wins.
	Default string `yaml:"default,omitempty"`
}

// LoadProvidersConfig loads provider configuration from a YAML file.
// Environment variables in the file are expanded before parsing.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config ProvidersConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := ValidateProvidersConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ValidateProvidersConfig validates a providers configuration
func ValidateProvidersConfig(config *ProvidersConfig) error {
	if len(config.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	hasEnabled := false
	for i := range config.Providers {
		p := &config.Providers[i]
		if err := ValidateProviderConfig(p); err != nil {
			return fmt.Errorf("provider %d (%s): %w", i, p.Name, err)
		}
		hasEnabled = hasEnabled || p.Enabled
	}
	if !hasEnabled {
		return fmt.Errorf("at least one provider must be enabled")
	}

	if config.Default != "" {
		if _, err := config.Find(config.Default); err != nil {
			return err
		}
	}
	return nil
}

// ValidateProviderConfig validates a single provider configuration
func ValidateProviderConfig(config *ProviderConfig) error {
	if config.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch config.Type {
	case ProviderTypeAPI:
	case ProviderTypeCLI:
		if config.stringValue("path", "") == "" {
			return fmt.Errorf("cli providers require 'path' in config")
		}
	case ProviderTypeFixture:
		if config.stringValue("dir", "") == "" {
			return fmt.Errorf("fixture providers require 'dir' in config")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("invalid provider type: %s (must be api, cli, or fixture)", config.Type)
	}
	return nil
}

// Find returns the enabled provider called name.
func (c *ProvidersConfig) Find(name string) (*ProviderConfig, error) {
	for i := range c.Providers {
		if c.Providers[i].Name != name {
			continue
		}
		if !c.Providers[i].Enabled {
			return nil, fmt.Errorf("provider %s is disabled", name)
		}
		return &c.Providers[i], nil
	}
	return nil, fmt.Errorf("provider %s is not configured", name)
}

// Select picks the provider to use: name if given, then Default, then the
// first enabled entry.
func (c *ProvidersConfig) Select(name string) (*ProviderConfig, error) {
	if name != "" {
		return c.Find(name)
	}
	if c.Default != "" {
		return c.Find(c.Default)
	}
	for i := range c.Providers {
		if c.Providers[i].Enabled {
			return &c.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("no enabled provider")
}

// SaveProvidersConfig saves provider configuration to a YAML file
func SaveProvidersConfig(config *ProvidersConfig, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// DefaultProvidersConfig is used when no providers.yaml exists: Anthropic,
// keyed from the environment.
func DefaultProvidersConfig() *ProvidersConfig {
	return &ProvidersConfig{
		Default: "anthropic",
		Providers: []ProviderConfig{
			{
				Name:    "anthropic",
				Type:    ProviderTypeAPI,
				Enabled: true,
				Config: map[string]interface{}{
					"api_key":    os.Getenv("ANTHROPIC_API_KEY"),
					"max_tokens": 8192,
				},
			},
			{
				Name:    "openai",
				Type:    ProviderTypeAPI,
				Enabled: false,
				Config: map[string]interface{}{
					"api_key": os.Getenv("OPENAI_API_KEY"),
				},
			},
		},
	}
}
