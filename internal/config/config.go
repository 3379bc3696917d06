// Package config loads the workspace configuration from
// .foundry/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/foundry/internal/hooks"
	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/worker"
)

// FileName is the configuration file inside the state directory.
const FileName = "config.yaml"

// MaxRunAttempts bounds run_attempts: the first attempt plus at most one
// strict retry.
const MaxRunAttempts = 2

// Config holds the settings of one workspace.
type Config struct {
	// Provider selects an entry of the providers file. Empty selects the
	// file's default.
	Provider string `yaml:"provider,omitempty"`

	// ProvidersFile is resolved relative to the state directory.
	ProvidersFile string `yaml:"providers_file"`

	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	ContextBudget int     `yaml:"context_budget"`

	// RunAttempts is 1 for a single attempt or 2 to retry a failed run once
	// with strict instructions, skipping completed roles.
	RunAttempts int `yaml:"run_attempts"`

	// Confirm asks before a run spends generation calls.
	Confirm bool `yaml:"confirm"`

	Log   LogConfig   `yaml:"log"`
	Trace TraceConfig `yaml:"trace"`

	// Hooks run scripts or webhooks on run lifecycle events.
	Hooks []hooks.HookConfig `yaml:"hooks,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TraceConfig configures the run event trace.
type TraceConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxFiles int  `yaml:"max_files"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ProvidersFile: "providers.yaml",
		Temperature:   0.2,
		MaxTokens:     8192,
		ContextBudget: worker.DefaultContextBudget,
		RunAttempts:   1,
		Confirm:       true,
		Log:           LogConfig{Level: "info", Format: "text"},
		Trace:         TraceConfig{Enabled: true, MaxFiles: 20},
	}
}

// Path returns the config file location inside stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// Load reads the configuration from path. Environment references such as
// ${FOUNDRY_PROVIDER} are expanded first; fields absent from the file keep
// their defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be non-negative"))
	}
	if c.ContextBudget < 0 {
		errs = append(errs, fmt.Errorf("context_budget must be non-negative"))
	}
	if c.RunAttempts < 1 || c.RunAttempts > MaxRunAttempts {
		errs = append(errs, fmt.Errorf("run_attempts must be 1 or %d, got %d", MaxRunAttempts, c.RunAttempts))
	}
	if c.ProvidersFile == "" {
		errs = append(errs, fmt.Errorf("providers_file is required"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Trace.MaxFiles < 0 {
		errs = append(errs, fmt.Errorf("trace.max_files must be non-negative"))
	}
	for i := range c.Hooks {
		if err := c.Hooks[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProvidersPath resolves ProvidersFile against stateDir.
func (c *Config) ProvidersPath(stateDir string) string {
	if filepath.IsAbs(c.ProvidersFile) {
		return c.ProvidersFile
	}
	return filepath.Join(stateDir, c.ProvidersFile)
}

// Save writes the configuration as YAML.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
