package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/config"
	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/version"
	"github.com/felixgeelhaar/foundry/internal/workspace"
)

// DefaultManifest is the manifest file looked up in the workspace when
// --manifest is not given.
const DefaultManifest = "manifest.yaml"

// environment is what every command works against: the workspace, its
// configuration and the process logger.
type environment struct {
	Workspace *workspace.Workspace
	Config    *config.Config
	Logger    *log.Logger
}

// envOptions are the persistent flag values that shape an environment.
type envOptions struct {
	Workspace  string
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Provider   string
	LogOutput  io.Writer
}

var currentEnv *environment

func prepareEnvironment(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment(envOptions{
		Workspace:  flagWorkspace,
		ConfigPath: flagConfig,
		LogLevel:   flagLogLevel,
		LogFormat:  flagLogFormat,
		Provider:   flagProvider,
		LogOutput:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	log.SetDefaultLogger(env.Logger)
	currentEnv = env
	return nil
}

func newEnvironment(opts envOptions) (*environment, error) {
	dir := opts.Workspace
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", dir, err)
	}
	ws := workspace.New(abs)

	path := opts.ConfigPath
	if path == "" {
		path = config.Path(ws.StateDir())
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, ferrors.NewFileUnmarshalError(path, "YAML", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	if opts.Provider != "" {
		cfg.Provider = opts.Provider
	}

	logCfg, err := log.FromStrings(cfg.Log.Level, cfg.Log.Format, opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("invalid log flags: %w", err)
	}
	logCfg.ServiceVersion = version.GetInfo().Short()

	return &environment{
		Workspace: ws,
		Config:    cfg,
		Logger:    log.New(logCfg),
	}, nil
}

// manifestPath resolves --manifest against the workspace.
func (e *environment) manifestPath(flag string) string {
	if flag == "" {
		return filepath.Join(e.Workspace.Root(), DefaultManifest)
	}
	if filepath.IsAbs(flag) {
		return flag
	}
	return filepath.Join(e.Workspace.Root(), flag)
}

// loadManifest loads and validates a manifest, converting failures into
// coded errors.
func loadManifest(path string) (*manifest.Manifest, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, ferrors.NewManifestNotFoundError(path)
	}
	m, err := manifest.Load(path)
	if err != nil {
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			return nil, ferrors.NewManifestInvalidError(verr)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeManifestUnmarshal, "cannot read manifest "+path, err)
	}
	return m, nil
}

// providersConfig reads providers.yaml, falling back to the built-in
// defaults when the file does not exist.
func (e *environment) providersConfig() (*provider.ProvidersConfig, error) {
	path := e.Config.ProvidersPath(e.Workspace.StateDir())
	pc, err := provider.LoadProvidersConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		e.Logger.Debug("no providers file, using defaults", "path", path)
		return provider.DefaultProvidersConfig(), nil
	}
	if err != nil {
		return nil, ferrors.NewFileUnmarshalError(path, "YAML", err)
	}
	return pc, nil
}

// generator builds the generation service selected by the configuration.
// The returned close function releases the provider client.
func (e *environment) generator() (provider.Generator, string, func(), error) {
	pc, err := e.providersConfig()
	if err != nil {
		return nil, "", nil, err
	}
	selected, err := pc.Select(e.Config.Provider)
	if err != nil {
		return nil, "", nil, ferrors.NewProviderNotFoundError(e.Config.Provider, err)
	}
	if selected.Type == provider.ProviderTypeAPI {
		if key, _ := selected.Config["api_key"].(string); key == "" {
			return nil, "", nil, ferrors.NewProviderAuthError(selected.Name,
				fmt.Errorf("provider %s has no API key", selected.Name))
		}
	}
	client, err := provider.NewProvider(selected)
	if err != nil {
		return nil, "", nil, ferrors.NewProviderNotFoundError(selected.Name, err)
	}
	if !client.IsAvailable() {
		_ = client.Close()
		return nil, "", nil, ferrors.NewProviderNotFoundError(selected.Name,
			fmt.Errorf("provider %s is not available", selected.Name))
	}

	e.Logger.Debug("provider selected", "provider", selected.Name, "type", string(selected.Type))
	closeFn := func() {
		if err := client.Close(); err != nil {
			e.Logger.Warn("failed to close provider", "provider", selected.Name, "error", err)
		}
	}
	return provider.NewClientGenerator(client, e.Config.MaxTokens), selected.Name, closeFn, nil
}
