package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/config"
	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/provider"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default configuration into the workspace",
	Long: `Init creates .foundry/config.yaml and .foundry/providers.yaml with the
default settings. API keys are written as environment references such as
${ANTHROPIC_API_KEY}, never as values.

Examples:
  foundry init
  foundry init --workspace ./todo --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	stateDir := currentEnv.Workspace.StateDir()
	cfg := config.Default()
	cfgPath := config.Path(stateDir)
	providersPath := cfg.ProvidersPath(stateDir)

	for _, p := range []string{cfgPath, providersPath} {
		if err := checkOverwrite(p, initForce); err != nil {
			return err
		}
	}

	if err := config.Save(cfg, cfgPath); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeFileWriteFailed, "cannot write "+cfgPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(providersPath), 0750); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeDirectoryFailed, "cannot create "+filepath.Dir(providersPath), err)
	}
	if err := provider.SaveProvidersConfig(starterProviders(), providersPath); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeFileWriteFailed, "cannot write "+providersPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ wrote %s\n", cfgPath)
	fmt.Fprintf(out, "✓ wrote %s\n", providersPath)
	return nil
}

// starterProviders is the default provider set with credentials replaced by
// environment references, plus a disabled fixture provider for dry runs.
func starterProviders() *provider.ProvidersConfig {
	pc := provider.DefaultProvidersConfig()
	for i := range pc.Providers {
		p := &pc.Providers[i]
		if _, ok := p.Config["api_key"]; ok {
			p.Config["api_key"] = "${" + strings.ToUpper(p.Name) + "_API_KEY}"
		}
	}
	pc.Providers = append(pc.Providers, provider.ProviderConfig{
		Name:    "fixtures",
		Type:    provider.ProviderTypeFixture,
		Enabled: false,
		Config:  map[string]interface{}{"dir": "fixtures"},
	})
	return pc
}
