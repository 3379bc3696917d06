package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	flagWorkspace string
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagProvider  string
)

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Generate a project from a manifest of LLM worker roles",
	Long: `foundry turns a manifest of worker roles into a project tree.

Each role owns a set of output files and may depend on other roles. Roles run
one at a time in dependency order; every role's response is parsed for file
segments and decisions, written to the workspace and recorded in the run
ledger under .foundry/ledger. When every role succeeds the declared outputs
are assembled into the workspace root.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepareEnvironment,
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagWorkspace, "workspace", "w", ".", "workspace directory")
	pf.StringVar(&flagConfig, "config", "", "config file (default <workspace>/.foundry/config.yaml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json (overrides config)")
	pf.StringVar(&flagProvider, "provider", "", "provider from providers.yaml (overrides config)")
}
