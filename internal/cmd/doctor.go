package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/health"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [manifest]",
	Short: "Check that the workspace is ready for a run",
	Long: `Doctor checks the selected provider, the state directory, the manifest
and the recorded run state without making a generation call.

Examples:
  foundry doctor
  foundry doctor plans/todo.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

var doctorJSON bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	env := currentEnv
	pc, err := env.providersConfig()
	if err != nil {
		return err
	}

	m := health.NewManager()
	m.AddChecker(health.NewProviderChecker(pc, env.Config.Provider))
	m.AddChecker(health.NewWorkspaceChecker(env.Workspace.StateDir()))
	m.AddChecker(health.NewManifestChecker(env.manifestPath(firstArg(args))))
	m.AddChecker(health.NewRunStateChecker(checkpoint.NewStore(env.Workspace.StateDir())))
	report := m.Check(cmd.Context())

	for _, r := range report.Results {
		env.Logger.Debug("health check", "check", r.Name, "status", r.Status.String(), "latency", r.Latency)
	}

	out := cmd.OutOrStdout()
	if doctorJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		printHealthReport(out, report)
	}

	if report.Status == health.StatusUnhealthy {
		return ferrors.New(ferrors.ErrCodeWorkspaceUnhealthy, "workspace is not ready for a run").
			WithSuggestion("Fix the checks marked ✗ above")
	}
	return nil
}

func printHealthReport(out io.Writer, report *health.Report) {
	for _, r := range report.Results {
		mark := "✓"
		switch r.Status {
		case health.StatusDegraded:
			mark = "!"
		case health.StatusUnhealthy:
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %-10s %s (%s)\n", mark, r.Name, r.Message, r.Latency.Round(time.Millisecond))
		if r.Suggestion != "" && r.Status != health.StatusHealthy {
			fmt.Fprintf(out, "  → %s\n", r.Suggestion)
		}
	}
	fmt.Fprintf(out, "\n%s\n", report.Status)
}
