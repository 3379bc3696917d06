package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded run state",
	Long: `Status prints .foundry/state.json: the run id, its status and attempt,
the roles that completed and the log of every role invocation.

Examples:
  foundry status
  foundry status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw run state")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	store := checkpoint.NewStore(currentEnv.Workspace.StateDir())
	state, err := store.Load()
	if errors.Is(err, checkpoint.ErrNoState) {
		return ferrors.New(ferrors.ErrCodeRunNotFound, "no run recorded in "+currentEnv.Workspace.Root()).
			WithSuggestion("Start one with 'foundry run'")
	}
	if err != nil {
		return ferrors.NewFileUnmarshalError(store.Path(), "JSON", err)
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	printStatus(out, state)
	return nil
}

func printStatus(out io.Writer, s *checkpoint.RunState) {
	fmt.Fprintf(out, "run:       %s\n", s.RunID)
	fmt.Fprintf(out, "project:   %s\n", s.Project)
	fmt.Fprintf(out, "status:    %s (attempt %d)\n", s.Status, s.Attempt)
	fmt.Fprintf(out, "updated:   %s\n", s.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "completed: %d roles\n", len(s.Completed))

	if len(s.Tasks) == 0 {
		return
	}
	fmt.Fprintln(out, "\ntasks:")
	for _, t := range s.Tasks {
		line := fmt.Sprintf("  #%d %-12s %-6s %2d files  %s",
			t.Attempt, t.RoleID, t.Status, t.ArtifactCount, t.FinishedAt.Sub(t.StartedAt).Round(time.Millisecond))
		if t.Error != "" {
			line += "  " + ledger.Excerpt(t.Error, 80)
		}
		fmt.Fprintln(out, line)
	}
}
