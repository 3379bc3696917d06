package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/planner"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/tui"
)

// PlanRawFile keeps the last planner response that could not be used.
const PlanRawFile = "plan_response.txt"

var planCmd = &cobra.Command{
	Use:   "plan [prompt]",
	Short: "Ask the generation service for a manifest",
	Long: `Plan sends a project description to the configured provider and saves
the manifest it answers with. The manifest is validated before it is written;
a response that is not a valid manifest is kept in .foundry/plan_response.txt.

Without a prompt argument plan asks for one interactively.

Examples:
  foundry plan "A todo app with a Go API and a React frontend"
  foundry plan --output plans/todo.yaml --force`,
	Args: cobra.ArbitraryArgs,
	RunE: runPlan,
}

var (
	planOutput string
	planForce  bool
)

func init() {
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "where to write the manifest (default <workspace>/manifest.yaml)")
	planCmd.Flags().BoolVarP(&planForce, "force", "f", false, "overwrite an existing manifest")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	env := currentEnv
	out := env.manifestPath(planOutput)
	if err := checkOverwrite(out, planForce); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && tui.ShouldPrompt() {
		var err error
		prompt, err = tui.PromptForString(tui.Prompt{
			Message:     "Describe the project to generate",
			Placeholder: "A todo app with a Go API and a React frontend",
			Required:    true,
		})
		if err != nil {
			return err
		}
	}
	if prompt == "" {
		return fmt.Errorf("accepts 1 arg(s) when not interactive: %w", planner.ErrEmptyPrompt)
	}

	gen, _, closeGen, err := env.generator()
	if err != nil {
		return err
	}
	defer closeGen()

	m, err := planner.New(gen, planner.DefaultTemperature, env.Logger).Plan(cmd.Context(), prompt)
	if err != nil {
		return planFailure(env.Workspace.StateDir(), err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeDirectoryFailed, "cannot create manifest directory", err)
	}
	if err := manifest.Save(m, out); err != nil {
		return ferrors.Wrap(ferrors.ErrCodeFileWriteFailed, "cannot save manifest", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ manifest for %s written to %s\n\n", m.ProjectName, out)
	if order, err := scheduler.Order(m); err == nil {
		printOrder(w, m, order)
	}
	return nil
}

// checkOverwrite refuses to replace an existing file unless forced.
func checkOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ferrors.Wrap(ferrors.ErrCodeFileReadFailed, "cannot inspect "+path, err)
	}
	return fmt.Errorf("%s already exists; pass --force to overwrite", path)
}

// planFailure keeps an unusable planner response on disk and converts the
// error.
func planFailure(stateDir string, err error) error {
	var planErr *planner.PlanError
	if !errors.As(err, &planErr) {
		return ferrors.Wrap(ferrors.ErrCodeGenerationFailed, "planning request failed", err).
			WithSuggestion("Check provider connectivity and credentials")
	}

	fe := ferrors.NewManifestInvalidError(err)
	rawPath := filepath.Join(stateDir, PlanRawFile)
	if err := writePlanRaw(rawPath, planErr.Raw); err == nil {
		fe.WithSuggestion("Inspect the planner response in " + rawPath)
	}
	return fe.WithSuggestion("Rephrase the prompt or write the manifest by hand")
}

func writePlanRaw(path, raw string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(raw), 0600)
}
