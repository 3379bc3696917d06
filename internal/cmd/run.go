package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/config"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate every role of a manifest",
	Long: `Run every role of the manifest in dependency order, one at a time.

The first failing role stops the run; roles finished before it keep their
files and their place in .foundry/state.json. --resume continues the recorded
run and skips completed roles. With --attempts 2 a failed run is retried once
with stricter output instructions.

On success the declared outputs are copied from the role directories into the
workspace root. .foundry/ledger/SUMMARY.md is written in every case.

Examples:
  foundry run
  foundry run --manifest plans/todo.yaml --attempts 2
  foundry run --resume --yes --no-tui`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runManifest string
	runResume   bool
	runAttempts int
	runYes      bool
	runNoTUI    bool
)

func init() {
	runCmd.Flags().StringVarP(&runManifest, "manifest", "m", "", "manifest file (default <workspace>/manifest.yaml)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "continue the recorded run, skipping completed roles")
	runCmd.Flags().IntVar(&runAttempts, "attempts", 0, "run attempts, 1 or 2 (default from config)")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "do not ask for confirmation")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "print plain progress lines instead of the live view")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	env := currentEnv
	out := cmd.OutOrStdout()

	attempts := runAttempts
	if attempts == 0 {
		attempts = env.Config.RunAttempts
	}
	if attempts < 1 || attempts > config.MaxRunAttempts {
		return fmt.Errorf("invalid flag --attempts %d: must be 1 or %d", attempts, config.MaxRunAttempts)
	}

	m, err := loadManifest(env.manifestPath(runManifest))
	if err != nil {
		return err
	}

	gen, providerName, closeGen, err := env.generator()
	if err != nil {
		return err
	}
	defer closeGen()

	state, err := loadState(checkpoint.NewStore(env.Workspace.StateDir()), m, runResume, env.Logger)
	if err != nil {
		return err
	}

	interactive := tui.ShouldPrompt()
	if order, err := scheduler.Order(m); err == nil && env.Config.Confirm && !runYes && interactive {
		ok, err := tui.ConfirmRun(m, order, pendingRoles(order, state), providerName)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Run cancelled.")
			return nil
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	p := &pipeline{
		Workspace: env.Workspace,
		Config:    env.Config,
		Generator: gen,
		State:     state,
		Attempts:  attempts,
		Logger:    env.Logger,
	}
	var view *progressView
	if interactive && !runNoTUI {
		view = newProgressView(m, cancel, out)
		p.Observers = append(p.Observers, view)
	} else {
		p.Observers = append(p.Observers, lineObserver{out: out})
	}

	res, runErr := p.run(ctx, m)
	if view != nil {
		view.Stop()
	}
	if res == nil {
		return runErr
	}

	printRunResult(out, res)

	failed := ""
	if o, ok := res.Report.Failed(); ok {
		failed = o.RoleID
	}
	if runErr != nil {
		env.Logger.WithError(runErr).Error("run failed")
	}
	return classifyRunError(runErr, failed)
}

func printRunResult(out io.Writer, res *runResult) {
	fmt.Fprintln(out)
	fmt.Fprint(out, tui.RenderReport(res.Report, res.Counts))
	if res.Assembly != nil {
		fmt.Fprintf(out, "assembled %d files into the workspace root", len(res.Assembly.Copied))
		if n := len(res.Assembly.Missing); n > 0 {
			fmt.Fprintf(out, " (%d declared outputs missing)", n)
		}
		fmt.Fprintln(out)
	}
	if res.SummaryPath != "" {
		fmt.Fprintf(out, "summary: %s\n", res.SummaryPath)
	}
	if res.TracePath != "" {
		fmt.Fprintf(out, "trace:   %s\n", res.TracePath)
	}
}
