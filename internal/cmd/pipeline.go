package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/config"
	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/hooks"
	"github.com/felixgeelhaar/foundry/internal/ledger"
	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/trace"
	"github.com/felixgeelhaar/foundry/internal/worker"
	"github.com/felixgeelhaar/foundry/internal/workspace"
)

// pipeline is one `foundry run`: scheduling with an optional strict retry,
// assembly of the project tree and the closing summary.
type pipeline struct {
	Workspace *workspace.Workspace
	Config    *config.Config
	Generator provider.Generator

	// State resumes an earlier run; nil starts a fresh one.
	State *checkpoint.RunState

	// Attempts is the number of scheduler runs allowed, 1 or 2.
	Attempts int

	Observers []scheduler.Observer
	Logger    *log.Logger
}

// runResult collects what a pipeline left behind.
type runResult struct {
	Report      *scheduler.Report
	Assembly    *workspace.Assembly
	SummaryPath string
	TracePath   string
	Counts      map[ledger.Stream]int
}

// run executes m. The summary is written whatever the outcome; the returned
// error is the scheduler's, unconverted.
func (p *pipeline) run(ctx context.Context, m *manifest.Manifest) (*runResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = log.Discard()
	}

	led, err := ledger.Open(p.Workspace.LedgerDir())
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeDirectoryFailed, "cannot open run ledger", err)
	}
	store := checkpoint.NewStore(p.Workspace.StateDir())

	state := p.State
	if state == nil {
		state = checkpoint.NewRunState(m.ProjectName)
	}
	logger = logger.With("run_id", state.RunID)

	tracer, err := trace.NewLogger(trace.Config{
		RunID:    state.RunID,
		Dir:      p.Workspace.TraceDir(),
		MaxFiles: p.Config.Trace.MaxFiles,
		Enabled:  p.Config.Trace.Enabled,
	}, logger)
	tracePath := ""
	switch {
	case err != nil:
		logger.Warn("run trace disabled", "error", err)
		tracer, _ = trace.NewLogger(trace.Config{RunID: state.RunID}, logger)
	case p.Config.Trace.Enabled:
		tracePath = tracer.Path()
	}
	defer func() {
		if err := tracer.Close(); err != nil {
			logger.Warn("failed to close run trace", "error", err)
		}
	}()

	dispatcher, err := p.hookDispatcher(ctx, logger)
	if err != nil {
		return nil, err
	}
	if dispatcher != nil {
		defer dispatcher.Close()
	}

	inv := worker.New(p.Generator, p.Workspace, worker.Options{
		Temperature:   p.Config.Temperature,
		ContextBudget: p.Config.ContextBudget,
	}, logger)

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	if attempts > config.MaxRunAttempts {
		attempts = config.MaxRunAttempts
	}

	res := &runResult{TracePath: tracePath}
	var runErr error
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			state.BeginAttempt()
			inv = inv.Strict(true)
			journal(logger, led.RecordDecision(ledger.Orchestrator,
				fmt.Sprintf("Retry run as attempt %d with strict output instructions", state.Attempt),
				fmt.Sprintf("Previous attempt failed: %s. Completed roles are skipped.",
					ledger.Excerpt(runErr.Error(), ledger.ExcerptLimit))))
		}

		opts := []scheduler.Option{
			scheduler.WithJournal(led),
			scheduler.WithStateStore(store),
			scheduler.WithState(state),
			scheduler.WithObserver(tracer),
			scheduler.WithLogger(logger),
		}
		if dispatcher != nil {
			opts = append(opts, scheduler.WithObserver(dispatcher))
		}
		for _, o := range p.Observers {
			opts = append(opts, scheduler.WithObserver(o))
		}
		res.Report, runErr = scheduler.New(inv, opts...).Run(ctx, m)

		if runErr == nil || attempt >= attempts || !retryable(runErr, res.Report) {
			break
		}
		logger.Warn("run failed, retrying with strict instructions", "attempt", state.Attempt, "error", runErr)
	}

	if runErr == nil {
		res.Assembly, runErr = p.assemble(m, state, led, logger)
	}

	path, err := led.WriteSummary(res.Report.LedgerSummary())
	if err != nil {
		logger.Warn("failed to write run summary", "error", err)
	} else {
		res.SummaryPath = path
	}
	res.Counts = led.Counts()
	return res, runErr
}

// hookDispatcher builds the configured run hooks; nil when none are
// enabled.
func (p *pipeline) hookDispatcher(ctx context.Context, logger *log.Logger) (*hooks.Dispatcher, error) {
	if len(p.Config.Hooks) == 0 {
		return nil, nil
	}
	registry := hooks.NewRegistry()
	if err := registry.Load(p.Config.Hooks); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeHookInvalid, "cannot set up run hooks", err).
			WithSuggestion("Check the hooks section of .foundry/config.yaml")
	}
	if registry.Count() == 0 {
		return nil, nil
	}
	logger.Debug("run hooks registered", "count", registry.Count())
	return hooks.NewDispatcher(ctx, registry, logger), nil
}

func (p *pipeline) assemble(m *manifest.Manifest, state *checkpoint.RunState, led *ledger.Ledger, logger *log.Logger) (*workspace.Assembly, error) {
	asm, err := p.Workspace.Assemble(m, state.Checksums())
	if err != nil {
		journal(logger, led.RecordError(ledger.Orchestrator, fmt.Sprintf("assembly failed: %v", err)))
		return asm, ferrors.Wrap(ferrors.ErrCodeFileWriteFailed, "cannot assemble project tree", err)
	}
	for _, missing := range asm.Missing {
		logger.Warn("declared output not assembled", "path", missing)
	}
	logger.Info("project assembled", "copied", len(asm.Copied), "missing", len(asm.Missing))
	return asm, nil
}

// loadState returns the state a run starts from. Without resume a fresh run
// begins; with resume the recorded run continues as its next attempt.
func loadState(store *checkpoint.Store, m *manifest.Manifest, resume bool, logger *log.Logger) (*checkpoint.RunState, error) {
	if !resume {
		return checkpoint.NewRunState(m.ProjectName), nil
	}
	state, err := store.Load()
	if errors.Is(err, checkpoint.ErrNoState) {
		logger.Warn("nothing to resume, starting a fresh run")
		return checkpoint.NewRunState(m.ProjectName), nil
	}
	if err != nil {
		return nil, ferrors.NewFileUnmarshalError(store.Path(), "JSON", err)
	}
	if state.Project != m.ProjectName {
		return nil, ferrors.New(ferrors.ErrCodeRunNotFound,
			fmt.Sprintf("recorded run %s belongs to project %q, not %q", state.RunID, state.Project, m.ProjectName)).
			WithSuggestion("Run without --resume to start a fresh run")
	}
	state.BeginAttempt()
	return state, nil
}

// pendingRoles counts the roles of order a run would still invoke.
func pendingRoles(order []string, state *checkpoint.RunState) int {
	n := 0
	for _, id := range order {
		if state == nil || !state.IsCompleted(id) {
			n++
		}
	}
	return n
}

func journal(logger *log.Logger, err error) {
	if err != nil {
		logger.Warn("ledger write failed", "error", err)
	}
}
