package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/tui"
)

// progressView shows a fresh TUI for every attempt of a run. A view exits on
// run-finished, so a retried run needs a new one.
type progressView struct {
	manifest *manifest.Manifest
	cancel   context.CancelFunc
	out      io.Writer

	mu      sync.Mutex
	current *tui.Adapter
}

func newProgressView(m *manifest.Manifest, cancel context.CancelFunc, out io.Writer) *progressView {
	return &progressView{manifest: m, cancel: cancel, out: out}
}

// OnEvent implements scheduler.Observer.
func (p *progressView) OnEvent(e scheduler.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Type == scheduler.EventRunStarted {
		p.current = tui.NewAdapter(p.manifest, p.cancel, p.out)
		p.current.Start()
	}
	if p.current == nil {
		return
	}
	p.current.OnEvent(e)
	if e.Type == scheduler.EventRunFinished {
		_ = p.current.Wait()
		p.current = nil
	}
}

// Stop closes a view left open, e.g. when the run never started.
func (p *progressView) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
	}
}

// lineObserver prints one line per event for non-interactive terminals.
type lineObserver struct {
	out io.Writer
}

// OnEvent implements scheduler.Observer.
func (l lineObserver) OnEvent(e scheduler.Event) {
	switch e.Type {
	case scheduler.EventRunStarted:
		fmt.Fprintf(l.out, "run %s attempt %d: %d roles\n", e.RunID, e.Attempt, e.Total)
	case scheduler.EventRoleStarted:
		fmt.Fprintf(l.out, "[%d/%d] %s: generating\n", e.Index, e.Total, e.RoleID)
	case scheduler.EventRoleDone:
		if e.Resumed {
			fmt.Fprintf(l.out, "[%d/%d] %s: already completed (%d files)\n", e.Index, e.Total, e.RoleID, e.Artifacts)
			return
		}
		fmt.Fprintf(l.out, "[%d/%d] %s: %d files in %s\n", e.Index, e.Total, e.RoleID, e.Artifacts, e.Duration.Round(time.Millisecond))
	case scheduler.EventRoleFailed:
		fmt.Fprintf(l.out, "[%d/%d] %s: failed: %v\n", e.Index, e.Total, e.RoleID, e.Err)
	}
}
