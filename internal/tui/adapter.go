package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// Adapter runs the progress view on its own goroutine and forwards
// scheduler events to it. It implements scheduler.Observer.
type Adapter struct {
	program *tea.Program
	cancel  context.CancelFunc
	done    chan struct{}
	final   Model
	err     error
}

// NewAdapter prepares a progress view for m. cancel is called when the user
// interrupts from the view; it may be nil.
func NewAdapter(m *manifest.Manifest, cancel context.CancelFunc, output io.Writer) *Adapter {
	opts := []tea.ProgramOption{}
	if output != nil {
		opts = append(opts, tea.WithOutput(output))
	}
	return &Adapter{
		program: tea.NewProgram(NewModel(m), opts...),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (a *Adapter) Start() {
	go func() {
		defer close(a.done)
		final, err := a.program.Run()
		if err != nil {
			a.err = fmt.Errorf("progress view failed: %w", err)
		}
		if model, ok := final.(Model); ok {
			a.final = model
			if model.Interrupted() && a.cancel != nil {
				a.cancel()
			}
		}
	}()
}

// OnEvent forwards an event to the view. run-finished makes the view exit.
func (a *Adapter) OnEvent(e scheduler.Event) {
	a.program.Send(EventMsg(e))
}

// Wait blocks until the view has exited and returns its error, if any.
func (a *Adapter) Wait() error {
	<-a.done
	return a.err
}

// Stop exits the view without waiting for run-finished.
func (a *Adapter) Stop() {
	a.program.Quit()
	<-a.done
}

// Interrupted reports whether the user interrupted the run from the view.
// Only meaningful after Wait or Stop.
func (a *Adapter) Interrupted() bool {
	return a.final.Interrupted()
}
