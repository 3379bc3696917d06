package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// roleRow is the display state of one role.
type roleRow struct {
	ID        string
	Name      string
	State     scheduler.RoleState
	Artifacts int
	Resumed   bool
	Duration  time.Duration
	Err       string
}

// Model is the live run progress view. It only reflects scheduler events
// and never drives the run.
type Model struct {
	project string
	roles   []roleRow
	current int
	attempt int

	spinner spinner.Model
	keys    keyMap

	startTime   time.Time
	finished    bool
	succeeded   bool
	interrupted bool
	lastError   string
	showErrors  bool

	width  int
	height int

	styles Styles
}

type keyMap struct {
	Quit    key.Binding
	Details key.Binding
}

var defaultKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "interrupt"),
	),
	Details: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "toggle error details"),
	),
}

// Styles contains lipgloss styles for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
	Key     lipgloss.Style
}

// NewModel creates a view listing m's roles in declaration order until the
// run announces its execution order.
func NewModel(m *manifest.Manifest) Model {
	roles := make([]roleRow, len(m.Roles))
	for i, r := range m.Roles {
		roles[i] = roleRow{ID: r.ID, Name: r.DisplayName(), State: scheduler.StatePending}
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	styles := DefaultStyles()
	sp.Style = styles.Status

	return Model{
		project:   m.ProjectName,
		roles:     roles,
		current:   -1,
		spinner:   sp,
		keys:      defaultKeys,
		startTime: time.Now(),
		styles:    styles,
	}
}

// DefaultStyles returns the default lipgloss styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if !m.finished {
				m.interrupted = true
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Details):
			m.showErrors = !m.showErrors
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.apply(scheduler.Event(msg))
		if m.finished {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// EventMsg carries a scheduler event into the program.
type EventMsg scheduler.Event

func (m *Model) apply(e scheduler.Event) {
	if e.Attempt > 0 {
		m.attempt = e.Attempt
	}

	switch e.Type {
	case scheduler.EventRunStarted:
		m.reorder(e.Order)

	case scheduler.EventRoleStarted:
		if i := m.index(e.RoleID); i >= 0 {
			m.current = i
			m.roles[i].State = scheduler.StateRunning
		}

	case scheduler.EventRoleDone:
		if i := m.index(e.RoleID); i >= 0 {
			m.roles[i].State = scheduler.StateDone
			m.roles[i].Artifacts = e.Artifacts
			m.roles[i].Resumed = e.Resumed
			m.roles[i].Duration = e.Duration
		}

	case scheduler.EventRoleFailed:
		if i := m.index(e.RoleID); i >= 0 {
			m.roles[i].State = scheduler.StateFailed
			m.roles[i].Duration = e.Duration
			if e.Err != nil {
				m.roles[i].Err = e.Err.Error()
				m.lastError = e.Err.Error()
			}
		}

	case scheduler.EventRunFinished:
		m.finished = true
		m.succeeded = e.Succeeded
		m.current = -1
		if e.Err != nil && m.lastError == "" {
			m.lastError = e.Err.Error()
		}
	}
}

// reorder arranges rows in execution order. Unknown ids are appended.
func (m *Model) reorder(order []string) {
	if len(order) == 0 {
		return
	}
	byID := make(map[string]roleRow, len(m.roles))
	for _, r := range m.roles {
		byID[r.ID] = r
	}
	rows := make([]roleRow, 0, len(order))
	for _, id := range order {
		row, ok := byID[id]
		if !ok {
			row = roleRow{ID: id, Name: id, State: scheduler.StatePending}
		}
		rows = append(rows, row)
	}
	m.roles = rows
}

func (m Model) index(roleID string) int {
	for i, r := range m.roles {
		if r.ID == roleID {
			return i
		}
	}
	return -1
}

// Interrupted reports whether the user asked to stop the run.
func (m Model) Interrupted() bool {
	return m.interrupted
}

func (m Model) elapsed() time.Duration {
	return time.Since(m.startTime)
}

func (m Model) count(s scheduler.RoleState) int {
	n := 0
	for _, r := range m.roles {
		if r.State == s {
			n++
		}
	}
	return n
}
