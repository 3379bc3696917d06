package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/foundry/internal/ledger"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// View renders the TUI.
func (m Model) View() string {
	if m.finished || m.interrupted {
		return m.renderComplete()
	}
	return m.renderMain()
}

func (m Model) renderMain() string {
	var b strings.Builder

	title := fmt.Sprintf("foundry · %s", m.project)
	if m.attempt > 1 {
		title += fmt.Sprintf(" (attempt %d)", m.attempt)
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	b.WriteString(m.renderProgressBar())
	b.WriteString("\n\n")

	var rows []string
	for i, r := range m.roles {
		rows = append(rows, m.renderRoleLine(i, r))
	}
	b.WriteString(m.styles.Border.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if m.showErrors && m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("Error: ") + m.lastError)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelpLine())
	return b.String()
}

func (m Model) renderRoleLine(index int, r roleRow) string {
	var icon string
	style := m.styles.Muted
	switch r.State {
	case scheduler.StateRunning:
		icon = m.spinner.View()
		style = m.styles.Status
	case scheduler.StateDone:
		icon = m.styles.Success.Render("✓")
		style = lipgloss.NewStyle()
	case scheduler.StateFailed:
		icon = m.styles.Error.Render("✗")
		style = m.styles.Error
	default:
		icon = m.styles.Muted.Render("○")
	}

	line := fmt.Sprintf("%s %s", icon, style.Render(fmt.Sprintf("%-12s %s", r.ID, r.Name)))

	var detail []string
	if r.State == scheduler.StateDone {
		detail = append(detail, fmt.Sprintf("%d files", r.Artifacts))
	}
	if r.Resumed {
		detail = append(detail, "resumed")
	}
	if r.Duration > 0 {
		detail = append(detail, formatDuration(r.Duration))
	}
	if index == m.current {
		detail = append(detail, "generating")
	}
	if len(detail) > 0 {
		line += m.styles.Muted.Render("  " + strings.Join(detail, " · "))
	}
	return line
}

func (m Model) renderProgressBar() string {
	total := len(m.roles)
	if total == 0 {
		return m.styles.Muted.Render("No roles")
	}
	done := m.count(scheduler.StateDone)

	barWidth := 30
	filled := done * barWidth / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	stats := fmt.Sprintf(" %d/%d roles · %s", done, total, formatDuration(m.elapsed()))
	return m.styles.Status.Render(bar) + m.styles.Muted.Render(stats)
}

func (m Model) renderComplete() string {
	var b strings.Builder
	switch {
	case m.interrupted:
		b.WriteString(m.styles.Warning.Render("Run interrupted"))
	case m.succeeded:
		b.WriteString(m.styles.Success.Render(fmt.Sprintf("✓ %d roles generated in %s",
			m.count(scheduler.StateDone), formatDuration(m.elapsed()))))
	default:
		b.WriteString(m.styles.Error.Render("✗ Run failed"))
		if m.lastError != "" {
			b.WriteString("\n")
			b.WriteString(m.styles.Muted.Render(ledger.Excerpt(m.lastError, 300)))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHelpLine() string {
	items := []string{
		m.styles.Key.Render(m.keys.Details.Help().Key) + " " + m.keys.Details.Help().Desc,
		m.styles.Key.Render(m.keys.Quit.Help().Key) + " " + m.keys.Quit.Help().Desc,
	}
	return m.styles.Muted.Render(strings.Join(items, " • "))
}

// RenderReport renders a finished run as a table for plain terminal output.
func RenderReport(report *scheduler.Report, counts map[ledger.Stream]int) string {
	styles := DefaultStyles()

	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		state := string(o.State)
		if o.Resumed {
			state += " (resumed)"
		}
		errText := ""
		if o.Err != nil {
			errText = ledger.Excerpt(o.Err.Error(), 60)
		}
		rows = append(rows, []string{o.RoleID, o.Name, state, fmt.Sprintf("%d", o.Artifacts), errText})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Muted).
		Headers("ROLE", "NAME", "STATE", "FILES", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Bold(true)
			}
			if col == 2 && row >= 0 && row < len(report.Outcomes) {
				switch report.Outcomes[row].State {
				case scheduler.StateDone:
					return base.Inherit(styles.Success)
				case scheduler.StateFailed:
					return base.Inherit(styles.Error)
				default:
					return base.Inherit(styles.Muted)
				}
			}
			return base
		})

	var b strings.Builder
	status := styles.Success.Render(string(report.Status))
	if !report.Succeeded() {
		status = styles.Error.Render(string(report.Status))
	}
	fmt.Fprintf(&b, "%s %s  run %s  attempt %d\n", styles.Title.UnsetMarginBottom().Render(report.Project), status, report.RunID, report.Attempt)
	b.WriteString(t.String())
	b.WriteString("\n")

	if counts != nil {
		parts := make([]string, 0, len(counts))
		for _, s := range ledger.Streams() {
			parts = append(parts, fmt.Sprintf("%s %d", strings.ToLower(s.Title()), counts[s]))
		}
		b.WriteString(styles.Muted.Render("ledger: " + strings.Join(parts, " · ")))
		b.WriteString("\n")
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
