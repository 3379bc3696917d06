package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SummaryFile is the generated end-of-run report.
const SummaryFile = "SUMMARY.md"

// ExcerptLimit is the number of runes of a role's error kept in the summary.
const ExcerptLimit = 160

// FollowUps is the fixed checklist printed at the end of every summary.
var FollowUps = []string{
	"Review decisions.md for choices that need a human sign-off.",
	"Install dependencies and run the generated test suite.",
	"Address open items in feature_requests.md.",
	"Fold recurring problems from errors.md and learnings.md into the next manifest.",
	"Run a security review before deploying the generated project.",
}

// RoleSummary is one row of the per-role table.
type RoleSummary struct {
	RoleID    string
	Name      string
	State     string
	Artifacts int
	Error     string
}

// Summary is the input to WriteSummary.
type Summary struct {
	Project string
	RunID   string
	Status  string
	Attempt int
	Roles   []RoleSummary
}

// WriteSummary renders SUMMARY.md, replacing any previous summary. It is the
// only ledger file that is not append-only.
func (l *Ledger) WriteSummary(s Summary) (string, error) {
	content := RenderSummary(s, l.Counts(), l.now().UTC())
	path := filepath.Join(l.dir, SummaryFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", SummaryFile, err)
	}
	return path, nil
}

// RenderSummary produces the markdown summary.
func RenderSummary(s Summary, counts map[Stream]int, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Summary: %s\n\n", s.Project)
	fmt.Fprintf(&b, "- Run: `%s`\n", s.RunID)
	fmt.Fprintf(&b, "- Status: **%s**\n", s.Status)
	if s.Attempt > 0 {
		fmt.Fprintf(&b, "- Attempt: %d\n", s.Attempt)
	}
	fmt.Fprintf(&b, "- Generated: %s\n\n", at.Format(time.RFC3339))

	b.WriteString("## Roles\n\n")
	b.WriteString("| Role | State | Artifacts | Error |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, r := range s.Roles {
		name := r.RoleID
		if r.Name != "" && r.Name != r.RoleID {
			name = fmt.Sprintf("%s (%s)", r.Name, r.RoleID)
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s |\n",
			cell(name), cell(r.State), r.Artifacts, cell(Excerpt(r.Error, ExcerptLimit)))
	}

	b.WriteString("\n## Ledger\n\n")
	for _, st := range Streams() {
		fmt.Fprintf(&b, "- %s: %d\n", st.Title(), counts[st])
	}

	b.WriteString("\n## Suggested follow-ups\n\n")
	for _, f := range FollowUps {
		fmt.Fprintf(&b, "- [ ] %s\n", f)
	}
	return b.String()
}

// Excerpt flattens whitespace and truncates s to max runes, marking the cut
// with an ellipsis.
func Excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
