package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/foundry/internal/protocol"
)

// ReservedDir holds run bookkeeping inside the workspace; roles may not
// write below it.
const ReservedDir = ".foundry"

// RawResponseFile is kept next to a role's artifacts; no output may use the
// name.
const RawResponseFile = ".raw_response.txt"

var roleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Issue is a single manifest validation finding.
type Issue struct {
	Role    string `json:"role,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Role == "" {
		return i.Message
	}
	return fmt.Sprintf("role %q: %s", i.Role, i.Message)
}

// ValidationError collects every problem found in a manifest. No role may run
// while a manifest has issues.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid manifest: " + e.Issues[0].String()
	}
	lines := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		lines[i] = "  - " + issue.String()
	}
	return fmt.Sprintf("invalid manifest (%d issues):\n%s", len(e.Issues), strings.Join(lines, "\n"))
}

// Normalize strips leading "./" from declared paths and trims whitespace from
// ids. Paths that cannot be normalized are left untouched for Validate to
// report.
func (m *Manifest) Normalize() {
	for i := range m.Roles {
		r := &m.Roles[i]
		r.ID = strings.TrimSpace(r.ID)
		for j, dep := range r.DependsOn {
			r.DependsOn[j] = strings.TrimSpace(dep)
		}
		for j, out := range r.Outputs {
			if cleaned, err := protocol.NormalizePath(out); err == nil {
				r.Outputs[j] = cleaned
			}
		}
	}
	for i, shared := range m.SharedFiles {
		if cleaned, err := protocol.NormalizePath(shared); err == nil {
			m.SharedFiles[i] = cleaned
		}
	}
}

// Validate checks the manifest invariants: unique role ids, existing and
// acyclic dependencies, and single ownership of every declared path.
func (m *Manifest) Validate() error {
	var issues []Issue
	add := func(role, format string, args ...any) {
		issues = append(issues, Issue{Role: role, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(m.ProjectName) == "" {
		add("", "project_name is required")
	}
	if len(m.Roles) == 0 {
		add("", "manifest must declare at least one role")
	}

	ids := make(map[string]bool, len(m.Roles))
	for i, r := range m.Roles {
		switch {
		case r.ID == "":
			add("", "role at index %d has no id", i)
		case !roleIDPattern.MatchString(r.ID):
			add(r.ID, "id must contain only letters, digits, '-' or '_'")
		case ids[r.ID]:
			add(r.ID, "duplicate role id")
		}
		ids[r.ID] = true
	}

	owners := make(map[string]string)
	for _, r := range m.Roles {
		if len(r.Outputs) == 0 {
			add(r.ID, "role must declare at least one output")
		}
		seen := make(map[string]bool, len(r.Outputs))
		for _, out := range r.Outputs {
			cleaned, err := checkPath(out)
			if err != nil {
				add(r.ID, "output %q: %v", out, err)
				continue
			}
			if seen[cleaned] {
				add(r.ID, "output %q declared twice", cleaned)
				continue
			}
			seen[cleaned] = true
			if owner, taken := owners[cleaned]; taken {
				add(r.ID, "output %q is already owned by role %q", cleaned, owner)
				continue
			}
			owners[cleaned] = r.ID
			if top := strings.SplitN(cleaned, "/", 2)[0]; ids[top] {
				add(r.ID, "output %q collides with the working directory of role %q", cleaned, top)
			}
		}
		for _, dep := range r.DependsOn {
			switch {
			case dep == r.ID:
				add(r.ID, "role cannot depend on itself")
			case !ids[dep]:
				add(r.ID, "dependency %q does not exist", dep)
			}
		}
	}

	for _, shared := range m.SharedFiles {
		cleaned, err := checkPath(shared)
		if err != nil {
			add("", "shared file %q: %v", shared, err)
			continue
		}
		if owner, taken := owners[cleaned]; taken {
			add(owner, "output %q is also listed as a shared file", cleaned)
		}
	}

	if cycle := m.findCycle(ids); len(cycle) > 0 {
		add("", "circular dependency detected: %s", strings.Join(cycle, " -> "))
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func checkPath(p string) (string, error) {
	cleaned, err := protocol.NormalizePath(p)
	if err != nil {
		return "", err
	}
	if cleaned != p {
		return "", fmt.Errorf("path is not normalized (want %q)", cleaned)
	}
	if cleaned == ReservedDir || strings.HasPrefix(cleaned, ReservedDir+"/") {
		return "", fmt.Errorf("path is inside the reserved %s directory", ReservedDir)
	}
	if cleaned == RawResponseFile {
		return "", fmt.Errorf("%s is reserved for the raw generation response", RawResponseFile)
	}
	return cleaned, nil
}

// findCycle returns one dependency cycle as a path of role ids, or nil.
// Dependencies on unknown roles are ignored here; Validate reports them.
func (m *Manifest) findCycle(known map[string]bool) []string {
	graph := make(map[string][]string, len(m.Roles))
	for _, r := range m.Roles {
		graph[r.ID] = r.DependsOn
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(id string, path []string) []string
	visit = func(id string, path []string) []string {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)
		for _, dep := range graph[id] {
			if !known[dep] || dep == id {
				continue
			}
			if onStack[dep] {
				return append(path, dep)
			}
			if !visited[dep] {
				if cycle := visit(dep, path); cycle != nil {
					return cycle
				}
			}
		}
		onStack[id] = false
		return nil
	}

	for _, r := range m.Roles {
		if !visited[r.ID] {
			if cycle := visit(r.ID, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
