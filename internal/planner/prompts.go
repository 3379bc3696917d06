package planner

import (
	"fmt"
	"regexp"
	"strings"
)

// buildSystemPrompt describes the manifest format the planner must return.
func buildSystemPrompt() string {
	return `You are a software architect planning how a team of specialist roles will generate a project.

Split the work into roles. Each role owns a disjoint set of output files and may depend on roles whose files it needs to read.

Output Requirements:
- Return ONLY a YAML document inside a single ` + "```yaml" + ` code block
- Every role id is unique and made of letters, digits, '-' or '_'
- Every output path is relative, uses '/' separators and belongs to exactly one role
- An output path must not start with a directory named like a role id
- depends_on lists only ids of other roles and never forms a cycle
- Prefer few roles with clear ownership over many tiny roles`
}

// buildUserPrompt embeds the request and the manifest schema.
func buildUserPrompt(prompt string) string {
	return fmt.Sprintf(`Plan the following project:

%s

Return the manifest with this exact structure:
`+"```yaml"+`
project_name: short-kebab-name
tech_stack:
  language: Go
  database: SQLite
constraints:
  - Constraint every role must respect
shared_files:
  - README.md
roles:
  - id: architect
    name: Software Architect
    description: What this role is responsible for
    outputs:
      - docs/architecture.md
  - id: backend
    name: Backend Developer
    outputs:
      - internal/server/server.go
    depends_on:
      - architect
`+"```", strings.TrimSpace(prompt))
}

var fencedBlock = regexp.MustCompile("(?s)```(?:ya?ml|json)?[ \t]*\r?\n(.*?)```")

// extractManifest returns the first fenced code block of a response, or the
// whole response when it contains none.
func extractManifest(content string) string {
	if m := fencedBlock.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}
