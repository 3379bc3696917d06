package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const yamlManifest = `project_name: notes
tech_stack:
  language: go
  storage: sqlite
roles:
  - id: core
    name: Core library
    outputs: [./internal/notes/notes.go]
  - id: cli
    name: CLI
    outputs: [cmd/notes/main.go]
    depends_on: [core]
shared_files: [go.mod]
constraints:
  - standard library only
`

const jsonManifest = `{
  "project_name": "notes",
  "roles": [
    {"id": "core", "name": "Core", "outputs": ["notes.go"]},
    {"id": "cli", "name": "CLI", "outputs": ["main.go"], "depends_on": ["core"]}
  ]
}`

func TestParseYAML(t *testing.T) {
	m, err := Parse([]byte(yamlManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.ProjectName != "notes" {
		t.Errorf("project name = %q", m.ProjectName)
	}
	if m.TechStack["storage"] != "sqlite" {
		t.Errorf("tech stack = %v", m.TechStack)
	}
	if len(m.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(m.Roles))
	}
	if m.Roles[0].Outputs[0] != "internal/notes/notes.go" {
		t.Errorf("leading ./ not stripped: %s", m.Roles[0].Outputs[0])
	}
	if m.Roles[1].DependsOn[0] != "core" {
		t.Errorf("depends_on = %v", m.Roles[1].DependsOn)
	}
}

func TestParseJSON(t *testing.T) {
	m, err := Parse([]byte(jsonManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := m.RoleIDs(); len(got) != 2 || got[0] != "core" || got[1] != "cli" {
		t.Errorf("RoleIDs() = %v", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("project_name: x\nroles:\n  - id: a\n    outputs: [a.txt]\n    depends_on: [b]\n"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := Parse([]byte("roles: [unterminated")); err == nil {
		t.Error("expected unmarshal error")
	}
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(src, []byte(yamlManifest), 0600); err != nil {
		t.Fatal(err)
	}

	m, err := Load(src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	out := filepath.Join(dir, "copy.yaml")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := Load(out)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if reloaded.Roles[1].Name != "CLI" || reloaded.SharedFiles[0] != "go.mod" {
		t.Errorf("reloaded manifest differs: %+v", reloaded)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
