package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/workspace"
)

// DefaultContextBudget is the number of bytes of each dependency file
// included in a role's instructions.
const DefaultContextBudget = 6000

// Options tune how roles are invoked.
type Options struct {
	// Temperature is passed to every generation call.
	Temperature float64

	// ContextBudget caps the bytes of each dependency file shown to a role.
	// Zero or less includes files in full.
	ContextBudget int

	// Strict appends the stricter protocol reminder to the instructions.
	Strict bool
}

// GenerationError is a failure of the generation service while running a
// role.
type GenerationError struct {
	RoleID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("role %s: generation failed: %v", e.RoleID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Result is everything one successful invocation produced.
type Result struct {
	RoleID     string
	Artifacts  []protocol.Artifact
	Decisions  []protocol.Decision
	Skipped    []protocol.Skipped
	Checksums  map[string]string
	Undeclared []string
	Missing    []string
	RawPath    string
}

// Invoker runs one role at a time against a Generator and writes the
// accepted artifacts into the role's directory.
type Invoker struct {
	generator provider.Generator
	workspace *workspace.Workspace
	opts      Options
	logger    *log.Logger
}

// New creates an Invoker.
func New(gen provider.Generator, ws *workspace.Workspace, opts Options, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.Discard()
	}
	return &Invoker{generator: gen, workspace: ws, opts: opts, logger: logger}
}

// Strict returns a copy of the invoker with strict instructions switched on
// or off.
func (inv *Invoker) Strict(strict bool) *Invoker {
	clone := *inv
	clone.opts.Strict = strict
	return &clone
}

// Invoke generates one role. The generation service is called exactly once.
// The raw response is kept on disk whether or not it parses, and a response
// without accepted file segments fails the whole invocation.
func (inv *Invoker) Invoke(ctx context.Context, role manifest.Role, m *manifest.Manifest) (*Result, error) {
	logger := inv.logger.WithContext(ctx).With("role", role.ID)

	deps, err := inv.dependencyContext(role, m)
	if err != nil {
		return nil, err
	}
	messages := BuildMessages(role, m, deps, inv.opts.Strict)

	logger.Debug("invoking generator", "dependency_files", len(deps), "strict", inv.opts.Strict)
	text, err := inv.generator.Generate(provider.WithRole(ctx, role.ID), messages, inv.opts.Temperature)
	if err != nil {
		return nil, &GenerationError{RoleID: role.ID, Err: err}
	}

	rawPath, err := inv.workspace.WriteRaw(role.ID, text)
	if err != nil {
		return nil, fmt.Errorf("role %s: persist raw response: %w", role.ID, err)
	}

	parsed, err := protocol.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", role.ID, err)
	}
	parsed = withoutReserved(parsed)
	if len(parsed.Artifacts) == 0 {
		return nil, fmt.Errorf("role %s: %w", role.ID,
			&protocol.NoArtifactsError{Skipped: parsed.Skipped, Decisions: parsed.Decisions})
	}
	for _, s := range parsed.Skipped {
		logger.Warn("skipped file segment", "path", s.Path, "line", s.Line, "reason", string(s.Reason))
	}

	result := &Result{
		RoleID:    role.ID,
		Artifacts: parsed.Artifacts,
		Decisions: parsed.Decisions,
		Skipped:   parsed.Skipped,
		Checksums: make(map[string]string, len(parsed.Artifacts)),
		RawPath:   rawPath,
	}

	produced := make(map[string]bool, len(parsed.Artifacts))
	for _, a := range parsed.Artifacts {
		sum, err := inv.workspace.WriteRoleFile(role.ID, a.Path, a.Content)
		if err != nil {
			return nil, fmt.Errorf("role %s: write %s: %w", role.ID, a.Path, err)
		}
		result.Checksums[a.Path] = sum
		produced[a.Path] = true
		if !role.Owns(a.Path) {
			result.Undeclared = append(result.Undeclared, a.Path)
		}
	}
	for _, out := range role.Outputs {
		if !produced[out] {
			result.Missing = append(result.Missing, out)
		}
	}

	logger.Info("role generated",
		"artifacts", len(result.Artifacts),
		"decisions", len(result.Decisions),
		"undeclared", len(result.Undeclared),
		"missing", len(result.Missing))
	return result, nil
}

// withoutReserved drops artifacts that would overwrite the raw response.
func withoutReserved(parsed *protocol.Result) *protocol.Result {
	kept := parsed.Artifacts[:0:0]
	for _, a := range parsed.Artifacts {
		if a.Path == workspace.RawResponseFile {
			parsed.Skipped = append(parsed.Skipped, protocol.Skipped{Path: a.Path, Reason: protocol.SkipReserved})
			continue
		}
		kept = append(kept, a)
	}
	parsed.Artifacts = kept
	return parsed
}

// dependencyContext reads the declared outputs of every direct dependency
// from their role directories. Outputs a dependency never produced are
// skipped.
func (inv *Invoker) dependencyContext(role manifest.Role, m *manifest.Manifest) ([]DependencyFile, error) {
	var files []DependencyFile
	for _, depID := range role.DependsOn {
		dep, ok := m.Role(depID)
		if !ok {
			continue
		}
		for _, out := range dep.Outputs {
			content, err := inv.workspace.ReadRoleFile(dep.ID, out)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("role %s: read dependency output: %w", role.ID, err)
			}
			content, cut := truncate(content, inv.opts.ContextBudget)
			files = append(files, DependencyFile{RoleID: dep.ID, Path: out, Content: content, Truncated: cut})
		}
	}
	return files, nil
}
