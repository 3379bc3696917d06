package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
)

// RawResponseFile is the name of the unparsed generation output kept in each
// role directory.
const RawResponseFile = manifest.RawResponseFile

// Workspace is the artifact tree of one project. Roles write below
// <root>/<roleId>/ while generating; assembly copies declared outputs to
// <root>/<path>.
type Workspace struct {
	root string
}

// New returns a workspace rooted at dir.
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// StateDir returns the reserved bookkeeping directory.
func (w *Workspace) StateDir() string {
	return filepath.Join(w.root, manifest.ReservedDir)
}

// LedgerDir returns the directory holding the run ledger streams.
func (w *Workspace) LedgerDir() string {
	return filepath.Join(w.StateDir(), "ledger")
}

// TraceDir returns the directory holding run event traces.
func (w *Workspace) TraceDir() string {
	return filepath.Join(w.StateDir(), "trace")
}

// RoleDir returns the role-scoped working directory.
func (w *Workspace) RoleDir(roleID string) string {
	return filepath.Join(w.root, roleID)
}

// RolePath resolves a relative artifact path inside the role directory.
func (w *Workspace) RolePath(roleID, relPath string) (string, error) {
	cleaned, err := protocol.NormalizePath(relPath)
	if err != nil {
		return "", fmt.Errorf("role %s: %w", roleID, err)
	}
	return filepath.Join(w.RoleDir(roleID), filepath.FromSlash(cleaned)), nil
}

// ProjectPath resolves a relative path against the assembled project root.
func (w *Workspace) ProjectPath(relPath string) (string, error) {
	cleaned, err := protocol.NormalizePath(relPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.root, filepath.FromSlash(cleaned)), nil
}

// WriteRoleFile writes one artifact below the role directory and returns its
// blake3 checksum.
func (w *Workspace) WriteRoleFile(roleID, relPath, content string) (string, error) {
	dest, err := w.RolePath(roleID, relPath)
	if err != nil {
		return "", err
	}
	if err := writeFile(dest, []byte(content)); err != nil {
		return "", err
	}
	return Checksum([]byte(content)), nil
}

// ReadRoleFile returns the current content of a role-scoped artifact.
func (w *Workspace) ReadRoleFile(roleID, relPath string) (string, error) {
	src, err := w.RolePath(roleID, relPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read %s artifact %s: %w", roleID, relPath, err)
	}
	return string(data), nil
}

// WriteRaw persists the unparsed generation output of a role.
func (w *Workspace) WriteRaw(roleID, text string) (string, error) {
	dest := filepath.Join(w.RoleDir(roleID), RawResponseFile)
	if err := writeFile(dest, []byte(text)); err != nil {
		return "", err
	}
	return dest, nil
}

// Assembly describes the result of copying role outputs to the project root.
type Assembly struct {
	Copied    []string          `json:"copied"`
	Missing   []string          `json:"missing,omitempty"`
	Checksums map[string]string `json:"checksums"`
}

// ErrChecksumMismatch is returned by Assemble when a role file no longer
// matches the digest recorded when it was generated.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Assemble copies every declared output from its owner's role directory to
// the project root. Files a role wrote but never declared are left behind.
// Declared outputs that were never produced are reported as missing.
// recorded maps output paths to the digests taken at generation time; a role
// file that changed since then is not copied.
func (w *Workspace) Assemble(m *manifest.Manifest, recorded map[string]string) (*Assembly, error) {
	result := &Assembly{Checksums: make(map[string]string)}

	for _, role := range m.Roles {
		for _, out := range role.Outputs {
			src, err := w.RolePath(role.ID, out)
			if err != nil {
				return result, err
			}
			data, err := os.ReadFile(src)
			if errors.Is(err, fs.ErrNotExist) {
				result.Missing = append(result.Missing, out)
				continue
			}
			if err != nil {
				return result, fmt.Errorf("failed to read %s output %s: %w", role.ID, out, err)
			}

			sum := Checksum(data)
			if want, ok := recorded[out]; ok && want != sum {
				return result, fmt.Errorf("%w for %s: generated %s, found %s", ErrChecksumMismatch, out, want, sum)
			}

			dest, err := w.ProjectPath(out)
			if err != nil {
				return result, err
			}
			if err := writeFile(dest, data); err != nil {
				return result, err
			}

			result.Copied = append(result.Copied, out)
			result.Checksums[out] = sum
		}
	}

	return result, nil
}

// Checksum returns the hex-encoded blake3 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
