package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFixture is replayed when no file exists for the requesting role.
const DefaultFixture = "default"

// FixtureProvider replays recorded responses from a directory of
// <roleId>.txt files. It makes offline dry runs and end-to-end tests
// possible without a network.
type FixtureProvider struct {
	dir    string
	config *ProviderConfig
}

// NewFixtureProvider creates a provider reading from dir.
func NewFixtureProvider(dir string, config *ProviderConfig) (*FixtureProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture path %s is not a directory", dir)
	}
	return &FixtureProvider{dir: dir, config: config}, nil
}

// Generate returns the recorded response for the role named in the request
// metadata, falling back to default.txt.
func (f *FixtureProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := []string{DefaultFixture}
	if role := req.Metadata["role"]; role != "" {
		candidates = []string{role, DefaultFixture}
	}

	for _, name := range candidates {
		data, err := os.ReadFile(filepath.Join(f.dir, name+".txt"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		return &GenerateResponse{
			Content:      string(data),
			Model:        "fixture",
			FinishReason: "stop",
			Provider:     f.config.Name,
		}, nil
	}

	return nil, fmt.Errorf("no fixture for %v in %s", candidates, f.dir)
}

// GetInfo implements ProviderClient.GetInfo
func (f *FixtureProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        f.config.Name,
		Version:     f.config.Version,
		Type:        ProviderTypeFixture,
		Description: fmt.Sprintf("Recorded responses from %s", f.dir),
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (f *FixtureProvider) IsAvailable() bool {
	_, err := os.Stat(f.dir)
	return err == nil
}

// Close implements ProviderClient.Close
func (f *FixtureProvider) Close() error {
	return nil
}
