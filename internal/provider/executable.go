package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecutableProvider wraps any executable that reads a GenerateRequest as
// JSON on stdin and writes a GenerateResponse as JSON on stdout.
type ExecutableProvider struct {
	path   string
	args   []string
	config *ProviderConfig
}

// NewExecutableProvider creates a new executable-based provider
func NewExecutableProvider(path string, config *ProviderConfig) (*ExecutableProvider, error) {
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("executable not found: %s: %w", path, err)
	}

	var args []string
	if list, ok := config.Config["args"].([]interface{}); ok {
		for _, arg := range list {
			if s, ok := arg.(string); ok {
				args = append(args, s)
			}
		}
	}

	return &ExecutableProvider{path: path, args: args, config: config}, nil
}

// Generate runs the executable once per request.
func (e *ExecutableProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	args := append(append([]string{}, e.args...), "generate")
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("provider failed: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to execute provider: %w", err)
	}

	var resp GenerateResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if resp.Provider == "" {
		resp.Provider = e.config.Name
	}
	if resp.Latency == 0 {
		resp.Latency = time.Since(startTime)
	}
	return &resp, nil
}

// GetInfo implements ProviderClient.GetInfo
func (e *ExecutableProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        e.config.Name,
		Version:     e.config.Version,
		Type:        ProviderTypeCLI,
		Description: fmt.Sprintf("Executable provider: %s", e.path),
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (e *ExecutableProvider) IsAvailable() bool {
	_, err := exec.LookPath(e.path)
	return err == nil
}

// Close implements ProviderClient.Close
func (e *ExecutableProvider) Close() error {
	return nil
}
