package provider

import "context"

// ProviderClient is the interface every generation backend implements:
// HTTP APIs, local executables and recorded fixtures.
type ProviderClient interface {
	// Generate sends a conversation and returns the complete response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// GetInfo returns metadata about the provider.
	GetInfo() *ProviderInfo

	// IsAvailable reports whether the provider is configured well enough to
	// accept requests.
	IsAvailable() bool

	// Close releases any resources held by the provider.
	Close() error
}

// ProviderInfo contains metadata about a provider
type ProviderInfo struct {
	Name        string
	Version     string
	Type        ProviderType
	Description string
}

// ProviderType represents the implementation type of a provider
type ProviderType string

const (
	// ProviderTypeAPI is an HTTP API client
	ProviderTypeAPI ProviderType = "api"

	// ProviderTypeCLI is a command-line executable speaking JSON over stdio
	ProviderTypeCLI ProviderType = "cli"

	// ProviderTypeFixture replays recorded responses from a directory
	ProviderTypeFixture ProviderType = "fixture"
)
