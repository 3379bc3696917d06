package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Manifest errors (MANIFEST-001 to MANIFEST-099)
	ErrCodeManifestNotFound  ErrorCode = "MANIFEST-001"
	ErrCodeManifestInvalid   ErrorCode = "MANIFEST-002"
	ErrCodeManifestUnmarshal ErrorCode = "MANIFEST-003"

	// Generation errors (GEN-001 to GEN-099)
	ErrCodeGenerationFailed ErrorCode = "GEN-001"
	ErrCodeRoleFailed       ErrorCode = "GEN-002"

	// Output protocol errors (PARSE-001 to PARSE-099)
	ErrCodeNoArtifacts ErrorCode = "PARSE-001"

	// Scheduler errors (SCHED-001 to SCHED-099)
	ErrCodeCyclicManifest ErrorCode = "SCHED-001"
	ErrCodeRunNotFound    ErrorCode = "SCHED-002"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderNotFound ErrorCode = "PROVIDER-001"
	ErrCodeProviderConfig   ErrorCode = "PROVIDER-002"
	ErrCodeProviderAuth     ErrorCode = "PROVIDER-003"
	ErrCodeProviderAPI      ErrorCode = "PROVIDER-004"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"

	// Workspace errors (WS-001 to WS-099)
	ErrCodeWorkspaceUnhealthy ErrorCode = "WS-001"

	// Hook errors (HOOK-001 to HOOK-099)
	ErrCodeHookInvalid ErrorCode = "HOOK-001"
)

// FoundryError represents an error with a code, suggestions and documentation
type FoundryError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *FoundryError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FoundryError) Unwrap() error {
	return e.Cause
}

// New creates a new FoundryError
func New(code ErrorCode, message string) *FoundryError {
	return &FoundryError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new FoundryError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *FoundryError {
	return &FoundryError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *FoundryError) WithSuggestion(suggestion string) *FoundryError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *FoundryError) WithSuggestions(suggestions ...string) *FoundryError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *FoundryError) WithDocs(url string) *FoundryError {
	e.DocsURL = url
	return e
}

// Common error constructors

// NewManifestNotFoundError creates a manifest file not found error
func NewManifestNotFoundError(path string) *FoundryError {
	return New(ErrCodeManifestNotFound, fmt.Sprintf("manifest file not found: %s", path)).
		WithSuggestion("Run 'foundry plan \"<prompt>\"' to generate a manifest").
		WithSuggestion("Pass the manifest path with --manifest")
}

// NewManifestInvalidError wraps a manifest validation failure
func NewManifestInvalidError(cause error) *FoundryError {
	return Wrap(ErrCodeManifestInvalid, "manifest failed validation", cause).
		WithSuggestion("Run 'foundry validate' to list every issue").
		WithSuggestion("Every output path must be owned by exactly one role").
		WithSuggestion("depends_on must reference existing roles without cycles")
}

// NewCyclicManifestError wraps a scheduler-detected dependency cycle
func NewCyclicManifestError(cause error) *FoundryError {
	return Wrap(ErrCodeCyclicManifest, "no role can start: dependency cycle", cause).
		WithSuggestion("Run 'foundry order' to inspect the dependency graph").
		WithSuggestion("Remove one depends_on edge from each listed role")
}

// NewRoleFailedError reports the role that aborted a run
func NewRoleFailedError(roleID string, cause error) *FoundryError {
	return Wrap(ErrCodeRoleFailed, fmt.Sprintf("role %s failed; run aborted", roleID), cause).
		WithSuggestion("Inspect the raw response in <workspace>/" + roleID + "/.raw_response.txt").
		WithSuggestion("Review .foundry/ledger/errors.md and SUMMARY.md").
		WithSuggestion("Re-run with --resume to skip roles that already completed")
}

// NewNoArtifactsError reports a response without recognizable file segments
func NewNoArtifactsError(roleID string, cause error) *FoundryError {
	return Wrap(ErrCodeNoArtifacts, fmt.Sprintf("role %s produced no file artifacts", roleID), cause).
		WithSuggestion("Run 'foundry parse <workspace>/" + roleID + "/.raw_response.txt' to see skipped segments").
		WithSuggestion("Allow a retry with --attempts 2 to resend with stricter instructions")
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider string, cause error) *FoundryError {
	return Wrap(ErrCodeProviderAuth, fmt.Sprintf("authentication failed for provider: %s", provider), cause).
		WithSuggestion(fmt.Sprintf("Set the %s_API_KEY environment variable", strings.ToUpper(provider))).
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewProviderNotFoundError reports a provider missing from providers.yaml
func NewProviderNotFoundError(name string, cause error) *FoundryError {
	return Wrap(ErrCodeProviderNotFound, fmt.Sprintf("provider not available: %s", name), cause).
		WithSuggestion("Check .foundry/providers.yaml").
		WithSuggestion("Enable the provider or pass --provider with a configured name")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *FoundryError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *FoundryError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
