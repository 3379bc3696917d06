package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeManifestNotFound, "test error message")

	if err.Code != ErrCodeManifestNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeManifestNotFound, err.Code)
	}
	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}
	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

type roleErr struct{ role string }

func (e *roleErr) Error() string { return "role " + e.role }

func TestWrapSupportsErrorsAs(t *testing.T) {
	err := NewRoleFailedError("backend", fmt.Errorf("invoke: %w", &roleErr{role: "backend"}))

	var target *roleErr
	if !errors.As(err, &target) {
		t.Fatalf("expected errors.As to reach the wrapped domain error")
	}
	if target.role != "backend" {
		t.Errorf("unexpected role %q", target.role)
	}

	var fe *FoundryError
	if !errors.As(fmt.Errorf("outer: %w", err), &fe) || fe.Code != ErrCodeRoleFailed {
		t.Errorf("expected FoundryError with %s", ErrCodeRoleFailed)
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *FoundryError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeManifestInvalid, "invalid manifest"),
			wantCode: "MANIFEST-002",
			wantMsg:  "invalid manifest",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			wantCode: "IO-002",
			wantMsg:  "permission denied",
		},
		{
			name:     "with suggestions and docs",
			err:      New(ErrCodeGenerationFailed, "boom").WithSuggestion("try again").WithDocs("https://example.com/docs"),
			wantCode: "GEN-001",
			wantMsg:  "Documentation: https://example.com/docs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}
			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestions(t *testing.T) {
	err := New(ErrCodeProviderConfig, "bad config").
		WithSuggestion("first").
		WithSuggestions("second", "third")

	if len(err.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(err.Suggestions))
	}
	if !strings.Contains(err.Error(), "Suggestions:\n  • first") {
		t.Errorf("suggestions not rendered: %s", err.Error())
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name     string
		err      *FoundryError
		wantCode ErrorCode
		wantText string
	}{
		{"manifest not found", NewManifestNotFoundError("m.yaml"), ErrCodeManifestNotFound, "m.yaml"},
		{"manifest invalid", NewManifestInvalidError(cause), ErrCodeManifestInvalid, "foundry validate"},
		{"cyclic manifest", NewCyclicManifestError(cause), ErrCodeCyclicManifest, "foundry order"},
		{"role failed", NewRoleFailedError("qa", cause), ErrCodeRoleFailed, "qa/.raw_response.txt"},
		{"no artifacts", NewNoArtifactsError("qa", cause), ErrCodeNoArtifacts, "foundry parse"},
		{"provider auth", NewProviderAuthError("anthropic", cause), ErrCodeProviderAuth, "ANTHROPIC_API_KEY"},
		{"provider not found", NewProviderNotFoundError("x", cause), ErrCodeProviderNotFound, "providers.yaml"},
		{"file not found", NewFileNotFoundError("a.txt"), ErrCodeFileNotFound, "a.txt"},
		{"unmarshal", NewFileUnmarshalError("c.yaml", "YAML", cause), ErrCodeFileUnmarshal, "valid YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if !strings.Contains(tt.err.Error(), tt.wantText) {
				t.Errorf("error %q does not mention %q", tt.err.Error(), tt.wantText)
			}
		})
	}
}
