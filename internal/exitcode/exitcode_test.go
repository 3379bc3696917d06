package exitcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"ManifestInvalid", ManifestInvalid, 3},
		{"GenerationFailed", GenerationFailed, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
		{"Interrupted", Interrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error returns success", err: nil, expected: Success},
		{name: "canceled context", err: fmt.Errorf("role backend: %w", context.Canceled), expected: Interrupted},
		{name: "manifest invalid", err: ferrors.NewManifestInvalidError(cause), expected: ManifestInvalid},
		{name: "cyclic manifest", err: ferrors.NewCyclicManifestError(cause), expected: ManifestInvalid},
		{name: "role failed", err: ferrors.NewRoleFailedError("b", cause), expected: GenerationFailed},
		{name: "wrapped no artifacts", err: fmt.Errorf("run: %w", ferrors.NewNoArtifactsError("b", cause)), expected: GenerationFailed},
		{name: "provider auth", err: ferrors.NewProviderAuthError("openai", cause), expected: AuthError},
		{name: "uncoded FoundryError falls back to message", err: ferrors.Wrap(ferrors.ErrCodeFileReadFailed, "connection reset", cause), expected: NetworkError},
		{name: "authentication message", err: errors.New("authentication failed: invalid token"), expected: AuthError},
		{name: "api key message", err: errors.New("api_key not found in provider config"), expected: AuthError},
		{name: "network message", err: errors.New("dial tcp: connection refused"), expected: NetworkError},
		{name: "timeout message", err: errors.New("context deadline exceeded (Client.Timeout exceeded)"), expected: NetworkError},
		{name: "unknown command", err: errors.New(`unknown command "frob" for "foundry"`), expected: UsageError},
		{name: "arg count", err: errors.New("accepts 1 arg(s), received 0"), expected: UsageError},
		{name: "generic", err: errors.New("something broke"), expected: GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	for _, code := range []int{Success, GeneralError, UsageError, ManifestInvalid, GenerationFailed, AuthError, NetworkError, Interrupted} {
		if GetExitCodeDescription(code) == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if GetExitCodeDescription(42) != "Unknown error" {
		t.Error("expected unknown description for 42")
	}
}
