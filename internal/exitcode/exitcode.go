package exitcode

import (
	"context"
	"errors"
	"os"
	"strings"

	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ManifestInvalid indicates a manifest that failed validation or is cyclic
	ManifestInvalid = 3

	// GenerationFailed indicates a role failed and the run was aborted
	GenerationFailed = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the process received SIGINT or SIGTERM
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Coded errors are matched
// first; the message is inspected only for uncoded errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	var fe *ferrors.FoundryError
	if errors.As(err, &fe) {
		if code, ok := codeFor(fe.Code); ok {
			return code
		}
	}

	return fromMessage(strings.ToLower(err.Error()))
}

func codeFor(code ferrors.ErrorCode) (int, bool) {
	switch code {
	case ferrors.ErrCodeManifestInvalid, ferrors.ErrCodeManifestUnmarshal, ferrors.ErrCodeCyclicManifest:
		return ManifestInvalid, true
	case ferrors.ErrCodeGenerationFailed, ferrors.ErrCodeRoleFailed, ferrors.ErrCodeNoArtifacts:
		return GenerationFailed, true
	case ferrors.ErrCodeProviderAuth:
		return AuthError, true
	}
	return 0, false
}

func fromMessage(errMsg string) int {
	// Authentication errors
	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}
	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "api_key") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || (strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)")) {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ManifestInvalid:
		return "Manifest invalid or cyclic"
	case GenerationFailed:
		return "Generation failed"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
