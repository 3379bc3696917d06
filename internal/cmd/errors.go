package cmd

import (
	"context"
	"errors"
	"fmt"

	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/worker"
)

// classifyRunError converts a scheduler error into a coded error with
// recovery suggestions. roleID names the role that failed, if any.
// Cancellation and already coded errors pass through unchanged.
func classifyRunError(err error, roleID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var fe *ferrors.FoundryError
	if errors.As(err, &fe) {
		return err
	}

	var cycle *scheduler.CyclicManifestError
	if errors.As(err, &cycle) {
		return ferrors.NewCyclicManifestError(err)
	}
	var verr *manifest.ValidationError
	if errors.As(err, &verr) {
		return ferrors.NewManifestInvalidError(err)
	}

	var gen *worker.GenerationError
	if errors.As(err, &gen) {
		var httpErr *provider.HTTPError
		if errors.As(err, &httpErr) && httpErr.Unauthorized() {
			return ferrors.NewProviderAuthError(httpErr.Provider, err)
		}
		return ferrors.Wrap(ferrors.ErrCodeGenerationFailed,
			fmt.Sprintf("generation service failed for role %s", gen.RoleID), err).
			WithSuggestion("Check provider connectivity and rate limits").
			WithSuggestion("Re-run with --resume to skip roles that already completed")
	}

	var noArtifacts *protocol.NoArtifactsError
	if errors.As(err, &noArtifacts) {
		return ferrors.NewNoArtifactsError(roleID, err)
	}

	if roleID != "" {
		return ferrors.NewRoleFailedError(roleID, err)
	}
	return err
}

// retryable reports whether a failed run may be attempted again with strict
// instructions. Only role failures qualify; cycles, cancellation, rejected
// credentials and bookkeeping failures do not change on retry.
func retryable(err error, report *scheduler.Report) bool {
	if err == nil || report == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var cycle *scheduler.CyclicManifestError
	if errors.As(err, &cycle) {
		return false
	}
	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) && httpErr.Unauthorized() {
		return false
	}
	_, failed := report.Failed()
	return failed
}
