package main

import (
	"errors"

	"github.com/wolfe-services/tachikoma-audit/internal/auditerr"
)

// exitCodeFor maps an auditerr sentinel to its spec-mandated exit code
// (spec.md §6). Errors that don't wrap a known sentinel default to the
// I/O failure code, the most common unclassified failure in practice
// (a failed read/write somewhere in the call chain).
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, auditerr.ErrVerificationFailed),
		errors.Is(err, auditerr.ErrIntegrityIssue):
		return exitIntegrityFailure
	case errors.Is(err, auditerr.ErrConfigurationInvalid):
		return exitConfigurationError
	case errors.Is(err, auditerr.ErrIOFailed),
		errors.Is(err, auditerr.ErrNotFound),
		errors.Is(err, auditerr.ErrSignatureFailed):
		return exitIOError
	case errors.Is(err, errFlagValidation):
		return exitValidationError
	default:
		return exitIOError
	}
}
