// Package auditerr defines the audit pipeline's error kinds as sentinel
// values (spec.md §7: "Error kinds (not type names)"). Callers match
// against these with errors.Is; components wrap them with fmt.Errorf's
// %w rather than building a custom error-type hierarchy, matching the
// teacher's error-handling idiom throughout server/ and client/.
package auditerr

import "errors"

var (
	// ErrQueueFull is returned by capture when the bounded enqueue
	// deadline elapses under a block_up_to overflow policy.
	ErrQueueFull = errors.New("queue_full")

	// ErrChainHalted is returned by record once the sequencer has
	// hit an unrecoverable write error; the monitor keeps running so
	// operators can read and verify what was already committed.
	ErrChainHalted = errors.New("chain_halted")

	// ErrCanonicalizationFailed marks a failure to produce an event's
	// canonical byte encoding.
	ErrCanonicalizationFailed = errors.New("canonicalization_failed")

	// ErrIOFailed wraps an underlying filesystem or object-store error.
	ErrIOFailed = errors.New("io_failed")

	// ErrSignatureFailed marks a failed sign or verify operation.
	ErrSignatureFailed = errors.New("signature_failed")

	// ErrVerificationFailed marks a failed chain/Merkle/archive check.
	ErrVerificationFailed = errors.New("verification_failed")

	// ErrIntegrityIssue is surfaced when the monitor reports a finding
	// severe enough to fail a caller's operation outright.
	ErrIntegrityIssue = errors.New("integrity_issue")

	// ErrUnknownKey is returned when a segment or head record names a
	// key id absent from the keyring.
	ErrUnknownKey = errors.New("unknown_key")

	// ErrNotFound marks a missing segment, archive, or event range.
	ErrNotFound = errors.New("not_found")

	// ErrCancelled marks cooperative cancellation of a long-running
	// operation (export, archive upload, monitor pass, verification).
	ErrCancelled = errors.New("cancelled")

	// ErrConfigurationInvalid marks a rejected configuration value.
	ErrConfigurationInvalid = errors.New("configuration_invalid")
)
