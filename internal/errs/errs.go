// Package errs holds the error taxonomy shared by the allocator, the stores
// and the RPC layer. Callers branch with errors.Is; the concrete cause stays
// wrapped underneath.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout a read exceeded the deployment deadline. The underlying
	// operation is not cancelled; its result is discarded.
	ErrTimeout = errors.New("fleetstore: operation timed out")

	// ErrNotFound update/delete targeted a primary id with no document.
	ErrNotFound = errors.New("fleetstore: document not found")

	// ErrAllocationFailed the atomic counter increment could not complete.
	ErrAllocationFailed = errors.New("fleetstore: sequence allocation failed")

	// ErrStoreUnavailable connectivity or transport failure from the store client.
	ErrStoreUnavailable = errors.New("fleetstore: store unavailable")

	// ErrValidationFailed reserved for malformed input. Most fields are not validated.
	ErrValidationFailed = errors.New("fleetstore: validation failed")
)

// Wrap attaches a taxonomy sentinel to a concrete cause so that both
// errors.Is(err, sentinel) and errors.Is(err, cause) hold.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	if errors.Is(cause, sentinel) {
		return cause
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
