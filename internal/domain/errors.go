package domain

import "errors"

// Error kinds surfaced by the storage service. Callers match with errors.Is;
// the service wraps them with operation context.
var (
	// ErrValidation marks bad caller input (non-positive amounts or limits,
	// empty titles, podium bounds, removing the last owner).
	ErrValidation = errors.New("invalid input")

	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateApplication marks a submission while a live application
	// already exists for the same chat and user.
	ErrDuplicateApplication = errors.New("application already pending")

	// ErrInvalidTransition marks a status change outside the allowed edges.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDecryption marks a wrong secret or a malformed/tampered payload.
	ErrDecryption = errors.New("wrong secret or corrupted payload")

	// ErrPersistence marks a failure to encrypt or write the state file.
	ErrPersistence = errors.New("persistence failure")
)
