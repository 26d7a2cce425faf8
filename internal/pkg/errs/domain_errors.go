package errs

import "errors"

// Sentinel errors shared by the usecase layers. Lifecycle-rule violations
// (invalid transition, unauthorized actor, expiry) live in the request
// domain package; these cover everything around them.
var (
	// Request errors
	ErrRequestNotFound = errors.New("request not found")

	// Queue errors
	ErrEntryNotFound   = errors.New("queue entry not found")
	ErrEntryInFlight   = errors.New("queue entry already submitted")
	ErrDuplicateAction = errors.New("duplicate action for idempotency key")

	// Sync errors
	ErrTransientNetwork = errors.New("transient network failure")
	ErrSyncInProgress   = errors.New("reconciliation already in progress")

	// Operation errors
	ErrStoreOperationFailed = errors.New("store operation failed")
)
