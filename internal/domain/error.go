package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// License API errors, surfaced to callers with stable codes
	ErrLicenseInvalid     = errors.New("license not found for this product")
	ErrLicenseInactive    = errors.New("license is not active")
	ErrDomainLimitReached = errors.New("domain activation limit reached")
	ErrActivationNotFound = errors.New("no active activation found for this domain")
	ErrCannotDowngrade    = errors.New("active domains exceed the new plan limit")

	// ErrSubscriptionNotReady is the one retryable provisioning failure: the
	// billing event arrived before the local subscription row was persisted.
	ErrSubscriptionNotReady = errors.New("subscription record not available yet")

	// Infrastructure errors
	ErrLockHeld           = errors.New("lock already held")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
