package snapshot

import "errors"

// Sentinel errors for snapshot stores.
var (
	// ErrNotFound is returned by Load when no blob is stored under the key.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrEmptyKey is returned for an empty blob key.
	ErrEmptyKey = errors.New("snapshot: empty key")

	// ErrInvalidConfig is returned when a store is constructed with missing settings.
	ErrInvalidConfig = errors.New("snapshot: invalid configuration")

	// Backend errors.
	ErrLoadFailed   = errors.New("snapshot: load failed")
	ErrSaveFailed   = errors.New("snapshot: save failed")
	ErrDeleteFailed = errors.New("snapshot: delete failed")
	ErrAccessDenied = errors.New("snapshot: access denied")

	// Connection errors.
	ErrEmptyConnectionURL = errors.New("snapshot: empty connection URL")
	ErrFailedToParseURL   = errors.New("snapshot: failed to parse connection URL")
	ErrConnectionFailed   = errors.New("snapshot: failed to establish connection")
	ErrHealthcheckFailed  = errors.New("snapshot: healthcheck failed")

	// ErrCorrupt is returned when a compressed blob cannot be decompressed.
	ErrCorrupt = errors.New("snapshot: corrupt blob")
)
