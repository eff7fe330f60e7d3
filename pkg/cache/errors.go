package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNotFound is returned when a key does not exist in the cache or has expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrClosed is returned when an operation is attempted on a closed cache.
	ErrClosed = errors.New("cache: closed")

	// ErrInvalidArgument is returned for empty keys and other malformed arguments.
	ErrInvalidArgument = errors.New("cache: invalid argument")

	// ErrPayloadTooLarge is returned when a single value exceeds the size budget on its own.
	ErrPayloadTooLarge = errors.New("cache: payload exceeds size budget")

	// ErrInvalidConfig is returned by New and Validate for unusable configurations.
	ErrInvalidConfig = errors.New("cache: invalid configuration")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("cache: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")
)
