package domain

import "errors"

var (
	// ErrRateLimited is returned when a client exceeded its admission window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrMalformedInput wraps body parse failures.
	ErrMalformedInput = errors.New("malformed input")
	// ErrStoreUnavailable wraps durable append failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRedisNotAvailable is returned by stream operations while Redis is unreachable.
	ErrRedisNotAvailable = errors.New("redis is not available")
	// ErrUnknownCategory is returned for log categories the store does not own.
	ErrUnknownCategory = errors.New("unknown log category")
)

// ErrNotFound is returned when a requested stream, group or record does not exist.
var ErrNotFound = errors.New("not found")
