package tsdb

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrConnectionFailed indicates the startup health probe failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrWriteFailed indicates a batch flush failed; delivered via the
	// SetOnError callback.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrDisabled indicates the tsdb section is disabled in config.
	ErrDisabled = errors.New("tsdb: disabled in configuration")
)
