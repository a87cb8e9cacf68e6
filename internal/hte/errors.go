package hte

import "errors"

// Domain errors for the hte package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, hte.ErrAlreadyInUse) {
//	    // another consumer holds the channel
//	}
var (
	// ErrInvalidArgument is returned for a bad line id, a nil required
	// callback, or a bounds violation.
	ErrInvalidArgument = errors.New("hte: invalid argument")

	// ErrAlreadyInUse is returned when requesting a channel that is
	// already registered, or registering a provider name twice.
	ErrAlreadyInUse = errors.New("hte: already in use")

	// ErrNotRegistered is returned when releasing, enabling or disabling
	// a channel that is not currently registered.
	ErrNotRegistered = errors.New("hte: not registered")

	// ErrDeviceGone is returned when the target provider is mid-teardown
	// or was never registered.
	ErrDeviceGone = errors.New("hte: device gone")

	// ErrResourceExhausted is returned when the engine cannot allocate
	// the resources a request needs.
	ErrResourceExhausted = errors.New("hte: resource exhausted")

	// ErrUnsupported is returned when a provider does not implement an
	// optional capability, such as clock source information.
	ErrUnsupported = errors.New("hte: not supported")
)
