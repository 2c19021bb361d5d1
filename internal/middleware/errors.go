package middleware

import "errors"

// Domain-specific errors for middleware operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotInitialized is returned when an operation runs on a handle whose
	// creating stage failed or never ran (nil receiver).
	ErrNotInitialized = errors.New("middleware: handle not initialized")

	// ErrNoTransport is returned by InitSupport when no transport binding is set.
	ErrNoTransport = errors.New("middleware: no transport binding registered")

	// ErrInvalidTransport is returned when a transport binding is incomplete.
	ErrInvalidTransport = errors.New("middleware: invalid transport binding")

	// ErrInvalidName is returned for node names or namespaces that do not follow
	// the naming rules.
	ErrInvalidName = errors.New("middleware: invalid name")

	// ErrInvalidTopic is returned for malformed topic names.
	ErrInvalidTopic = errors.New("middleware: invalid topic name")

	// ErrInvalidPeriod is returned when a timer period is not positive.
	ErrInvalidPeriod = errors.New("middleware: timer period must be positive")

	// ErrInvalidCapacity is returned when an executor is created with no handles.
	ErrInvalidCapacity = errors.New("middleware: executor capacity must be positive")

	// ErrExecutorFull is returned when adding a handle beyond executor capacity.
	ErrExecutorFull = errors.New("middleware: executor handle capacity exhausted")

	// ErrFinalized is returned when using a handle after Fini.
	ErrFinalized = errors.New("middleware: handle finalized")

	// ErrSerialize is returned when a message cannot be encoded by its type support.
	ErrSerialize = errors.New("middleware: message serialization failed")
)
