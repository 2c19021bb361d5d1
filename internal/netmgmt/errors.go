package netmgmt

import "errors"

// Domain-specific errors for network management.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidParams is returned when connect parameters fail validation.
	ErrInvalidParams = errors.New("netmgmt: invalid connect parameters")

	// ErrConnectRequestFailed is returned when the network layer rejects a
	// connect request.
	ErrConnectRequestFailed = errors.New("netmgmt: connect request failed")

	// ErrClosed is returned when using a manager after Close.
	ErrClosed = errors.New("netmgmt: manager closed")
)
