package mqtt5

import "errors"

// Domain-specific errors for MQTT 5 operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing on a closed session.
	ErrNotConnected = errors.New("mqtt5: client not connected")

	// ErrConnectionFailed is returned when dialing or the CONNECT exchange fails.
	ErrConnectionFailed = errors.New("mqtt5: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt5: publish failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	ErrInvalidQoS = errors.New("mqtt5: invalid QoS level (must be 0, 1, or 2)")
)
