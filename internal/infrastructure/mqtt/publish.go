package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic with the configured QoS and retain flag.
// It satisfies the middleware session contract.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.PublishQoS(ctx, topic, payload, byte(c.cfg.QoS), c.cfg.Retain)
}

// PublishQoS sends a message to the specified MQTT topic.
//
// Parameters:
//   - ctx: Cancels the wait for acknowledgement
//   - topic: The topic to publish to (e.g., "int32_publisher")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) PublishQoS(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	_, publishTimeout, _ := timeouts(c.cfg)
	token := c.client.Publish(topic, qos, retained, payload)
	if err := waitForToken(ctx, token, publishTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
