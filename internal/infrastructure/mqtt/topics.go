package mqtt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxTopicLength is the MQTT limit on topic name length in bytes.
const maxTopicLength = 65535

// ValidatePublishTopic checks topic is usable as a publish topic: non-empty,
// within the length limit, and free of the "+" and "#" wildcards.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidTopic, len(topic), maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#\x00") {
		return fmt.Errorf("%w: %q contains a wildcard or NUL", ErrInvalidTopic, topic)
	}
	return nil
}

// DefaultClientID returns "<prefix>-<8 hex chars>". Brokers drop the older
// session when two clients share an id, so every process gets a fresh one.
func DefaultClientID(prefix string) string {
	if prefix == "" {
		prefix = "wifipub"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}
