package middleware

import (
	"fmt"
	"strings"
	"sync"
)

// Node is a named identity that owns publishers.
type Node struct {
	support   *Support
	name      string
	namespace string

	mu        sync.Mutex
	finalized bool
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Namespace returns the normalized namespace ("/" for the root).
func (n *Node) Namespace() string { return n.namespace }

// FullyQualifiedName returns namespace and name joined, e.g. "/int32_publisher".
func (n *Node) FullyQualifiedName() string {
	if n.namespace == "/" {
		return "/" + n.name
	}
	return n.namespace + "/" + n.name
}

// InitPublisher creates a publisher for messages described by ts on topic.
//
// Relative topics resolve against the node namespace, "~" expands to the
// node's fully qualified name, and absolute topics (leading "/") are used
// as given.
func (n *Node) InitPublisher(ts TypeSupport, topic string) (*Publisher, error) {
	if n == nil {
		return nil, ErrNotInitialized
	}
	if n.isFinalized() {
		return nil, ErrFinalized
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: type support is nil", ErrSerialize)
	}

	resolved, err := n.resolveTopic(topic)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		node:      n,
		ts:        ts,
		topicName: resolved,
		wireTopic: strings.TrimPrefix(resolved, "/"),
	}, nil
}

// Fini finalizes the node. Publishers created from it stop accepting messages.
func (n *Node) Fini() error {
	if n == nil {
		return ErrNotInitialized
	}
	n.mu.Lock()
	n.finalized = true
	n.mu.Unlock()
	return nil
}

func (n *Node) isFinalized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finalized
}

// resolveTopic expands topic into a fully qualified name.
func (n *Node) resolveTopic(topic string) (string, error) {
	switch {
	case topic == "~":
		return n.FullyQualifiedName(), nil
	case strings.HasPrefix(topic, "~/"):
		topic = n.FullyQualifiedName() + topic[1:]
	case strings.HasPrefix(topic, "/"):
	default:
		if n.namespace == "/" {
			topic = "/" + topic
		} else {
			topic = n.namespace + "/" + topic
		}
	}

	if err := ValidateTopicName(topic); err != nil {
		return "", err
	}
	return topic, nil
}

// ValidateNodeName checks name is non-empty, uses only [A-Za-z0-9_] and
// does not start with a digit.
func ValidateNodeName(name string) error {
	if !validToken(name) {
		return fmt.Errorf("%w: node name %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateTopicName checks a fully qualified or relative topic name:
// "/"-separated tokens, each valid per ValidateNodeName, no empty tokens
// and no trailing separator.
func ValidateTopicName(topic string) error {
	body := strings.TrimPrefix(topic, "/")
	if body == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	for _, tok := range strings.Split(body, "/") {
		if !validToken(tok) {
			return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}

// normalizeNamespace turns "" into "/" and makes relative namespaces absolute.
func normalizeNamespace(ns string) (string, error) {
	if ns == "" || ns == "/" {
		return "/", nil
	}
	if !strings.HasPrefix(ns, "/") {
		ns = "/" + ns
	}
	for _, tok := range strings.Split(ns[1:], "/") {
		if !validToken(tok) {
			return "", fmt.Errorf("%w: namespace %q", ErrInvalidName, ns)
		}
	}
	return ns, nil
}

func validToken(tok string) bool {
	if tok == "" {
		return false
	}
	for i, r := range tok {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
