package middleware

import (
	"context"
)

// Publisher sends messages of a single type to a single topic.
type Publisher struct {
	node      *Node
	ts        TypeSupport
	topicName string
	wireTopic string

	finalized bool
}

// TopicName returns the fully qualified topic name (e.g., "/int32_publisher").
func (p *Publisher) TopicName() string { return p.topicName }

// WireTopic returns the topic as sent on the session (no leading "/").
func (p *Publisher) WireTopic() string { return p.wireTopic }

// TypeName returns the schema identifier of the published type.
func (p *Publisher) TypeName() string { return p.ts.TypeName() }

// Publish serializes msg and hands it to the session. There is no delivery
// confirmation beyond what the session's QoS provides.
func (p *Publisher) Publish(ctx context.Context, msg any) error {
	if p == nil {
		return ErrNotInitialized
	}
	if p.finalized || p.node.isFinalized() || p.node.support.isFinalized() {
		return ErrFinalized
	}

	payload, err := p.ts.Serialize(msg)
	if err != nil {
		return err
	}
	return p.node.support.session.Publish(ctx, p.wireTopic, payload)
}

// Fini finalizes the publisher.
func (p *Publisher) Fini() error {
	if p == nil {
		return ErrNotInitialized
	}
	p.finalized = true
	return nil
}
