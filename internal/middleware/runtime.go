package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is a connected middleware session: the component that moves
// serialized messages to the agent or broker over the transport binding.
type Session interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// SessionFactory opens a Session over the byte stream produced by dial.
type SessionFactory func(ctx context.Context, dial DialFunc) (Session, error)

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the clock used by timers and executors created from the
// runtime's support contexts. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(r *Runtime) {
		if c != nil {
			r.clock = c
		}
	}
}

// Runtime holds process-wide middleware state: the registered transport
// binding and the session factory.
//
// Thread Safety: safe for concurrent use.
type Runtime struct {
	newSession SessionFactory
	clock      Clock

	mu      sync.Mutex
	binding *TransportBinding
}

// NewRuntime creates a Runtime that opens sessions with newSession.
func NewRuntime(newSession SessionFactory, opts ...Option) *Runtime {
	r := &Runtime{
		newSession: newSession,
		clock:      SystemClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clock returns the runtime clock.
func (r *Runtime) Clock() Clock {
	return r.clock
}

// SetCustomTransport registers the transport binding used by subsequent
// InitSupport calls. It replaces any previous binding.
func (r *Runtime) SetCustomTransport(b TransportBinding) error {
	if err := b.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.binding = &b
	r.mu.Unlock()
	return nil
}

// InitSupport opens a session over the registered transport and returns the
// support context that owns it.
func (r *Runtime) InitSupport(ctx context.Context) (*Support, error) {
	r.mu.Lock()
	binding := r.binding
	r.mu.Unlock()

	if binding == nil {
		return nil, ErrNoTransport
	}
	if r.newSession == nil {
		return nil, fmt.Errorf("%w: no session factory", ErrInvalidTransport)
	}

	session, err := r.newSession(ctx, binding.dialer())
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	return &Support{
		session: session,
		clock:   r.clock,
	}, nil
}

// Support is the initialized middleware context. Nodes, timers and executors
// are created from it and share its session and clock.
type Support struct {
	session Session
	clock   Clock

	mu        sync.Mutex
	finalized bool
}

// Session returns the underlying session (nil on a nil Support).
func (s *Support) Session() Session {
	if s == nil {
		return nil
	}
	return s.session
}

// InitNode creates a node with the given name and namespace.
// An empty namespace places the node at the root ("/").
func (s *Support) InitNode(name, namespace string) (*Node, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if s.isFinalized() {
		return nil, ErrFinalized
	}
	if err := ValidateNodeName(name); err != nil {
		return nil, err
	}
	ns, err := normalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}
	return &Node{support: s, name: name, namespace: ns}, nil
}

// InitTimer creates a timer firing every period. The first fire is one
// period after creation.
func (s *Support) InitTimer(period time.Duration, callback TimerCallback) (*Timer, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if s.isFinalized() {
		return nil, ErrFinalized
	}
	return newTimer(s.clock, period, callback)
}

// InitExecutor creates an executor with room for handles timers.
func (s *Support) InitExecutor(handles int) (*Executor, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if s.isFinalized() {
		return nil, ErrFinalized
	}
	if handles <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Executor{
		clock:    s.clock,
		capacity: handles,
	}, nil
}

// Fini closes the session. Calling Fini twice is a no-op.
func (s *Support) Fini() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return nil
	}
	s.finalized = true
	s.mu.Unlock()

	if err := s.session.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

func (s *Support) isFinalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}
