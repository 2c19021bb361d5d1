package middleware

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// defaultDialTimeout applies when TransportParams.DialTimeout is zero.
const defaultDialTimeout = 10 * time.Second

// TransportParams are the caller-supplied parameters handed to a binding's Open.
type TransportParams struct {
	// Network is the net.Dial network, usually "tcp".
	Network string

	// Address is the agent or broker address ("host:port").
	Address string

	// TLS enables TLS on top of the stream when non-nil.
	TLS *tls.Config

	// DialTimeout bounds Open. Zero means 10s.
	DialTimeout time.Duration
}

// OpenFunc opens the byte stream the session runs over. The returned
// connection provides the read, write and close halves of the binding.
type OpenFunc func(ctx context.Context, params TransportParams) (net.Conn, error)

// DialFunc is an OpenFunc bound to its parameters. Sessions receive one of these.
type DialFunc func(ctx context.Context) (net.Conn, error)

// TransportBinding is the custom transport registered with the Runtime.
//
// The session protocol carries its own length-prefixed framing, so a binding
// only has to deliver an ordered, reliable byte stream.
type TransportBinding struct {
	Params TransportParams
	Open   OpenFunc
}

// validate checks the binding has everything InitSupport will need.
func (b TransportBinding) validate() error {
	if b.Open == nil {
		return fmt.Errorf("%w: open function is nil", ErrInvalidTransport)
	}
	if b.Params.Address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidTransport)
	}
	return nil
}

// dialer binds Open to Params, applying the dial timeout.
func (b TransportBinding) dialer() DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		timeout := b.Params.DialTimeout
		if timeout <= 0 {
			timeout = defaultDialTimeout
		}
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := b.Open(dialCtx, b.Params)
		if err != nil {
			return nil, fmt.Errorf("opening transport to %s: %w", b.Params.Address, err)
		}
		return conn, nil
	}
}

// DefaultTransport returns a binding that dials params.Address over
// params.Network ("tcp" when empty), wrapping the stream in TLS when
// params.TLS is set.
func DefaultTransport(params TransportParams) TransportBinding {
	if params.Network == "" {
		params.Network = "tcp"
	}
	return TransportBinding{
		Params: params,
		Open:   openStream,
	}
}

// openStream is the OpenFunc used by DefaultTransport.
func openStream(ctx context.Context, params TransportParams) (net.Conn, error) {
	if params.TLS != nil {
		d := &tls.Dialer{Config: params.TLS}
		return d.DialContext(ctx, params.Network, params.Address)
	}
	var d net.Dialer
	return d.DialContext(ctx, params.Network, params.Address)
}
