package mqtt5

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/nerrad567/wifipub/internal/infrastructure/config"
	"github.com/nerrad567/wifipub/internal/infrastructure/mqtt"
)

// Connection constants.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second
	maxQoS                = 2
)

// DialFunc opens the byte stream the session runs over.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Client is an MQTT 5 middleware session built on paho.golang.
//
// paho.golang runs over a connection it is given, so the transport binding
// maps directly onto it. There is no reconnect; once Close is called, the
// stream fails, or the broker sends DISCONNECT, the session reports
// ErrNotConnected.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	client   *paho.Client
	conn     net.Conn
	cfg      config.MQTTConfig
	clientID string

	mu        sync.RWMutex
	connected bool
	closed    bool
	lost      error
}

// Connect opens a stream with dial (or a TCP/TLS dial to cfg.Broker when
// dial is nil) and performs the MQTT 5 CONNECT exchange on it.
func Connect(ctx context.Context, cfg config.MQTTConfig, dial DialFunc) (*Client, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	if dial == nil {
		dial = brokerDialer(cfg)
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = mqtt.DefaultClientID("wifipub")
	}

	c := &Client{
		conn:     conn,
		cfg:      cfg,
		clientID: clientID,
	}
	c.client = paho.NewClient(paho.ClientConfig{
		Conn:          conn,
		OnClientError: c.linkLost,
		OnServerDisconnect: func(d *paho.Disconnect) {
			c.linkLost(fmt.Errorf("server disconnect, reason code 0x%02x", d.ReasonCode))
		},
	})

	ack, err := c.client.Connect(ctx, buildConnect(cfg, clientID))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if ack != nil && ack.ReasonCode >= 0x80 {
		conn.Close()
		return nil, fmt.Errorf("%w: reason code 0x%02x", ErrConnectionFailed, ack.ReasonCode)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// buildConnect creates the CONNECT packet: clean start, keepalive and
// optional credentials.
func buildConnect(cfg config.MQTTConfig, clientID string) *paho.Connect {
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	cp := &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  uint16(keepAlive / time.Second),
		CleanStart: true,
	}
	if cfg.Auth.Username != "" {
		cp.Username = cfg.Auth.Username
		cp.UsernameFlag = true
		cp.Password = []byte(cfg.Auth.Password)
		cp.PasswordFlag = true
	}
	return cp
}

// brokerDialer dials cfg.Broker directly over TCP, with TLS when enabled.
func brokerDialer(cfg config.MQTTConfig) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		addr := cfg.BrokerAddress()
		if cfg.Broker.TLS {
			d := &tls.Dialer{Config: &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: cfg.Broker.Host,
			}}
			return d.DialContext(ctx, "tcp", addr)
		}
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

// ClientID returns the client identifier sent to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// Publish sends payload to topic with the configured QoS and retain flag.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := mqtt.ValidatePublishTopic(topic); err != nil {
		return err
	}
	if err := c.notConnected(); err != nil {
		return err
	}

	timeout := c.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(c.cfg.QoS),
		Retain:  c.cfg.Retain,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if resp != nil && resp.ReasonCode >= 0x80 {
		return fmt.Errorf("%w: reason code 0x%02x", ErrPublishFailed, resp.ReasonCode)
	}
	return nil
}

// linkLost marks the session dead after paho reports a stream error or a
// server DISCONNECT. paho has already stopped its workers by then.
func (c *Client) linkLost(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.connected = false
	if c.lost == nil {
		c.lost = err
	}
}

// Close sends DISCONNECT (normal disconnection) through paho, which then
// closes the stream and waits for its workers. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		// paho closed the stream itself when the link was lost.
		return nil
	}
	if err := c.client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		c.conn.Close()
		return fmt.Errorf("mqtt5 disconnect: %w", err)
	}
	return nil
}

// HealthCheck reports whether the session is still open.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt5 health check: %w", ctx.Err())
	default:
	}
	return c.notConnected()
}

// IsConnected returns the session state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// notConnected returns nil while the session is up, otherwise ErrNotConnected
// carrying the link-loss cause when there is one.
func (c *Client) notConnected() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.connected:
		return nil
	case c.lost != nil:
		return fmt.Errorf("%w: %w", ErrNotConnected, c.lost)
	default:
		return ErrNotConnected
	}
}
