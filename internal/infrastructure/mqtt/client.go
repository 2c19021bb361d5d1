package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/wifipub/internal/infrastructure/config"
)

// Client is an MQTT 3.1.1 middleware session built on paho.mqtt.golang.
//
// It publishes serialized messages with the configured QoS and retain flag.
// Auto-reconnect is disabled: once the link drops every Publish returns
// ErrNotConnected and the loss is reported through SetOnDisconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	clientID string

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// onDisconnect is invoked when the connection is lost (optional).
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for connection loss logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect establishes a session with the MQTT broker.
//
// When dial is non-nil the connection is opened through it (the middleware
// transport binding); otherwise paho dials cfg.Broker itself. An empty
// cfg.Broker.ClientID is replaced by DefaultClientID("wifipub").
//
// Parameters:
//   - ctx: Bounds the connect handshake together with cfg.ConnectTimeout
//   - cfg: MQTT configuration from config.yaml
//   - dial: Optional stream opener
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed wrapping the cause
func Connect(ctx context.Context, cfg config.MQTTConfig, dial DialFunc) (*Client, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = DefaultClientID("wifipub")
	}

	c := &Client{
		cfg:      cfg,
		clientID: clientID,
	}

	opts := buildClientOptions(ctx, cfg, clientID, dial)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)

	connectTimeout, _, _ := timeouts(cfg)
	if err := waitForToken(ctx, c.client.Connect(), connectTimeout); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// waitForToken waits for t to complete, for ctx to end, or for timeout.
func waitForToken(ctx context.Context, t pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-t.Done():
		return t.Error()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "client_id", c.clientID, "error", err)
	}

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// ClientID returns the client identifier sent to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// Close disconnects from the MQTT broker, giving pending operations a short
// quiesce period.
//
// Returns:
//   - error: Always nil (connection already closed is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection loss logging.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
