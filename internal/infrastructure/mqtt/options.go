package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/wifipub/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// protocolVersion pins MQTT 3.1.1 so a failed handshake is not retried
	// as 3.1 over a second dial.
	protocolVersion = 4

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// DialFunc opens the byte stream the MQTT session runs over.
type DialFunc func(ctx context.Context) (net.Conn, error)

// timeouts returns the configured timeouts with defaults filled in.
func timeouts(cfg config.MQTTConfig) (connect, publish, keepAlive time.Duration) {
	connect, publish, keepAlive = cfg.ConnectTimeout, cfg.PublishTimeout, cfg.KeepAlive
	if connect <= 0 {
		connect = defaultConnectTimeout
	}
	if publish <= 0 {
		publish = defaultPublishTimeout
	}
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return connect, publish, keepAlive
}

// buildClientOptions creates paho MQTT options from wifipub config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials
//   - Clean session, no auto-reconnect and no connect retry
//   - The custom open-connection function when dial is set, so the session
//     runs over the registered transport instead of paho's own dialer
func buildClientOptions(ctx context.Context, cfg config.MQTTConfig, clientID string, dial DialFunc) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s", scheme, cfg.BrokerAddress()))

	opts.SetClientID(clientID)
	opts.SetProtocolVersion(protocolVersion)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// A dropped link is terminal for this process.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	connectTimeout, _, keepAlive := timeouts(cfg)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	if dial != nil {
		opts.SetCustomOpenConnectionFn(func(_ *url.URL, _ pahomqtt.ClientOptions) (net.Conn, error) {
			return dial(ctx)
		})
	}

	return opts
}
