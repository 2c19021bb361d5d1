package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/wifipub/internal/netmgmt"
)

// Network backends.
const (
	// BackendNetworkManager drives Linux NetworkManager through nmcli.
	BackendNetworkManager = "networkmanager"

	// BackendSimulated attaches an in-process interface after a delay.
	// Intended for development and containerised test rigs.
	BackendSimulated = "simulated"
)

// Middleware transports.
const (
	TransportMQTT  = "mqtt"  // MQTT 3.1.1 via paho.mqtt.golang
	TransportMQTT5 = "mqtt5" // MQTT 5 via paho.golang
)

// Payload encodings.
const (
	EncodingCDR  = "cdr"
	EncodingJSON = "json"
)

// Setup policies for the middleware setup pipeline.
const (
	PolicyFailFast   = "fail_fast"
	PolicyBestEffort = "best_effort"
)

// Config is the root configuration structure for wifipub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Network    NetworkConfig    `yaml:"network"`
	Middleware MiddlewareConfig `yaml:"middleware"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DeviceConfig identifies this device in logs and telemetry.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// NetworkConfig contains the wireless network the device attaches to.
type NetworkConfig struct {
	// Backend selects the network management implementation:
	// "networkmanager" or "simulated".
	Backend string `yaml:"backend"`

	// Interface is the wireless interface name (e.g., "wlan0").
	Interface string `yaml:"interface"`

	SSID string `yaml:"ssid"`
	PSK  string `yaml:"psk"`

	// Channel is the radio channel. 0 selects automatically.
	Channel int `yaml:"channel"`

	// Security is one of "none", "psk", "sae".
	// Default: "psk"
	Security string `yaml:"security"`

	// RequestTimeout bounds the connect request submission.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// WaitLogInterval is how often the startup wait repeats its log line.
	// Default: 5s
	WaitLogInterval time.Duration `yaml:"wait_log_interval"`

	NetworkManager NetworkManagerConfig `yaml:"networkmanager"`
	Simulated      SimulatedConfig      `yaml:"simulated"`
}

// NetworkManagerConfig contains settings for the nmcli backend.
type NetworkManagerConfig struct {
	// Binary is the path to nmcli. Default: "nmcli"
	Binary string `yaml:"binary"`

	// PollInterval is how often interface addresses are sampled.
	// Default: 500ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// SecretsDir receives the short-lived passwd-file used to hand the PSK
	// to nmcli. Empty uses the system temp directory.
	SecretsDir string `yaml:"secrets_dir"`
}

// SimulatedConfig contains settings for the simulated backend.
type SimulatedConfig struct {
	// AttachDelay is the time between the connect request and the address event.
	AttachDelay time.Duration `yaml:"attach_delay"`

	// RejectRequests makes every connect request fail (exercises the
	// "request failed, keep waiting" path).
	RejectRequests bool `yaml:"reject_requests"`
}

// MiddlewareConfig selects the messaging middleware binding.
type MiddlewareConfig struct {
	// Transport is "mqtt" (3.1.1) or "mqtt5".
	Transport string `yaml:"transport"`

	// Encoding is the Int32 payload encoding: "cdr" or "json".
	Encoding string `yaml:"encoding"`

	// SetupPolicy is "fail_fast" or "best_effort".
	SetupPolicy string `yaml:"setup_policy"`

	// DialTimeout bounds the transport open.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`
	Retain bool             `yaml:"retain"`

	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientID defaults to "<node_name>-<random>" when empty.
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PublisherConfig contains the periodic publisher settings.
type PublisherConfig struct {
	NodeName  string `yaml:"node_name"`
	Namespace string `yaml:"namespace"`
	Topic     string `yaml:"topic"`

	// Period is the timer period. Default: 1s
	Period time.Duration `yaml:"period"`

	// SpinTimeout is the time slice given to the executor per loop. Default: 100ms
	SpinTimeout time.Duration `yaml:"spin_timeout"`

	// YieldInterval is the pause between executor slices. Default: 100ms
	YieldInterval time.Duration `yaml:"yield_interval"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WIFIPUB_SECTION_KEY
// For example: WIFIPUB_NETWORK_SSID, WIFIPUB_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "wifipub-001",
		},
		Network: NetworkConfig{
			Backend:         BackendNetworkManager,
			Interface:       "wlan0",
			Security:        "psk",
			RequestTimeout:  30 * time.Second,
			WaitLogInterval: 5 * time.Second,
			NetworkManager: NetworkManagerConfig{
				Binary:       "nmcli",
				PollInterval: 500 * time.Millisecond,
			},
			Simulated: SimulatedConfig{
				AttachDelay: 200 * time.Millisecond,
			},
		},
		Middleware: MiddlewareConfig{
			Transport:   TransportMQTT,
			Encoding:    EncodingCDR,
			SetupPolicy: PolicyFailFast,
			DialTimeout: 10 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:            0,
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
		},
		Publisher: PublisherConfig{
			NodeName:      "int32_publisher",
			Topic:         "int32_publisher",
			Period:        time.Second,
			SpinTimeout:   100 * time.Millisecond,
			YieldInterval: 100 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:        "./data/wifipub.db",
			WALMode:     true,
			BusyTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets belong here rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	// Network
	if v := os.Getenv("WIFIPUB_NETWORK_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("WIFIPUB_NETWORK_PSK"); v != "" {
		cfg.Network.PSK = v
	}

	// MQTT
	if v := os.Getenv("WIFIPUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WIFIPUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WIFIPUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("WIFIPUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("WIFIPUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected so an operator sees every mistake in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	errs = append(errs, c.Network.validate()...)

	// Middleware
	switch c.Middleware.Transport {
	case TransportMQTT, TransportMQTT5:
	default:
		errs = append(errs, fmt.Sprintf("middleware.transport %q must be %q or %q", c.Middleware.Transport, TransportMQTT, TransportMQTT5))
	}
	switch c.Middleware.Encoding {
	case EncodingCDR, EncodingJSON:
	default:
		errs = append(errs, fmt.Sprintf("middleware.encoding %q must be %q or %q", c.Middleware.Encoding, EncodingCDR, EncodingJSON))
	}
	switch c.Middleware.SetupPolicy {
	case PolicyFailFast, PolicyBestEffort:
	default:
		errs = append(errs, fmt.Sprintf("middleware.setup_policy %q must be %q or %q", c.Middleware.SetupPolicy, PolicyFailFast, PolicyBestEffort))
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Publisher
	if c.Publisher.NodeName == "" {
		errs = append(errs, "publisher.node_name is required")
	}
	if c.Publisher.Topic == "" {
		errs = append(errs, "publisher.topic is required")
	}
	if c.Publisher.Period <= 0 {
		errs = append(errs, "publisher.period must be positive")
	}
	if c.Publisher.SpinTimeout <= 0 {
		errs = append(errs, "publisher.spin_timeout must be positive")
	}
	if c.Publisher.YieldInterval < 0 {
		errs = append(errs, "publisher.yield_interval must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks the network section.
func (n NetworkConfig) validate() []string {
	var errs []string

	switch n.Backend {
	case BackendNetworkManager, BackendSimulated:
	default:
		errs = append(errs, fmt.Sprintf("network.backend %q must be %q or %q", n.Backend, BackendNetworkManager, BackendSimulated))
	}

	if n.SSID == "" {
		errs = append(errs, "network.ssid is required (set WIFIPUB_NETWORK_SSID environment variable)")
	} else if len(n.SSID) > netmgmt.MaxSSIDLength {
		errs = append(errs, fmt.Sprintf("network.ssid must be at most %d bytes", netmgmt.MaxSSIDLength))
	}

	switch strings.ToLower(n.Security) {
	case "none":
	case "psk", "sae":
		if n.PSK == "" {
			errs = append(errs, "network.psk is required (set WIFIPUB_NETWORK_PSK environment variable)")
		} else if len(n.PSK) < netmgmt.MinPSKLength || len(n.PSK) > netmgmt.MaxPSKLength {
			errs = append(errs, fmt.Sprintf("network.psk must be between %d and %d bytes", netmgmt.MinPSKLength, netmgmt.MaxPSKLength))
		}
	default:
		errs = append(errs, fmt.Sprintf("network.security %q must be none, psk or sae", n.Security))
	}

	if n.Channel < 0 || n.Channel > netmgmt.MaxChannel {
		errs = append(errs, fmt.Sprintf("network.channel must be between 0 and %d", netmgmt.MaxChannel))
	}

	if n.Backend == BackendNetworkManager && n.NetworkManager.PollInterval <= 0 {
		errs = append(errs, "network.networkmanager.poll_interval must be positive")
	}

	return errs
}

// BrokerAddress returns the broker "host:port" pair.
func (c *Config) BrokerAddress() string {
	return c.MQTT.BrokerAddress()
}

// BrokerAddress returns the broker "host:port" pair.
func (m MQTTConfig) BrokerAddress() string {
	return net.JoinHostPort(m.Broker.Host, strconv.Itoa(m.Broker.Port))
}
