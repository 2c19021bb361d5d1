package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/wifipub/internal/netmgmt"
)

// validConfig returns a defaultConfig with the required secrets filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Network.SSID = "workshop"
	cfg.Network.PSK = "correct-horse"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  id: "bench-01"
network:
  backend: "simulated"
  ssid: "workshop"
  psk: "correct-horse"
  simulated:
    attach_delay: 50ms
middleware:
  transport: "mqtt5"
  encoding: "json"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
publisher:
  topic: "counter"
  period: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "bench-01" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "bench-01")
	}
	if cfg.Network.Backend != BackendSimulated {
		t.Errorf("Network.Backend = %q, want %q", cfg.Network.Backend, BackendSimulated)
	}
	if cfg.Network.Simulated.AttachDelay != 50*time.Millisecond {
		t.Errorf("Simulated.AttachDelay = %v, want 50ms", cfg.Network.Simulated.AttachDelay)
	}
	if cfg.Middleware.Transport != TransportMQTT5 {
		t.Errorf("Middleware.Transport = %q, want %q", cfg.Middleware.Transport, TransportMQTT5)
	}
	if cfg.Publisher.Period != 250*time.Millisecond {
		t.Errorf("Publisher.Period = %v, want 250ms", cfg.Publisher.Period)
	}
	if got := cfg.BrokerAddress(); got != "broker.local:1884" {
		t.Errorf("BrokerAddress() = %q, want %q", got, "broker.local:1884")
	}

	// Untouched sections keep their defaults.
	if cfg.Publisher.NodeName != "int32_publisher" {
		t.Errorf("Publisher.NodeName = %q, want default", cfg.Publisher.NodeName)
	}
	if cfg.Publisher.SpinTimeout != 100*time.Millisecond {
		t.Errorf("Publisher.SpinTimeout = %v, want 100ms", cfg.Publisher.SpinTimeout)
	}
	if cfg.Middleware.SetupPolicy != PolicyFailFast {
		t.Errorf("Middleware.SetupPolicy = %q, want %q", cfg.Middleware.SetupPolicy, PolicyFailFast)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
network:
  backend: "simulated"
`)
	t.Setenv("WIFIPUB_NETWORK_SSID", "from-env")
	t.Setenv("WIFIPUB_NETWORK_PSK", "env-secret-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Network.SSID != "from-env" {
		t.Errorf("Network.SSID = %q, want %q", cfg.Network.SSID, "from-env")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
network:
  backend: "simulated"
  ssid: ""
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for empty ssid, got nil")
	}
	if !strings.Contains(err.Error(), "network.ssid") {
		t.Errorf("Load() error = %v, want mention of network.ssid", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(_ *Config) {}},
		{name: "open network without psk", mutate: func(c *Config) { c.Network.Security = "none"; c.Network.PSK = "" }},
		{name: "missing device id", mutate: func(c *Config) { c.Device.ID = "" }, wantErr: "device.id"},
		{name: "unknown backend", mutate: func(c *Config) { c.Network.Backend = "wpa" }, wantErr: "network.backend"},
		{name: "ssid too long", mutate: func(c *Config) { c.Network.SSID = strings.Repeat("s", 33) }, wantErr: "network.ssid"},
		{name: "missing psk", mutate: func(c *Config) { c.Network.PSK = "" }, wantErr: "network.psk"},
		{name: "psk too short", mutate: func(c *Config) { c.Network.PSK = "short" }, wantErr: "network.psk"},
		{name: "unknown security", mutate: func(c *Config) { c.Network.Security = "wep" }, wantErr: "network.security"},
		{name: "channel out of range", mutate: func(c *Config) { c.Network.Channel = 300 }, wantErr: "network.channel"},
		{name: "ssid at limit", mutate: func(c *Config) { c.Network.SSID = strings.Repeat("s", netmgmt.MaxSSIDLength) }},
		{name: "psk at upper limit", mutate: func(c *Config) { c.Network.PSK = strings.Repeat("p", netmgmt.MaxPSKLength) }},
		{name: "psk too long", mutate: func(c *Config) { c.Network.PSK = strings.Repeat("p", netmgmt.MaxPSKLength+1) }, wantErr: "network.psk"},
		{name: "highest channel", mutate: func(c *Config) { c.Network.Channel = netmgmt.MaxChannel }},
		{name: "negative channel", mutate: func(c *Config) { c.Network.Channel = -1 }, wantErr: "network.channel"},
		{name: "unknown transport", mutate: func(c *Config) { c.Middleware.Transport = "dds" }, wantErr: "middleware.transport"},
		{name: "unknown encoding", mutate: func(c *Config) { c.Middleware.Encoding = "xml" }, wantErr: "middleware.encoding"},
		{name: "unknown policy", mutate: func(c *Config) { c.Middleware.SetupPolicy = "retry" }, wantErr: "middleware.setup_policy"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port", mutate: func(c *Config) { c.MQTT.Broker.Port = 70000 }, wantErr: "mqtt.broker.port"},
		{name: "zero period", mutate: func(c *Config) { c.Publisher.Period = 0 }, wantErr: "publisher.period"},
		{name: "zero spin timeout", mutate: func(c *Config) { c.Publisher.SpinTimeout = 0 }, wantErr: "publisher.spin_timeout"},
		{name: "missing topic", mutate: func(c *Config) { c.Publisher.Topic = "" }, wantErr: "publisher.topic"},
		{name: "database without path", mutate: func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" }, wantErr: "database.path"},
		{name: "influxdb without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Org = "o"; c.InfluxDB.Bucket = "b" }, wantErr: "influxdb.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("WIFIPUB_NETWORK_SSID", "env-ssid")
	t.Setenv("WIFIPUB_NETWORK_PSK", "env-psk-value")
	t.Setenv("WIFIPUB_MQTT_HOST", "mqtt.example.com")
	t.Setenv("WIFIPUB_MQTT_USERNAME", "testuser")
	t.Setenv("WIFIPUB_MQTT_PASSWORD", "testpass")
	t.Setenv("WIFIPUB_DATABASE_PATH", "/custom/path.db")
	t.Setenv("WIFIPUB_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	checks := []struct {
		field, got, want string
	}{
		{"Network.SSID", cfg.Network.SSID, "env-ssid"},
		{"Network.PSK", cfg.Network.PSK, "env-psk-value"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Publisher.Period != time.Second {
		t.Errorf("defaultConfig Publisher.Period = %v, want 1s", cfg.Publisher.Period)
	}
	if cfg.Publisher.YieldInterval != 100*time.Millisecond {
		t.Errorf("defaultConfig Publisher.YieldInterval = %v, want 100ms", cfg.Publisher.YieldInterval)
	}
	if cfg.Publisher.Namespace != "" {
		t.Errorf("defaultConfig Publisher.Namespace = %q, want empty", cfg.Publisher.Namespace)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Network.Channel != 0 {
		t.Errorf("defaultConfig Network.Channel = %d, want 0 (auto)", cfg.Network.Channel)
	}
}

// Load-time checks and the connect request must accept the same networks.
func TestValidate_AgreesWithConnectParams(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		psk      string
		security string
		channel  int
	}{
		{name: "typical", ssid: "workshop", psk: "correct-horse", security: "psk", channel: 6},
		{name: "longest ssid", ssid: strings.Repeat("s", 32), psk: "correct-horse", security: "sae"},
		{name: "ssid over limit", ssid: strings.Repeat("s", 33), psk: "correct-horse", security: "psk"},
		{name: "shortest psk", ssid: "workshop", psk: "12345678", security: "psk"},
		{name: "psk under limit", ssid: "workshop", psk: "1234567", security: "psk"},
		{name: "psk over limit", ssid: "workshop", psk: strings.Repeat("p", 65), security: "sae"},
		{name: "open network", ssid: "workshop", security: "none", channel: 233},
		{name: "channel over limit", ssid: "workshop", security: "none", channel: 234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Network.SSID = tt.ssid
			cfg.Network.PSK = tt.psk
			cfg.Network.Security = tt.security
			cfg.Network.Channel = tt.channel

			params := netmgmt.ConnectParams{
				SSID:     tt.ssid,
				PSK:      tt.psk,
				Security: netmgmt.Security(tt.security),
				Channel:  tt.channel,
			}

			cfgErr := cfg.Validate()
			paramsErr := params.Validate()
			if (cfgErr == nil) != (paramsErr == nil) {
				t.Errorf("Config.Validate() = %v, ConnectParams.Validate() = %v; want both nil or both non-nil", cfgErr, paramsErr)
			}
		})
	}
}
