package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/wifipub/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for the in-memory broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "agent.test",
			Port:     1883,
			ClientID: "wifipub-test",
		},
		QoS:            0,
		KeepAlive:      time.Minute,
		ConnectTimeout: 2 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// fakeBroker speaks just enough MQTT 3.1.1 over a net.Pipe to accept one
// client: CONNECT/CONNACK, PUBLISH (with PUBACK for QoS 1) and DISCONNECT.
type fakeBroker struct {
	server net.Conn
	client net.Conn

	returnCode byte

	mu         sync.Mutex
	connect    *packets.ConnectPacket
	published  []*packets.PublishPacket
	disconnect bool

	done chan struct{}
}

func newFakeBroker(returnCode byte) *fakeBroker {
	b := &fakeBroker{returnCode: returnCode, done: make(chan struct{})}
	b.server, b.client = net.Pipe()
	go b.run()
	return b
}

func (b *fakeBroker) dial(context.Context) (net.Conn, error) {
	return b.client, nil
}

func (b *fakeBroker) run() {
	defer close(b.done)
	defer b.server.Close()

	for {
		cp, err := packets.ReadPacket(b.server)
		if err != nil {
			return
		}

		switch p := cp.(type) {
		case *packets.ConnectPacket:
			b.mu.Lock()
			b.connect = p
			b.mu.Unlock()

			ack := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
			ack.ReturnCode = b.returnCode
			if err := ack.Write(b.server); err != nil {
				return
			}
		case *packets.PublishPacket:
			b.mu.Lock()
			b.published = append(b.published, p)
			b.mu.Unlock()

			if p.Qos == 1 {
				ack := packets.NewControlPacket(packets.Puback).(*packets.PubackPacket)
				ack.MessageID = p.MessageID
				if err := ack.Write(b.server); err != nil {
					return
				}
			}
		case *packets.PingreqPacket:
			resp := packets.NewControlPacket(packets.Pingresp)
			if err := resp.Write(b.server); err != nil {
				return
			}
		case *packets.DisconnectPacket:
			b.mu.Lock()
			b.disconnect = true
			b.mu.Unlock()
			return
		}
	}
}

func (b *fakeBroker) getConnect() *packets.ConnectPacket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connect
}

func (b *fakeBroker) getPublished() []*packets.PublishPacket {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*packets.PublishPacket, len(b.published))
	copy(out, b.published)
	return out
}

// waitPublished waits until n publishes were received.
func (b *fakeBroker) waitPublished(t *testing.T, n int) []*packets.PublishPacket {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := b.getPublished(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("broker received %d publishes, want %d", len(b.getPublished()), n)
	return nil
}

func connectTest(t *testing.T, cfg config.MQTTConfig) (*Client, *fakeBroker) {
	t.Helper()
	broker := newFakeBroker(packets.Accepted)
	client, err := Connect(context.Background(), cfg, broker.dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return client, broker
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_OverCustomDial(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "device", Password: "secret"}

	client, broker := connectTest(t, cfg)
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	cp := broker.getConnect()
	if cp == nil {
		t.Fatal("broker did not receive CONNECT")
	}
	if cp.ClientIdentifier != "wifipub-test" {
		t.Errorf("ClientIdentifier = %q, want %q", cp.ClientIdentifier, "wifipub-test")
	}
	if cp.ProtocolVersion != 4 {
		t.Errorf("ProtocolVersion = %d, want 4", cp.ProtocolVersion)
	}
	if !cp.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if cp.Username != "device" || string(cp.Password) != "secret" {
		t.Errorf("credentials = %q/%q, want device/secret", cp.Username, cp.Password)
	}
	if cp.Keepalive != 60 {
		t.Errorf("Keepalive = %d, want 60", cp.Keepalive)
	}
}

func TestConnect_DefaultClientID(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = ""

	client, broker := connectTest(t, cfg)
	defer client.Close()

	id := broker.getConnect().ClientIdentifier
	if !strings.HasPrefix(id, "wifipub-") || len(id) != len("wifipub-")+8 {
		t.Errorf("ClientIdentifier = %q, want wifipub-<8 chars>", id)
	}
	if client.ClientID() != id {
		t.Errorf("ClientID() = %q, want %q", client.ClientID(), id)
	}
}

func TestConnect_Refused(t *testing.T) {
	broker := newFakeBroker(packets.ErrRefusedNotAuthorised)

	_, err := Connect(context.Background(), testConfig(), broker.dial)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DialError(t *testing.T) {
	dialErr := errors.New("agent unreachable")
	dial := func(context.Context) (net.Conn, error) { return nil, dialErr }

	_, err := Connect(context.Background(), testConfig(), dial)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_InvalidQoS(t *testing.T) {
	cfg := testConfig()
	cfg.QoS = 3

	_, err := Connect(context.Background(), cfg, nil)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Connect() error = %v, want ErrInvalidQoS", err)
	}
}

func TestClose(t *testing.T) {
	client, broker := connectTest(t, testConfig())

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}

	select {
	case <-broker.done:
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not see the connection end")
	}
	broker.mu.Lock()
	defer broker.mu.Unlock()
	if !broker.disconnect {
		t.Error("broker did not receive DISCONNECT")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	client, broker := connectTest(t, testConfig())
	defer client.Close()

	payload := []byte{0x00, 0x01, 0x00, 0x00, 0x2a, 0x00, 0x00, 0x00}
	if err := client.Publish(context.Background(), "int32_publisher", payload); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := broker.waitPublished(t, 1)
	if got[0].TopicName != "int32_publisher" {
		t.Errorf("TopicName = %q, want %q", got[0].TopicName, "int32_publisher")
	}
	if string(got[0].Payload) != string(payload) {
		t.Errorf("Payload = %x, want %x", got[0].Payload, payload)
	}
	if got[0].Qos != 0 || got[0].Retain {
		t.Errorf("Qos/Retain = %d/%v, want 0/false", got[0].Qos, got[0].Retain)
	}
}

func TestPublish_QoS1Retained(t *testing.T) {
	cfg := testConfig()
	cfg.QoS = 1
	cfg.Retain = true
	client, broker := connectTest(t, cfg)
	defer client.Close()

	if err := client.Publish(context.Background(), "robot/count", []byte(`{"data":7}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got := broker.waitPublished(t, 1)
	if got[0].Qos != 1 || !got[0].Retain {
		t.Errorf("Qos/Retain = %d/%v, want 1/true", got[0].Qos, got[0].Retain)
	}
}

func TestPublish_Validation(t *testing.T) {
	client, _ := connectTest(t, testConfig())
	defer client.Close()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"wildcard topic", "robot/+", nil, 0, ErrInvalidTopic},
		{"invalid qos", "robot", nil, 3, ErrInvalidQoS},
		{"payload too large", "robot", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.PublishQoS(context.Background(), tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PublishQoS() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_AfterClose(t *testing.T) {
	client, _ := connectTest(t, testConfig())
	_ = client.Close()

	err := client.Publish(context.Background(), "int32_publisher", []byte{0})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	client, _ := connectTest(t, testConfig())
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestConnectionLost(t *testing.T) {
	client, broker := connectTest(t, testConfig())
	defer client.Close()

	lost := make(chan error, 1)
	client.SetOnDisconnect(func(err error) { lost <- err })

	// Broker side drops the link.
	broker.server.Close()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called after link loss")
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after link loss")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"int32_publisher", false},
		{"robot/int32_publisher", false},
		{"", true},
		{"robot/#", true},
		{"a/+/b", true},
		{strings.Repeat("t", maxTopicLength+1), true},
	}
	for _, tt := range tests {
		err := ValidatePublishTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePublishTopic(%.20q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
	}
}

func TestDefaultClientID(t *testing.T) {
	a := DefaultClientID("int32_publisher")
	b := DefaultClientID("int32_publisher")
	if a == b {
		t.Errorf("DefaultClientID() returned %q twice", a)
	}
	if !strings.HasPrefix(a, "int32_publisher-") {
		t.Errorf("DefaultClientID() = %q, want int32_publisher- prefix", a)
	}
	if got := DefaultClientID(""); !strings.HasPrefix(got, "wifipub-") {
		t.Errorf("DefaultClientID(\"\") = %q, want wifipub- prefix", got)
	}
}
