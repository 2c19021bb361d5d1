package mqtt5

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/packets"
	"go.uber.org/goleak"

	"github.com/nerrad567/wifipub/internal/infrastructure/config"
	"github.com/nerrad567/wifipub/internal/infrastructure/mqtt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testServer accepts one MQTT 5 client over a net.Pipe.
type testServer struct {
	conn       net.Conn
	clientConn net.Conn
	reasonCode byte

	mu         sync.Mutex
	connect    *packets.Connect
	published  []*packets.Publish
	disconnect bool

	done chan struct{}
}

func newTestServer(reasonCode byte) *testServer {
	s := &testServer{reasonCode: reasonCode, done: make(chan struct{})}
	s.conn, s.clientConn = net.Pipe()
	go s.run()
	return s
}

func (s *testServer) dial(context.Context) (net.Conn, error) {
	return s.clientConn, nil
}

func (s *testServer) stop() {
	s.conn.Close()
	<-s.done
}

func (s *testServer) run() {
	defer close(s.done)

	for {
		recv, err := packets.ReadPacket(s.conn)
		if err != nil {
			return
		}

		switch recv.Type {
		case packets.CONNECT:
			s.mu.Lock()
			s.connect = recv.Content.(*packets.Connect)
			s.mu.Unlock()

			ack := &packets.Connack{ReasonCode: s.reasonCode, Properties: &packets.Properties{}}
			if _, err := ack.WriteTo(s.conn); err != nil {
				return
			}
		case packets.PUBLISH:
			p := recv.Content.(*packets.Publish)
			s.mu.Lock()
			s.published = append(s.published, p)
			s.mu.Unlock()

			if p.QoS == 1 {
				ack := &packets.Puback{PacketID: p.PacketID, ReasonCode: packets.PubackSuccess, Properties: &packets.Properties{}}
				if _, err := ack.WriteTo(s.conn); err != nil {
					return
				}
			}
		case packets.PINGREQ:
			if _, err := packets.NewControlPacket(packets.PINGRESP).WriteTo(s.conn); err != nil {
				return
			}
		case packets.DISCONNECT:
			s.mu.Lock()
			s.disconnect = true
			s.mu.Unlock()
		}
	}
}

func (s *testServer) getPublished() []*packets.Publish {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*packets.Publish(nil), s.published...)
}

func (s *testServer) waitPublished(t *testing.T, n int) []*packets.Publish {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.getPublished(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server received %d publishes, want %d", len(s.getPublished()), n)
	return nil
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker:         config.MQTTBrokerConfig{Host: "agent.test", Port: 1883, ClientID: "wifipub-test"},
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 2 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

func TestConnect(t *testing.T) {
	srv := newTestServer(0)
	defer srv.stop()

	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "device", Password: "secret"}

	client, err := Connect(context.Background(), cfg, srv.dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	srv.mu.Lock()
	cp := srv.connect
	srv.mu.Unlock()
	if cp == nil {
		t.Fatal("server did not receive CONNECT")
	}
	if cp.ClientID != "wifipub-test" {
		t.Errorf("ClientID = %q, want %q", cp.ClientID, "wifipub-test")
	}
	if cp.KeepAlive != 30 || !cp.CleanStart {
		t.Errorf("KeepAlive/CleanStart = %d/%v, want 30/true", cp.KeepAlive, cp.CleanStart)
	}
	if cp.Username != "device" || string(cp.Password) != "secret" {
		t.Errorf("credentials = %q/%q, want device/secret", cp.Username, cp.Password)
	}
}

func TestConnect_Refused(t *testing.T) {
	srv := newTestServer(0x87) // not authorized
	defer srv.stop()

	_, err := Connect(context.Background(), testConfig(), srv.dial)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DialError(t *testing.T) {
	dial := func(context.Context) (net.Conn, error) { return nil, errors.New("no route") }

	_, err := Connect(context.Background(), testConfig(), dial)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_InvalidQoS(t *testing.T) {
	cfg := testConfig()
	cfg.QoS = -1

	if _, err := Connect(context.Background(), cfg, nil); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Connect() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name   string
		qos    int
		retain bool
	}{
		{"qos0", 0, false},
		{"qos1 retained", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(0)
			defer srv.stop()

			cfg := testConfig()
			cfg.QoS = tt.qos
			cfg.Retain = tt.retain

			client, err := Connect(context.Background(), cfg, srv.dial)
			if err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			defer client.Close()

			payload := []byte{0x00, 0x01, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00}
			if err := client.Publish(context.Background(), "int32_publisher", payload); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			got := srv.waitPublished(t, 1)
			if got[0].Topic != "int32_publisher" || string(got[0].Payload) != string(payload) {
				t.Errorf("publish = %q %x", got[0].Topic, got[0].Payload)
			}
			if int(got[0].QoS) != tt.qos || got[0].Retain != tt.retain {
				t.Errorf("QoS/Retain = %d/%v, want %d/%v", got[0].QoS, got[0].Retain, tt.qos, tt.retain)
			}
		})
	}
}

func TestPublish_InvalidTopic(t *testing.T) {
	srv := newTestServer(0)
	defer srv.stop()

	client, err := Connect(context.Background(), testConfig(), srv.dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.Publish(context.Background(), "robot/#", nil); !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want mqtt.ErrInvalidTopic", err)
	}
}

func TestClose(t *testing.T) {
	srv := newTestServer(0)
	defer srv.stop()

	client, err := Connect(context.Background(), testConfig(), srv.dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case <-srv.done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not see the stream close")
	}
	srv.mu.Lock()
	gotDisconnect := srv.disconnect
	srv.mu.Unlock()
	if !gotDisconnect {
		t.Error("server did not receive DISCONNECT")
	}

	if err := client.Publish(context.Background(), "int32_publisher", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestBrokerDropsLink(t *testing.T) {
	srv := newTestServer(0)

	client, err := Connect(context.Background(), testConfig(), srv.dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	srv.stop()

	deadline := time.Now().Add(2 * time.Second)
	for client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if client.IsConnected() {
		t.Fatal("IsConnected() = true after the broker closed the stream")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := client.Publish(context.Background(), "int32_publisher", []byte{1, 0, 0, 0}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() after link loss error = %v", err)
	}
}

func TestServerDisconnect(t *testing.T) {
	srv := newTestServer(0)
	defer srv.stop()

	client, err := Connect(context.Background(), testConfig(), srv.dial)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Server takeover: another client connected with the same identifier.
	d := &packets.Disconnect{ReasonCode: 0x8E, Properties: &packets.Properties{}}
	if _, err := d.WriteTo(srv.conn); err != nil {
		t.Fatalf("write DISCONNECT: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}
