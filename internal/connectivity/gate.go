package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/wifipub/internal/netmgmt"
)

// DefaultWaitLogInterval is how often AwaitConnection repeats its waiting
// log line.
const DefaultWaitLogInterval = 5 * time.Second

// Config holds the network to join and the wait logging cadence.
type Config struct {
	// Interface is the network interface to connect on (e.g., "wlan0").
	Interface string

	SSID string
	PSK  string

	// Channel is the radio channel. 0 lets the network layer pick.
	Channel int

	Security netmgmt.Security

	// RequestTimeout bounds the connect request submission. Zero means no
	// bound beyond ctx. It never limits AwaitConnection.
	RequestTimeout time.Duration

	// WaitLogInterval is how often AwaitConnection logs that it is still
	// waiting. Default: 5 seconds.
	WaitLogInterval time.Duration
}

// Logger defines the logging interface for the gate.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Gate blocks startup until the network layer reports an IPv4 address.
//
// The connected flag starts false and is set by the address event callback,
// which runs on the network manager's goroutine. It is never reset.
//
// Thread Safety: safe for concurrent use.
type Gate struct {
	mgr    netmgmt.Manager
	cfg    Config
	logger Logger

	connected atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once

	registerOnce sync.Once

	mu          sync.Mutex
	remove      func()
	onConnected []func()
}

// NewGate creates a gate over mgr. Call RegisterEventObserver before
// RequestConnection so the address event cannot be missed.
func NewGate(mgr netmgmt.Manager, cfg Config) *Gate {
	if cfg.WaitLogInterval <= 0 {
		cfg.WaitLogInterval = DefaultWaitLogInterval
	}
	if cfg.Security == "" {
		cfg.Security = netmgmt.SecurityPSK
	}
	return &Gate{
		mgr:    mgr,
		cfg:    cfg,
		logger: noopLogger{},
		ready:  make(chan struct{}),
	}
}

// SetLogger sets the logger for the gate.
func (g *Gate) SetLogger(logger Logger) {
	g.logger = logger
}

// RegisterEventObserver subscribes to IPv4 address events on any interface.
// Registering twice is a no-op.
func (g *Gate) RegisterEventObserver() {
	g.registerOnce.Do(func() {
		// The manager may raise events before AddEventCallback returns, so
		// g.mu must not be held here.
		remove := g.mgr.AddEventCallback(netmgmt.EventIPv4AddrAdd, g.handleEvent)

		g.mu.Lock()
		g.remove = remove
		g.mu.Unlock()

		g.logger.Debug("registered for address events", "mask", netmgmt.EventIPv4AddrAdd.String())
	})
}

// handleEvent marks the gate connected. Every invocation logs; only the
// first one releases waiters and runs OnConnected callbacks.
func (g *Gate) handleEvent(info netmgmt.EventInfo) {
	args := []any{"interface", info.Interface}
	if info.Addr.IsValid() {
		args = append(args, "addr", info.Addr.String())
	}
	g.logger.Info("DHCP connected", args...)

	g.connected.Store(true)
	g.readyOnce.Do(func() {
		close(g.ready)

		g.mu.Lock()
		callbacks := g.onConnected
		g.onConnected = nil
		g.mu.Unlock()

		for _, cb := range callbacks {
			cb()
		}
	})
}

// RequestConnection issues the one-shot connect request. The result is
// logged and returned for information; the address event is what matters.
func (g *Gate) RequestConnection(ctx context.Context) error {
	params := netmgmt.ConnectParams{
		SSID:     g.cfg.SSID,
		Channel:  g.cfg.Channel,
		PSK:      g.cfg.PSK,
		Security: g.cfg.Security,
	}

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	if err := g.mgr.RequestConnect(ctx, g.cfg.Interface, params); err != nil {
		g.logger.Error("connection request failed",
			"interface", g.cfg.Interface,
			"ssid", g.cfg.SSID,
			"error", err,
		)
		return err
	}

	g.logger.Info("connection requested",
		"interface", g.cfg.Interface,
		"ssid", g.cfg.SSID,
		"channel", g.cfg.Channel,
	)
	return nil
}

// AwaitConnection blocks until the gate is connected. There is no timeout: a
// network that never attaches keeps it waiting, with a log line every
// WaitLogInterval. It returns ctx.Err() only when ctx is done first.
func (g *Gate) AwaitConnection(ctx context.Context) error {
	if g.connected.Load() {
		g.logger.Info("connection OK")
		return nil
	}

	g.logger.Info("waiting for connection", "interface", g.cfg.Interface, "ssid", g.cfg.SSID)
	start := time.Now()

	ticker := time.NewTicker(g.cfg.WaitLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ready:
			g.logger.Info("connection OK", "waited", time.Since(start).Round(time.Millisecond))
			return nil
		case <-ctx.Done():
			g.logger.Warn("stopped waiting for connection", "error", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			g.logger.Info("still waiting for connection", "waited", time.Since(start).Round(time.Second))
		}
	}
}

// Establish registers for events, requests the connection and waits for
// attach. onRequest, when non-nil, receives the request result before the
// wait starts. A failed request does not stop the wait.
func (g *Gate) Establish(ctx context.Context, onRequest func(err error)) error {
	g.RegisterEventObserver()
	// Logged by RequestConnection; the network may still attach.
	err := g.RequestConnection(ctx)
	if onRequest != nil {
		onRequest(err)
	}
	return g.AwaitConnection(ctx)
}

// IsConnected reports whether an address event has been received.
func (g *Gate) IsConnected() bool {
	return g.connected.Load()
}

// Ready returns a channel closed on the first connection.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// OnConnected registers cb to run once on the first connection. If the gate
// is already connected cb runs immediately on the calling goroutine.
func (g *Gate) OnConnected(cb func()) {
	g.mu.Lock()
	select {
	case <-g.ready:
		g.mu.Unlock()
		cb()
		return
	default:
	}
	g.onConnected = append(g.onConnected, cb)
	g.mu.Unlock()
}

// Close removes the event subscription. The connected state is kept.
func (g *Gate) Close() {
	g.mu.Lock()
	remove := g.remove
	g.remove = nil
	g.mu.Unlock()

	if remove != nil {
		remove()
	}
}
