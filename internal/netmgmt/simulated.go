package netmgmt

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"
)

// defaultSimulatedAddr is the address handed out by a Simulated manager.
var defaultSimulatedAddr = netip.MustParseAddr("192.168.4.2")

// ConnectRequest records one RequestConnect call on a Simulated manager.
type ConnectRequest struct {
	Interface string
	Params    ConnectParams
}

// SimulatedOption configures a Simulated manager.
type SimulatedOption func(*Simulated)

// WithAttachDelay sets the delay between an accepted connect request and the
// address event. A negative delay disables automatic attach; tests then
// drive events with Raise.
func WithAttachDelay(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.attachDelay = d }
}

// WithRejectRequests makes every connect request fail.
func WithRejectRequests(reject bool) SimulatedOption {
	return func(s *Simulated) { s.reject = reject }
}

// WithAddress sets the IPv4 address reported on attach.
func WithAddress(addr netip.Addr) SimulatedOption {
	return func(s *Simulated) { s.addr = addr }
}

// Simulated is an in-process Manager. An accepted connect request raises
// EventLinkUp and then EventIPv4AddrAdd after the attach delay, on the
// manager's own goroutine.
//
// Thread Safety: safe for concurrent use.
type Simulated struct {
	bus eventBus

	attachDelay time.Duration
	reject      bool
	addr        netip.Addr
	logger      Logger

	mu       sync.Mutex
	requests []ConnectRequest
	closed   bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSimulated creates a simulated network manager.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		attachDelay: 200 * time.Millisecond,
		addr:        defaultSimulatedAddr,
		logger:      noopLogger{},
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger sets the logger for the manager.
func (s *Simulated) SetLogger(logger Logger) {
	s.logger = logger
}

// AddEventCallback implements Manager.
func (s *Simulated) AddEventCallback(mask Event, cb EventCallback) func() {
	return s.bus.add(mask, cb)
}

// RequestConnect validates params, records the request and schedules the
// attach events.
func (s *Simulated) RequestConnect(ctx context.Context, iface string, params ConnectParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.requests = append(s.requests, ConnectRequest{Interface: iface, Params: params})
	schedule := !s.reject && s.attachDelay >= 0
	if schedule {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if s.reject {
		return fmt.Errorf("%w: simulated rejection for %q", ErrConnectRequestFailed, params.SSID)
	}

	s.logger.Debug("simulated connect accepted", "interface", iface, "ssid", params.SSID, "attach_delay", s.attachDelay)

	if schedule {
		go s.attach(iface)
	}
	return nil
}

// attach raises the link and address events after the attach delay.
func (s *Simulated) attach(iface string) {
	defer s.wg.Done()

	timer := time.NewTimer(s.attachDelay)
	defer timer.Stop()

	select {
	case <-s.done:
		return
	case <-timer.C:
	}

	s.Raise(EventInfo{Event: EventLinkUp, Interface: iface})
	s.Raise(EventInfo{Event: EventIPv4AddrAdd, Interface: iface, Addr: s.addr})
}

// Raise delivers info to matching callbacks on the calling goroutine and
// returns how many ran. Events raised after Close are dropped.
func (s *Simulated) Raise(info EventInfo) int {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0
	}
	return s.bus.raise(info)
}

// Requests returns the connect requests received so far.
func (s *Simulated) Requests() []ConnectRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConnectRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close cancels pending attaches and waits for them to exit.
// Safe to call multiple times.
func (s *Simulated) Close() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.wg.Wait()
	})
	return nil
}
