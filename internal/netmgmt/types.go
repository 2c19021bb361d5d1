package netmgmt

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// Event is a bit mask of network events.
type Event uint32

// Network events. Callbacks subscribe with a mask of one or more events.
const (
	// EventIPv4AddrAdd is raised when an interface acquires an IPv4 address.
	EventIPv4AddrAdd Event = 1 << iota

	// EventIPv4AddrDel is raised when an IPv4 address disappears.
	EventIPv4AddrDel

	// EventIPv6AddrAdd is raised when an interface acquires an IPv6 address.
	EventIPv6AddrAdd

	// EventLinkUp is raised when the link layer associates.
	EventLinkUp
)

var eventNames = []struct {
	ev   Event
	name string
}{
	{EventIPv4AddrAdd, "ipv4_addr_add"},
	{EventIPv4AddrDel, "ipv4_addr_del"},
	{EventIPv6AddrAdd, "ipv6_addr_add"},
	{EventLinkUp, "link_up"},
}

// String returns the event names in the mask joined by "|".
func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, n := range eventNames {
		if e&n.ev != 0 {
			parts = append(parts, n.name)
			e &^= n.ev
		}
	}
	if e != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(e)))
	}
	return strings.Join(parts, "|")
}

// EventInfo describes one raised event.
type EventInfo struct {
	Event     Event
	Interface string

	// Addr is set for address events.
	Addr netip.Addr
}

// EventCallback receives raised events. It runs on the manager's goroutine.
type EventCallback func(info EventInfo)

// Security is the wireless security mode.
type Security string

const (
	SecurityNone Security = "none"
	SecurityPSK  Security = "psk"
	SecuritySAE  Security = "sae"
)

// Limits on connect parameters.
const (
	MaxSSIDLength = 32
	MinPSKLength  = 8
	MaxPSKLength  = 64
	MaxChannel    = 233
)

// ConnectParams describes the network to join.
type ConnectParams struct {
	SSID string

	// Channel is the radio channel. 0 lets the network layer pick.
	Channel int

	PSK      string
	Security Security
}

// Validate checks the parameters against the wireless limits. Lengths are
// byte lengths.
func (p ConnectParams) Validate() error {
	if n := len(p.SSID); n == 0 || n > MaxSSIDLength {
		return fmt.Errorf("%w: ssid length %d not in 1..%d", ErrInvalidParams, n, MaxSSIDLength)
	}
	if p.Channel < 0 || p.Channel > MaxChannel {
		return fmt.Errorf("%w: channel %d not in 0..%d", ErrInvalidParams, p.Channel, MaxChannel)
	}
	switch p.Security {
	case SecurityNone:
	case SecurityPSK, SecuritySAE:
		if n := len(p.PSK); n < MinPSKLength || n > MaxPSKLength {
			return fmt.Errorf("%w: psk length %d not in %d..%d", ErrInvalidParams, n, MinPSKLength, MaxPSKLength)
		}
	default:
		return fmt.Errorf("%w: unknown security %q", ErrInvalidParams, p.Security)
	}
	return nil
}

// Manager is the network management layer: event subscription plus a
// connect request. A connect request only starts association; completion is
// signalled by an EventIPv4AddrAdd.
type Manager interface {
	// AddEventCallback subscribes cb to every event in mask. The returned
	// function removes the subscription and is safe to call more than once.
	AddEventCallback(mask Event, cb EventCallback) (remove func())

	// RequestConnect asks the network layer to join the network on iface.
	RequestConnect(ctx context.Context, iface string, params ConnectParams) error
}

// Logger defines the logging interface for network managers.
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
