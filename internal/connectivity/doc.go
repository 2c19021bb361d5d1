// Package connectivity gates startup on network attachment.
//
// A Gate subscribes to IPv4 address events, issues one connect request and
// blocks until the first address event arrives. The transition from
// disconnected to connected happens once and is never undone; reconnection
// after a dropped link is out of scope.
//
// Usage:
//
//	gate := connectivity.NewGate(mgr, connectivity.Config{
//	    Interface: "wlan0",
//	    SSID:      cfg.Network.SSID,
//	    PSK:       cfg.Network.PSK,
//	})
//	gate.SetLogger(logger)
//	defer gate.Close()
//	if err := gate.Establish(ctx, nil); err != nil {
//	    return err // shutdown before attach
//	}
package connectivity
