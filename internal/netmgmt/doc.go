// Package netmgmt is the network management layer used by the connectivity
// gate.
//
// A Manager offers two operations: subscribing to network events by mask and
// issuing a one-shot connect request. The request only starts association;
// the network is usable once an EventIPv4AddrAdd arrives.
//
// Two implementations are provided:
//   - Simulated: in-process, attaches after a configurable delay; Raise lets
//     tests inject events directly
//   - NetworkManager: Linux NetworkManager via nmcli, with address events
//     derived from polling the interface addresses
//
// Event callbacks run on the manager's goroutine, not the caller's.
package netmgmt
