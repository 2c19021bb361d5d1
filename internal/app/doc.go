// Package app runs the wifipub startup sequence: request the Wi-Fi
// connection, block until an address is assigned, arm the periodic
// publisher and spin it until shutdown.
package app
