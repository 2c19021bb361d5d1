package netmgmt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Defaults for NetworkManagerConfig.
const (
	DefaultNmcliBinary  = "nmcli"
	DefaultPollInterval = 500 * time.Millisecond
)

// RunFunc executes a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// NetworkManagerConfig configures the NetworkManager backend.
type NetworkManagerConfig struct {
	// Binary is the nmcli executable. Default: "nmcli".
	Binary string

	// PollInterval is how often interface addresses are checked.
	// Default: 500ms.
	PollInterval time.Duration

	// Run overrides command execution. Defaults to os/exec.
	Run RunFunc

	// Addrs overrides interface address listing. Defaults to SystemAddrs.
	Addrs AddrsFunc

	// SecretsDir holds the short-lived nmcli passwd-file that carries the
	// PSK for one activation. Default: os.TempDir().
	SecretsDir string
}

// NetworkManager is a Manager backed by Linux NetworkManager. Connect
// requests go through nmcli; address events come from polling the
// interface addresses, which starts with the first AddEventCallback.
//
// Thread Safety: safe for concurrent use.
type NetworkManager struct {
	bus eventBus
	cfg NetworkManagerConfig

	logger Logger

	mu      sync.Mutex
	watcher *addrWatcher
	closed  bool
}

// NewNetworkManager creates a NetworkManager backend.
func NewNetworkManager(cfg NetworkManagerConfig) *NetworkManager {
	if cfg.Binary == "" {
		cfg.Binary = DefaultNmcliBinary
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Run == nil {
		cfg.Run = runCommand
	}
	if cfg.Addrs == nil {
		cfg.Addrs = SystemAddrs
	}
	return &NetworkManager{
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *NetworkManager) SetLogger(logger Logger) {
	m.logger = logger
}

// AddEventCallback implements Manager. The first subscription starts the
// address watcher.
func (m *NetworkManager) AddEventCallback(mask Event, cb EventCallback) func() {
	remove := m.bus.add(mask, cb)

	m.mu.Lock()
	if m.watcher == nil && !m.closed {
		m.watcher = newAddrWatcher(m.cfg.PollInterval, m.cfg.Addrs, m.bus.raise, m.logger)
		m.watcher.start()
		m.logger.Debug("address watcher started", "poll_interval", m.cfg.PollInterval)
	}
	m.mu.Unlock()

	return remove
}

// RequestConnect asks NetworkManager to join the network on iface. Secured
// networks and fixed channels get a dedicated connection profile; an open
// network on any channel goes through "nmcli device wifi connect". The PSK
// never appears on a command line: the profile is created with the secret
// marked not-saved and activated with a 0600 passwd-file removed afterwards.
func (m *NetworkManager) RequestConnect(ctx context.Context, iface string, params ConnectParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var passwdFile string
	if params.Security != SecurityNone {
		path, err := writePasswdFile(m.cfg.SecretsDir, params.PSK)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConnectRequestFailed, err)
		}
		defer os.Remove(path)
		passwdFile = path
	}

	commands := connectCommands(iface, params, passwdFile)
	for _, args := range commands {
		out, err := m.cfg.Run(ctx, m.cfg.Binary, args...)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %v: %s",
				ErrConnectRequestFailed, m.cfg.Binary, args[0], err, strings.TrimSpace(string(out)))
		}
	}

	m.logger.Debug("nmcli connect issued", "interface", iface, "ssid", params.SSID, "channel", params.Channel)
	return nil
}

// Close stops the address watcher. Safe to call multiple times.
func (m *NetworkManager) Close() error {
	m.mu.Lock()
	m.closed = true
	w := m.watcher
	m.mu.Unlock()

	if w != nil {
		w.stop()
	}
	return nil
}

// connectCommands builds the nmcli argument lists for a connect request.
// passwdFile is the secrets file for secured networks.
func connectCommands(iface string, params ConnectParams, passwdFile string) [][]string {
	if params.Channel == 0 && params.Security == SecurityNone {
		args := []string{"device", "wifi", "connect", params.SSID}
		if iface != "" {
			args = append(args, "ifname", iface)
		}
		return [][]string{args}
	}

	profile := "wifipub-" + params.SSID
	add := []string{
		"connection", "add", "type", "wifi",
		"con-name", profile,
		"ssid", params.SSID,
	}
	if params.Channel != 0 {
		add = append(add,
			"802-11-wireless.channel", strconv.Itoa(params.Channel),
			"802-11-wireless.band", band(params.Channel),
		)
	}
	if iface != "" {
		add = append(add, "ifname", iface)
	}

	up := []string{"connection", "up", profile}
	switch params.Security {
	case SecurityPSK:
		add = append(add, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk-flags", pskNotSaved)
		up = append(up, "passwd-file", passwdFile)
	case SecuritySAE:
		add = append(add, "wifi-sec.key-mgmt", "sae", "wifi-sec.psk-flags", pskNotSaved)
		up = append(up, "passwd-file", passwdFile)
	}
	return [][]string{add, up}
}

// pskNotSaved is NM_SETTING_SECRET_FLAG_NOT_SAVED: the profile stores no
// PSK and activation takes it from the passwd-file.
const pskNotSaved = "2"

// writePasswdFile writes the PSK in nmcli passwd-file format to a new file
// in dir readable only by the owner.
func writePasswdFile(dir, psk string) (string, error) {
	if strings.ContainsAny(psk, "\r\n") {
		return "", fmt.Errorf("%w: psk contains a line break", ErrInvalidParams)
	}

	f, err := os.CreateTemp(dir, "wifipub-psk-*")
	if err != nil {
		return "", fmt.Errorf("creating passwd-file: %w", err)
	}
	path := f.Name()

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("securing passwd-file: %w", err)
	}
	if _, err := f.WriteString("802-11-wireless-security.psk:" + psk + "\n"); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing passwd-file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing passwd-file: %w", err)
	}
	return path, nil
}

// band maps a channel to the NetworkManager band name.
func band(channel int) string {
	if channel <= 14 {
		return "bg"
	}
	return "a"
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}
