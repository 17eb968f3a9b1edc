//go:build darwin

// Package darwin implements wifi.Backend for macOS, where one tool
// (networksetup) covers query, association and radio power.
package darwin

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/epapersync/epapersync/wifi"
)

// Backend implements wifi.Backend via networksetup and system_profiler.
type Backend struct {
	iface      string
	logger     *slog.Logger
	scanSettle time.Duration
}

// New creates a darwin.Backend. When iface is empty the Wi-Fi device is
// detected from `networksetup -listallhardwareports`.
func New(logger *slog.Logger, iface string, scanSettle time.Duration) (wifi.Backend, error) {
	if iface == "" {
		out, err := runWithOutput(exec.Command("networksetup", "-listallhardwareports"))
		if err != nil {
			return nil, fmt.Errorf("failed to list hardware ports: %w", wifi.ErrOperationFailed)
		}
		device, err := findWifiDevice(string(out))
		if err != nil {
			return nil, err
		}
		iface = device
	}
	return &Backend{iface: iface, logger: logger, scanSettle: scanSettle}, nil
}

// runWithOutput wraps exec.Command to capture stderr and wrap errors.
func runWithOutput(c *exec.Cmd) ([]byte, error) {
	var stderr strings.Builder
	c.Stderr = &stderr
	out, err := c.Output()
	if err != nil {
		return out, fmt.Errorf("failed to run command: %s: %w: %s", c.String(), err, stderr.String())
	}
	return out, nil
}

// CurrentNetwork parses `networksetup -getairportnetwork`. The tool prints
// prose; anything that doesn't match the expected line means unassociated.
func (b *Backend) CurrentNetwork() (string, error) {
	out, err := runWithOutput(exec.Command("networksetup", "-getairportnetwork", b.iface))
	if err != nil {
		return "", err
	}
	return parseCurrentNetwork(string(out)), nil
}

// ScanContains reports whether ssid is visible. system_profiler performs
// its own scan, so no explicit rescan trigger is needed on this platform.
func (b *Backend) ScanContains(ssid string) bool {
	out, err := runWithOutput(exec.Command("system_profiler", "SPAirPortDataType"))
	if err != nil {
		b.logger.Debug("scan failed", "error", err)
		return false
	}
	for _, name := range parseVisibleNetworks(string(out)) {
		if name == ssid {
			return true
		}
	}
	return false
}

// Connect associates with the network. networksetup uses keychain
// credentials for known networks when no password is given; it also exits
// zero on some failures and prints the reason instead, so the output is
// inspected too.
func (b *Backend) Connect(id wifi.Identity) wifi.ConnectOutcome {
	args := []string{"-setairportnetwork", b.iface, id.SSID}
	if id.Password != "" {
		args = append(args, id.Password)
	}
	out, err := runWithOutput(exec.Command("networksetup", args...))
	if err != nil {
		return wifi.ConnectOutcome{Diagnostic: err.Error()}
	}
	if msg := strings.TrimSpace(string(out)); msg != "" && !strings.Contains(msg, "Network password") {
		// Any output other than a password prompt note means a refusal,
		// e.g. "Failed to join network ...".
		return wifi.ConnectOutcome{Diagnostic: msg}
	}
	return wifi.ConnectOutcome{OK: true, Diagnostic: fmt.Sprintf("asked %s to join %q", b.iface, id.SSID)}
}

// CycleInterface powers the airport radio off and on again.
func (b *Backend) CycleInterface() error {
	if err := b.setPower("off"); err != nil {
		return err
	}
	time.Sleep(b.scanSettle)
	return b.setPower("on")
}

func (b *Backend) setPower(state string) error {
	c := exec.Command("networksetup", "-setairportpower", b.iface, state)
	var stderr strings.Builder
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("failed to run command: %s: %w: %s", c.String(), err, stderr.String())
	}
	return nil
}
