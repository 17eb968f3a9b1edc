//go:build linux

// Package nmcli drives NetworkManager through the nmcli command line tool.
// It is the fallback for Linux hosts where the D-Bus API is not reachable
// from this process (containers, hardened sessions).
package nmcli

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/epapersync/epapersync/wifi"
)

// commandTimeout bounds every nmcli invocation; `nmcli dev wifi connect` in
// particular can hang well past the point where the answer is useful.
const commandTimeout = 30 * time.Second

// Backend implements wifi.Backend by shelling out to nmcli.
type Backend struct {
	iface      string
	logger     *slog.Logger
	scanSettle time.Duration
}

// New creates an nmcli-backed wifi.Backend. iface may be empty, in which
// case nmcli picks the wireless device itself.
func New(logger *slog.Logger, iface string, scanSettle time.Duration) (wifi.Backend, error) {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli not found: %w", wifi.ErrNotAvailable)
	}
	return &Backend{iface: iface, logger: logger, scanSettle: scanSettle}, nil
}

// run executes nmcli with a bounded timeout, capturing stderr for diagnostics.
func (b *Backend) run(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nmcli", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return string(out), fmt.Errorf("failed to run command: %s: %w: %s", cmd.String(), err, stderr.String())
	}
	return string(out), nil
}

// CurrentNetwork parses `nmcli -t -f active,ssid dev wifi` and returns the
// SSID marked active, or "" when nothing is or the output is garbled.
func (b *Backend) CurrentNetwork() (string, error) {
	out, err := b.run("-t", "-f", "active,ssid", "dev", "wifi")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if parts[0] == "yes" && parts[1] != "" {
			return unescape(parts[1]), nil
		}
	}
	return "", nil
}

// ScanContains forces a rescan and reports whether ssid shows up in it.
func (b *Backend) ScanContains(ssid string) bool {
	args := []string{"-t", "-f", "ssid", "dev", "wifi", "list", "--rescan", "yes"}
	if b.iface != "" {
		args = append(args, "ifname", b.iface)
	}
	out, err := b.run(args...)
	if err != nil {
		b.logger.Debug("scan failed", "error", err)
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if unescape(strings.TrimSpace(line)) == ssid {
			return true
		}
	}
	return false
}

// Connect brings up the saved connection profile for id.SSID when one
// exists, otherwise asks nmcli to join the network with the password.
func (b *Backend) Connect(id wifi.Identity) wifi.ConnectOutcome {
	if b.hasSavedProfile(id.SSID) {
		if _, err := b.run("connection", "up", "id", id.SSID); err == nil {
			return wifi.ConnectOutcome{OK: true, Diagnostic: fmt.Sprintf("activated saved profile %q", id.SSID)}
		} else {
			b.logger.Debug("saved profile activation failed, joining fresh", "ssid", id.SSID, "error", err)
		}
	}

	args := []string{"dev", "wifi", "connect", id.SSID}
	if id.Password != "" {
		args = append(args, "password", id.Password)
	}
	if b.iface != "" {
		args = append(args, "ifname", b.iface)
	}
	out, err := b.run(args...)
	if err != nil {
		return wifi.ConnectOutcome{Diagnostic: err.Error()}
	}
	// nmcli exits zero for some refusals and prints the reason instead.
	if strings.Contains(out, "Error:") {
		return wifi.ConnectOutcome{Diagnostic: strings.TrimSpace(out)}
	}
	return wifi.ConnectOutcome{OK: true, Diagnostic: fmt.Sprintf("joined %q", id.SSID)}
}

// CycleInterface powers the radio off and on with a settle pause between.
func (b *Backend) CycleInterface() error {
	if _, err := b.run("radio", "wifi", "off"); err != nil {
		return err
	}
	time.Sleep(b.scanSettle)
	_, err := b.run("radio", "wifi", "on")
	return err
}

func (b *Backend) hasSavedProfile(ssid string) bool {
	out, err := b.run("-t", "-f", "name", "connection", "show")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if unescape(strings.TrimSpace(line)) == ssid {
			return true
		}
	}
	return false
}

// unescape reverses nmcli's terse-mode escaping of ':' and '\'.
func unescape(s string) string {
	r := strings.NewReplacer(`\:`, `:`, `\\`, `\`)
	return r.Replace(s)
}
