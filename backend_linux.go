//go:build linux && !mock

package main

import (
	"log/slog"
	"time"

	"github.com/epapersync/epapersync/wifi"
	"github.com/epapersync/epapersync/wifi/iwd"
	"github.com/epapersync/epapersync/wifi/networkmanager"
	"github.com/epapersync/epapersync/wifi/nmcli"
)

// GetBackend picks the best available WiFi control surface: the
// NetworkManager D-Bus API, then iwd, then shelling out to nmcli.
func GetBackend(logger *slog.Logger, iface string, scanSettle time.Duration) (wifi.Backend, error) {
	b, err := networkmanager.New(logger, scanSettle)
	if err == nil {
		return b, nil
	}
	logger.Warn("failed to initialize networkmanager backend, falling back to iwd", "error", err)

	b, err = iwd.New(logger, scanSettle)
	if err == nil {
		return b, nil
	}
	logger.Warn("failed to initialize iwd backend, falling back to nmcli", "error", err)

	return nmcli.New(logger, iface, scanSettle)
}
