//go:build darwin && !mock

package main

import (
	"log/slog"
	"time"

	"github.com/epapersync/epapersync/wifi"
	"github.com/epapersync/epapersync/wifi/darwin"
)

func GetBackend(logger *slog.Logger, iface string, scanSettle time.Duration) (wifi.Backend, error) {
	return darwin.New(logger, iface, scanSettle)
}
