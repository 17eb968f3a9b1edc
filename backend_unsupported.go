//go:build !linux && !darwin && !mock

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/epapersync/epapersync/wifi"
)

// GetBackend returns an error for unsupported operating systems.
func GetBackend(logger *slog.Logger, iface string, scanSettle time.Duration) (wifi.Backend, error) {
	return nil, fmt.Errorf("unsupported operating system: %w", wifi.ErrNotSupported)
}
