//go:build mock

package main

import (
	"log/slog"
	"time"

	"github.com/epapersync/epapersync/wifi"
	mockBackend "github.com/epapersync/epapersync/wifi/mock"
)

func GetBackend(logger *slog.Logger, iface string, scanSettle time.Duration) (wifi.Backend, error) {
	b := mockBackend.New()
	b.Current = "HomeNet"
	b.Visible = []string{"HomeNet", "E-Paper"}
	return b, nil
}
