//go:build linux

// Package iwd controls wireless interfaces through iwd's D-Bus API.
//
// iwd only hands out credentials through its agent interface, so joining a
// network it has never seen before is best-effort: the connect call is
// issued and iwd is left to resolve the credential on its own.
package iwd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/epapersync/epapersync/wifi"
	"github.com/godbus/dbus/v5"
)

const (
	iwdDest              = "net.connman.iwd"
	iwdPath              = "/"
	iwdIface             = "net.connman.iwd"
	iwdDeviceIface       = "net.connman.iwd.Device"
	iwdNetworkIface      = "net.connman.iwd.Network"
	iwdStationIface      = "net.connman.iwd.Station"
	iwdKnownNetworkIface = "net.connman.iwd.KnownNetwork"
)

// Backend implements wifi.Backend using iwd.
type Backend struct {
	logger     *slog.Logger
	scanSettle time.Duration
}

// New creates an iwd-backed wifi.Backend, or ErrNotAvailable when the iwd
// service is not on the system bus.
func New(logger *slog.Logger, scanSettle time.Duration) (wifi.Backend, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(iwdDest, iwdPath)
	if obj == nil {
		return nil, fmt.Errorf("failed to get dbus object for %s: %w", iwdDest, wifi.ErrNotAvailable)
	}
	// A simple way to check for availability is to try to get a property.
	if _, err := obj.GetProperty(iwdIface + ".Version"); err != nil {
		return nil, fmt.Errorf("iwd is not available: %w", wifi.ErrNotAvailable)
	}

	return &Backend{logger: logger, scanSettle: scanSettle}, nil
}

// CurrentNetwork reports the SSID of the connected network, or "" when no
// station device reports a connected network.
func (b *Backend) CurrentNetwork() (string, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return "", err
	}

	for _, networkPath := range b.orderedNetworks(conn) {
		networkObj := conn.Object(iwdDest, networkPath)
		connectedVar, err := networkObj.GetProperty(iwdNetworkIface + ".Connected")
		if err != nil {
			continue
		}
		if connected, ok := connectedVar.Value().(bool); !ok || !connected {
			continue
		}
		nameVar, err := networkObj.GetProperty(iwdNetworkIface + ".Name")
		if err != nil {
			continue
		}
		if name, ok := nameVar.Value().(string); ok {
			return name, nil
		}
	}
	return "", nil
}

// ScanContains triggers a station scan and reports whether ssid is visible.
func (b *Backend) ScanContains(ssid string) bool {
	conn, err := dbus.SystemBus()
	if err != nil {
		b.logger.Debug("scan failed", "error", err)
		return false
	}

	if station, err := b.stationDevice(conn); err == nil {
		// Best effort scan; iwd refuses overlapping scan requests.
		_ = conn.Object(iwdDest, station).Call(iwdStationIface+".Scan", 0)
	}
	time.Sleep(b.scanSettle)

	for _, networkPath := range b.orderedNetworks(conn) {
		nameVar, err := conn.Object(iwdDest, networkPath).GetProperty(iwdNetworkIface + ".Name")
		if err != nil {
			continue
		}
		if name, ok := nameVar.Value().(string); ok && name == ssid {
			return true
		}
	}
	return false
}

// Connect asks iwd to connect to the named network. Known networks use the
// stored credential; unknown ones rely on iwd's own credential resolution.
func (b *Backend) Connect(id wifi.Identity) wifi.ConnectOutcome {
	conn, err := dbus.SystemBus()
	if err != nil {
		return wifi.ConnectOutcome{Diagnostic: err.Error()}
	}

	var networkPath dbus.ObjectPath
	for _, path := range b.orderedNetworks(conn) {
		nameVar, err := conn.Object(iwdDest, path).GetProperty(iwdNetworkIface + ".Name")
		if err != nil {
			continue
		}
		if name, ok := nameVar.Value().(string); ok && name == id.SSID {
			networkPath = path
			break
		}
	}
	if networkPath == "" {
		return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("network %q is not visible to iwd", id.SSID)}
	}

	known := b.isKnown(conn, id.SSID)
	call := conn.Object(iwdDest, networkPath).Call(iwdNetworkIface+".Connect", 0)
	if call.Err != nil {
		if !known && id.Password != "" {
			return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("connect to %q failed (iwd needs a provisioned network or an agent for new credentials): %v", id.SSID, call.Err)}
		}
		return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("connect to %q failed: %v", id.SSID, call.Err)}
	}

	diag := fmt.Sprintf("connected to known network %q", id.SSID)
	if !known {
		diag = fmt.Sprintf("connected to new network %q", id.SSID)
	}
	return wifi.ConnectOutcome{OK: true, Diagnostic: diag}
}

// CycleInterface powers the station device off and on again.
func (b *Backend) CycleInterface() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}

	devices, err := b.devices(conn)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return fmt.Errorf("no iwd device found: %w", wifi.ErrNotFound)
	}

	for _, enabled := range []bool{false, true} {
		for _, devicePath := range devices {
			obj := conn.Object(iwdDest, devicePath)
			if err := obj.SetProperty(iwdDeviceIface+".Powered", dbus.MakeVariant(enabled)); err != nil {
				return fmt.Errorf("setting device power: %w", err)
			}
		}
		if !enabled {
			time.Sleep(b.scanSettle)
		}
	}
	return nil
}

func (b *Backend) devices(conn *dbus.Conn) ([]dbus.ObjectPath, error) {
	var devices []dbus.ObjectPath
	obj := conn.Object(iwdDest, iwdPath)
	err := obj.Call(iwdIface+".GetDevices", 0).Store(&devices)
	return devices, err
}

func (b *Backend) stationDevice(conn *dbus.Conn) (dbus.ObjectPath, error) {
	devices, err := b.devices(conn)
	if err != nil {
		return "", err
	}
	for _, devicePath := range devices {
		typeVar, err := conn.Object(iwdDest, devicePath).GetProperty(iwdDeviceIface + ".Type")
		if err != nil {
			continue
		}
		if typeStr, ok := typeVar.Value().(string); ok && typeStr == "station" {
			return devicePath, nil
		}
	}
	return "", fmt.Errorf("no station device found: %w", wifi.ErrNotFound)
}

func (b *Backend) orderedNetworks(conn *dbus.Conn) []dbus.ObjectPath {
	devices, err := b.devices(conn)
	if err != nil {
		return nil
	}
	var all []dbus.ObjectPath
	for _, devicePath := range devices {
		var networkPaths []dbus.ObjectPath
		err := conn.Object(iwdDest, devicePath).Call(iwdStationIface+".GetOrderedNetworks", 0).Store(&networkPaths)
		if err != nil {
			continue
		}
		all = append(all, networkPaths...)
	}
	return all
}

func (b *Backend) isKnown(conn *dbus.Conn, ssid string) bool {
	var paths []dbus.ObjectPath
	obj := conn.Object(iwdDest, iwdPath)
	if err := obj.Call(iwdIface+".GetKnownNetworks", 0).Store(&paths); err != nil {
		return false
	}
	for _, path := range paths {
		nameVar, err := conn.Object(iwdDest, path).GetProperty(iwdKnownNetworkIface + ".Name")
		if err != nil {
			continue
		}
		if name, ok := nameVar.Value().(string); ok && name == ssid {
			return true
		}
	}
	return false
}
