//go:build linux

package networkmanager

import (
	"fmt"
	"log/slog"
	"time"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/epapersync/epapersync/wifi"
	"github.com/google/uuid"
)

// activationTimeout bounds how long a Connect call waits for NetworkManager
// to report the connection as activated.
const activationTimeout = 30 * time.Second

// Backend implements wifi.Backend over the NetworkManager D-Bus API.
type Backend struct {
	nm         gonetworkmanager.NetworkManager
	settings   gonetworkmanager.Settings
	logger     *slog.Logger
	scanSettle time.Duration
}

// New creates a NetworkManager-backed wifi.Backend. scanSettle is how long
// ScanContains waits after requesting a rescan before reading results.
func New(logger *slog.Logger, scanSettle time.Duration) (wifi.Backend, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create network manager client: %w", wifi.ErrNotAvailable)
	}

	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", wifi.ErrOperationFailed)
	}

	return &Backend{
		nm:         nm,
		settings:   settings,
		logger:     logger,
		scanSettle: scanSettle,
	}, nil
}

func (b *Backend) wirelessDevice() (gonetworkmanager.DeviceWireless, error) {
	devices, err := b.nm.GetDevices()
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		if dev, ok := device.(gonetworkmanager.DeviceWireless); ok {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no wireless device found: %w", wifi.ErrNotFound)
}

// CurrentNetwork reports the SSID of the active access point, or "" when the
// device is unassociated or the answer is ambiguous.
func (b *Backend) CurrentNetwork() (string, error) {
	dev, err := b.wirelessDevice()
	if err != nil {
		return "", err
	}

	ap, err := dev.GetPropertyActiveAccessPoint()
	if err != nil || ap == nil {
		return "", nil
	}
	ssid, err := ap.GetPropertySSID()
	if err != nil {
		return "", nil
	}
	return ssid, nil
}

// ScanContains requests a rescan, waits for results to settle and reports
// whether ssid is visible. Any failure along the way reports false.
func (b *Backend) ScanContains(ssid string) bool {
	dev, err := b.wirelessDevice()
	if err != nil {
		b.logger.Debug("scan failed", "error", err)
		return false
	}

	if err := dev.RequestScan(); err != nil {
		// NetworkManager rejects scan requests that come too soon after
		// the previous one; stale results are still usable.
		b.logger.Debug("rescan request rejected", "error", err)
	}
	time.Sleep(b.scanSettle)

	accessPoints, err := dev.GetAccessPoints()
	if err != nil {
		b.logger.Debug("listing access points failed", "error", err)
		return false
	}
	for _, ap := range accessPoints {
		name, err := ap.GetPropertySSID()
		if err != nil {
			continue
		}
		if name == ssid {
			return true
		}
	}
	return false
}

// Connect activates the saved profile for id.SSID when one exists, and
// otherwise creates a fresh profile carrying id.Password.
func (b *Backend) Connect(id wifi.Identity) wifi.ConnectOutcome {
	dev, err := b.wirelessDevice()
	if err != nil {
		return wifi.ConnectOutcome{Diagnostic: err.Error()}
	}

	saved, err := b.findSavedProfile(id.SSID)
	if err != nil {
		b.logger.Debug("listing saved profiles failed", "error", err)
	}

	ap := b.findAccessPoint(dev, id.SSID)

	var active gonetworkmanager.ActiveConnection
	if saved != nil {
		if ap == nil {
			return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("saved profile exists but %q is not visible", id.SSID)}
		}
		active, err = b.nm.ActivateWirelessConnection(saved, dev, ap)
		if err != nil {
			return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("activating saved profile: %v", err)}
		}
	} else {
		profile := newProfile(id)
		if ap == nil {
			return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("no saved profile and %q is not visible", id.SSID)}
		}
		active, err = b.nm.AddAndActivateWirelessConnection(profile, dev, ap)
		if err != nil {
			return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("creating profile: %v", err)}
		}
	}

	if err := waitActivated(active); err != nil {
		return wifi.ConnectOutcome{Diagnostic: err.Error()}
	}
	return wifi.ConnectOutcome{OK: true, Diagnostic: fmt.Sprintf("associated with %q", id.SSID)}
}

// CycleInterface powers the radio off and on again.
func (b *Backend) CycleInterface() error {
	if err := b.nm.SetPropertyWirelessEnabled(false); err != nil {
		return fmt.Errorf("disabling wireless: %w", err)
	}
	time.Sleep(b.scanSettle)
	if err := b.nm.SetPropertyWirelessEnabled(true); err != nil {
		return fmt.Errorf("enabling wireless: %w", err)
	}
	return nil
}

// findSavedProfile returns the stored connection whose SSID matches, or nil.
func (b *Backend) findSavedProfile(ssid string) (gonetworkmanager.Connection, error) {
	known, err := b.settings.ListConnections()
	if err != nil {
		return nil, err
	}
	for _, kc := range known {
		s, err := kc.GetSettings()
		if err != nil {
			continue
		}
		wireless, ok := s["802-11-wireless"]
		if !ok {
			continue
		}
		if ssidBytes, ok := wireless["ssid"].([]byte); ok && string(ssidBytes) == ssid {
			return kc, nil
		}
	}
	return nil, nil
}

// findAccessPoint returns the strongest visible access point for ssid, or nil.
func (b *Backend) findAccessPoint(dev gonetworkmanager.DeviceWireless, ssid string) gonetworkmanager.AccessPoint {
	accessPoints, err := dev.GetAccessPoints()
	if err != nil {
		return nil
	}
	var best gonetworkmanager.AccessPoint
	var bestStrength uint8
	for _, ap := range accessPoints {
		name, err := ap.GetPropertySSID()
		if err != nil || name != ssid {
			continue
		}
		strength, _ := ap.GetPropertyStrength()
		if best == nil || strength > bestStrength {
			best = ap
			bestStrength = strength
		}
	}
	return best
}

func newProfile(id wifi.Identity) map[string]map[string]interface{} {
	profile := map[string]map[string]interface{}{
		"connection": {
			"id":          id.SSID,
			"uuid":        uuid.New().String(),
			"type":        "802-11-wireless",
			"autoconnect": true,
		},
		"802-11-wireless": {
			"mode": "infrastructure",
			"ssid": []byte(id.SSID),
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}
	if id.Password != "" {
		profile["802-11-wireless"]["security"] = "802-11-wireless-security"
		profile["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      id.Password,
		}
	}
	return profile
}

// waitActivated blocks until the connection reports activated, fails, or the
// activation timeout elapses.
func waitActivated(active gonetworkmanager.ActiveConnection) error {
	stateChanges := make(chan gonetworkmanager.StateChange, 1)
	done := make(chan struct{})
	defer close(done)
	if err := active.SubscribeState(stateChanges, done); err != nil {
		return err
	}

	// Check the initial state first; the activated signal may have fired
	// before the subscription was in place.
	initialState, err := active.GetPropertyState()
	if err != nil {
		return err
	}
	if initialState == gonetworkmanager.NmActiveConnectionStateActivated {
		return nil
	}

	for {
		select {
		case change := <-stateChanges:
			if change.State == gonetworkmanager.NmActiveConnectionStateActivated {
				return nil
			}
			if change.State == gonetworkmanager.NmActiveConnectionStateDeactivated {
				return fmt.Errorf("connection failed")
			}
		case <-time.After(activationTimeout):
			return fmt.Errorf("connection timed out")
		}
	}
}
