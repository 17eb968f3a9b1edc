// Package mock provides a scriptable in-memory wifi.Backend for tests.
package mock

import (
	"fmt"
	"sync"

	"github.com/epapersync/epapersync/wifi"
)

// Backend is a mock implementation of the wifi.Backend interface. Every
// behavior is injectable and every call is recorded, so tests can script
// failure sequences and assert on exactly what the orchestrator did.
type Backend struct {
	mu sync.Mutex

	// Current is the SSID reported by CurrentNetwork ("" = unassociated).
	Current    string
	CurrentErr error

	// Visible is the set of SSIDs a scan reports.
	Visible []string
	// ScanFails makes every scan report false regardless of Visible.
	ScanFails bool

	// ConnectFailures fails the first N Connect calls; -1 fails all of them.
	ConnectFailures int
	// FailSSIDs fails every Connect call targeting one of these SSIDs.
	FailSSIDs map[string]bool
	// TrackAssociation makes a successful Connect update Current.
	TrackAssociation bool

	CycleErr error

	ConnectCalls []wifi.Identity
	ScanCalls    []string
	CycleCalls   int
}

// New creates a mock backend that starts unassociated with nothing visible.
func New() *Backend {
	return &Backend{TrackAssociation: true}
}

func (m *Backend) CurrentNetwork() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CurrentErr != nil {
		return "", m.CurrentErr
	}
	return m.Current, nil
}

func (m *Backend) ScanContains(ssid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScanCalls = append(m.ScanCalls, ssid)
	if m.ScanFails {
		return false
	}
	for _, v := range m.Visible {
		if v == ssid {
			return true
		}
	}
	return false
}

func (m *Backend) Connect(id wifi.Identity) wifi.ConnectOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectCalls = append(m.ConnectCalls, id)

	if m.FailSSIDs[id.SSID] {
		return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("connect to %q refused", id.SSID)}
	}
	if m.ConnectFailures == -1 {
		return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("connect to %q refused", id.SSID)}
	}
	if m.ConnectFailures > 0 {
		m.ConnectFailures--
		return wifi.ConnectOutcome{Diagnostic: fmt.Sprintf("connect to %q refused", id.SSID)}
	}

	if m.TrackAssociation {
		m.Current = id.SSID
	}
	return wifi.ConnectOutcome{OK: true, Diagnostic: fmt.Sprintf("joined %q", id.SSID)}
}

func (m *Backend) CycleInterface() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CycleCalls++
	return m.CycleErr
}

// ConnectedSSIDs returns the SSIDs of all recorded Connect calls in order.
func (m *Backend) ConnectedSSIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ssids := make([]string, len(m.ConnectCalls))
	for i, c := range m.ConnectCalls {
		ssids[i] = c.SSID
	}
	return ssids
}

var _ wifi.Backend = (*Backend)(nil)
