package switcher

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Poller watches for the device network to come into range and kicks off
// one sync per sighting. Its scan is read-only, so it is safe to keep
// running while a session is active; at worst it sees a transient
// "not in range" mid-switch and misses one edge.
type Poller struct {
	backend  scanner
	switcher *Switcher
	logger   *slog.Logger

	target     string
	interval   time.Duration
	autoUpload bool

	// hasPendingWork reports whether there is anything to sync. Checked
	// on every eligible tick so work that shows up while the device is
	// already in range still gets picked up.
	hasPendingWork func() bool

	available           bool
	uploadedThisSession bool
}

// scanner is the one backend operation the poller needs.
type scanner interface {
	ScanContains(ssid string) bool
}

// NewPoller creates a Poller for the given target SSID.
func NewPoller(backend scanner, sw *Switcher, logger *slog.Logger, target string, interval time.Duration, autoUpload bool, hasPendingWork func() bool) *Poller {
	return &Poller{
		backend:        backend,
		switcher:       sw,
		logger:         logger,
		target:         target,
		interval:       interval,
		autoUpload:     autoUpload,
		hasPendingWork: hasPendingWork,
	}
}

// Run polls until ctx is cancelled. The first scan happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick performs one scan and, on an edge into range with pending work,
// invokes the switcher. The uploadedThisSession flag debounces repeat
// invocations while the device stays continuously in range; it resets
// only when the device leaves range again.
func (p *Poller) tick(ctx context.Context) {
	inRange := p.backend.ScanContains(p.target)

	if !inRange {
		if p.available {
			p.logger.Info("device network left range", "ssid", p.target)
		}
		p.available = false
		p.uploadedThisSession = false
		return
	}

	if !p.available {
		p.logger.Info("device network in range", "ssid", p.target)
	}
	p.available = true

	if !p.autoUpload || p.uploadedThisSession {
		return
	}
	if p.hasPendingWork != nil && !p.hasPendingWork() {
		return
	}

	p.uploadedThisSession = true
	code, err := p.switcher.Run(ctx, nil)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			// A manual sync is in flight; it covers the pending work.
			p.logger.Info("sync already running, skipping auto-upload")
			return
		}
		p.logger.Error("auto-upload failed", "error", err, "code", code)
		return
	}
	p.logger.Info("auto-upload finished", "code", code)
}
