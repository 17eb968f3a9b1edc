package switcher

import (
	"sync/atomic"
	"time"
)

// watchdog is a one-shot timer that requests the recovery path when a
// session overruns its budget. It owns no network state; expiry only posts
// a single signal that the orchestrator acts on. If the orchestrator has
// already disarmed it, a late expiry is a no-op.
type watchdog struct {
	timeout time.Duration
	armed   atomic.Bool
	timer   *time.Timer
	fired   chan struct{}
}

func newWatchdog(timeout time.Duration) *watchdog {
	return &watchdog{
		timeout: timeout,
		fired:   make(chan struct{}, 1),
	}
}

// Arm starts the timer. A zero or negative timeout disables the watchdog.
func (w *watchdog) Arm() {
	if w.timeout <= 0 {
		return
	}
	w.armed.Store(true)
	w.timer = time.AfterFunc(w.timeout, func() {
		// The workload may have finished between expiry and this firing;
		// the armed flag resolves that race in favor of the normal path.
		if !w.armed.Load() {
			return
		}
		select {
		case w.fired <- struct{}{}:
		default:
		}
	})
}

// Disarm stops the timer and suppresses any expiry already in flight.
func (w *watchdog) Disarm() {
	w.armed.Store(false)
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Fired returns the channel the expiry signal is posted on.
func (w *watchdog) Fired() <-chan struct{} {
	return w.fired
}
