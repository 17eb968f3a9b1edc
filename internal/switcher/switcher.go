// Package switcher coordinates the one dangerous thing this program does:
// moving the host's WiFi to the device network, running an upload there,
// and getting back to the original network no matter what happens in
// between. Timeouts and interruptions race the normal flow into the same
// single-shot revert.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/epapersync/epapersync/internal/progress"
	"github.com/epapersync/epapersync/internal/workload"
	"github.com/epapersync/epapersync/wifi"
)

// ErrBusy is returned when a run is requested while a session is active.
// Sessions are never queued or interleaved: two sessions mutating the
// interface concurrently would break the single-revert guarantee.
var ErrBusy = errors.New("a switch session is already active")

// Exit codes for sessions that did not end with the workload's own status.
const (
	// ExitTimedOut is returned when the watchdog preempted the workload.
	ExitTimedOut = 124
	// ExitInterrupted is returned when an external interruption did.
	ExitInterrupted = 130
)

// Options carries the timing and network parameters for switch sessions.
type Options struct {
	Target           wifi.Identity
	OriginalFallback wifi.Identity

	// SettleDelay is how long to wait after a network change before
	// trusting subsequent queries.
	SettleDelay time.Duration
	// SwitchTimeout bounds the whole on-target stretch of a session;
	// zero disables the watchdog.
	SwitchTimeout time.Duration
	// MaxRetries is how many times a failed connect is retried while
	// switching toward the target. Reverting never retries.
	MaxRetries int
	RetryDelay time.Duration
}

// Switcher runs switch sessions. At most one session is active at a time.
type Switcher struct {
	backend  wifi.Backend
	runner   workload.Runner
	reporter *progress.Reporter
	logger   *slog.Logger
	opts     Options

	mu     sync.Mutex
	active *Session
}

// New creates a Switcher.
func New(backend wifi.Backend, runner workload.Runner, reporter *progress.Reporter, logger *slog.Logger, opts Options) *Switcher {
	return &Switcher{
		backend:  backend,
		runner:   runner,
		reporter: reporter,
		logger:   logger,
		opts:     opts,
	}
}

type workResult struct {
	code int
	err  error
}

// Run executes one full switch session: detect the current network, move
// to the target, run the workload, and always attempt exactly one revert.
// The returned code is the workload's exit status; revert failures are
// reported but never change it. Cancelling ctx routes into the recovery
// path, it does not abandon the session.
func (s *Switcher) Run(ctx context.Context, items []string) (int, error) {
	sess, err := s.begin()
	if err != nil {
		return 1, err
	}
	defer s.end()

	s.detect(sess)

	noop := sess.Original.SSID != "" && sess.Original.SSID == sess.Target.SSID
	if noop {
		// Already on the device network: skip the connect entirely, but
		// the session still runs its full safety envelope below.
		s.reporter.Emit(progress.Record{Label: fmt.Sprintf("Already connected to %s", sess.Target.SSID)})
		s.logger.Info("already on target network", "ssid", sess.Target.SSID)
	} else {
		sess.setPhase(PhaseSwitching)
		s.reporter.Emit(progress.Record{Label: fmt.Sprintf("Switching to %s", sess.Target.SSID)})
		s.connectTarget(ctx, sess)
		s.wait(ctx, s.opts.SettleDelay)
	}

	// From here on we assume the interface may be on the target network
	// and must be brought back, whether or not the connect stuck.
	sess.switchedToTarget.Store(true)
	wd := newWatchdog(s.opts.SwitchTimeout)
	wd.Arm()

	if ctx.Err() != nil {
		wd.Disarm()
		s.revert(sess, "interrupted")
		s.reporter.Emit(progress.Record{Label: "Interrupted"})
		return ExitInterrupted, nil
	}

	sess.setPhase(PhaseWorking)
	s.reporter.Emit(progress.Record{Label: "Uploading"})

	// The workload gets its own cancelable, deadline-free context: the
	// watchdog and the interruption path stop it explicitly, nothing else
	// does.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	results := make(chan workResult, 1)
	go func() {
		code, err := s.runner.Run(workCtx, items)
		results <- workResult{code: code, err: err}
	}()

	select {
	case res := <-results:
		wd.Disarm()
		s.revert(sess, "")
		if res.err != nil {
			s.reporter.Linef("workload error: %v", res.err)
			code := res.code
			if code == 0 {
				code = 1
			}
			s.reporter.Emit(progress.Record{Label: "Complete"})
			return code, res.err
		}
		s.reporter.Emit(progress.Record{Label: "Complete"})
		return res.code, nil

	case <-wd.Fired():
		cancelWork()
		s.logger.Error("session exceeded its time budget, forcing recovery",
			"session", sess.ID, "timeout", s.opts.SwitchTimeout)
		s.revert(sess, "timeout")
		s.reporter.Emit(progress.Record{Label: "Timed out"})
		return ExitTimedOut, nil

	case <-ctx.Done():
		cancelWork()
		wd.Disarm()
		s.revert(sess, "interrupted")
		s.reporter.Emit(progress.Record{Label: "Interrupted"})
		return ExitInterrupted, nil
	}
}

// Active reports whether a session is currently in flight.
func (s *Switcher) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

func (s *Switcher) begin() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrBusy
	}
	sess := newSession(s.opts.Target)
	s.active = sess
	s.logger.Info("session started", "session", sess.ID, "target", sess.Target.SSID)
	return sess, nil
}

func (s *Switcher) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// detect captures the network to revert to. Detection failure is not
// fatal: the configured fallback keeps the revert meaningful.
func (s *Switcher) detect(sess *Session) {
	sess.setPhase(PhaseDetecting)
	s.reporter.Emit(progress.Record{Label: "Detecting current network"})

	current, err := s.backend.CurrentNetwork()
	if err != nil || current == "" {
		s.logger.Warn("could not detect current network, using fallback",
			"fallback", s.opts.OriginalFallback.SSID, "error", err)
		sess.Original = s.opts.OriginalFallback
		return
	}

	sess.Original = wifi.Identity{SSID: current}
	if current == s.opts.OriginalFallback.SSID {
		// Only the fallback network's credential is configured; any other
		// original network has to reconnect via its saved profile.
		sess.Original.Password = s.opts.OriginalFallback.Password
	}
	s.logger.Info("detected current network", "ssid", current)
}

// connectTarget attempts the association, retrying up to MaxRetries times
// with the interface power-cycled before the last retry. Exhausting the
// budget is not fatal: the session proceeds so the revert still happens.
func (s *Switcher) connectTarget(ctx context.Context, sess *Session) {
	attempts := s.opts.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			s.wait(ctx, s.opts.RetryDelay)
			if ctx.Err() != nil {
				return
			}
			if i == attempts-1 {
				if err := s.backend.CycleInterface(); err != nil {
					s.logger.Warn("interface power-cycle failed", "error", err)
				}
			}
		}

		out := s.backend.Connect(sess.Target)
		if out.OK {
			s.logger.Info("connected to target", "ssid", sess.Target.SSID, "attempt", i+1)
			return
		}
		s.logger.Warn("connect attempt failed",
			"ssid", sess.Target.SSID, "attempt", i+1, "diagnostic", out.Diagnostic)
		s.reporter.Linef("connect attempt %d/%d failed: %s", i+1, attempts, out.Diagnostic)
	}
	s.reporter.Linef("could not confirm association with %q; continuing so the network gets restored", sess.Target.SSID)
}

// revert brings the interface back to the original network. It runs at
// most once per session: the first trigger (normal completion, watchdog,
// or interruption) to get here performs it, later ones no-op. It is
// single-shot and never retries, since it may be the last safety net left.
func (s *Switcher) revert(sess *Session, cause string) {
	sess.revertOnce.Do(func() {
		sess.setPhase(PhaseReverting)
		if cause != "" {
			s.logger.Warn("recovery revert", "session", sess.ID, "trigger", cause)
			s.reporter.Linef("recovery (%s): restoring network %q", cause, sess.Original.SSID)
		}
		s.reporter.Emit(progress.Record{Label: fmt.Sprintf("Reverting to %s", sess.Original.SSID)})

		if sess.Original.SSID == "" {
			s.reporter.Linef("WARNING: no original network known; check the current network manually")
			s.logger.Error("revert skipped: no original network recorded", "session", sess.ID)
		} else {
			out := s.backend.Connect(sess.Original)
			// Plain sleep: this may be running after the caller's context
			// was already cancelled, and the settle still matters.
			time.Sleep(s.opts.SettleDelay)
			if !out.OK {
				s.reporter.Linef("WARNING: could not restore network %q (%s); check the current network manually",
					sess.Original.SSID, out.Diagnostic)
				s.logger.Error("revert failed", "session", sess.ID,
					"ssid", sess.Original.SSID, "diagnostic", out.Diagnostic)
			} else {
				s.logger.Info("restored original network", "session", sess.ID, "ssid", sess.Original.SSID)
			}
		}

		sess.switchedToTarget.Store(false)
		sess.setPhase(PhaseDone)
	})
}

// wait sleeps for d, returning early when ctx is cancelled.
func (s *Switcher) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
