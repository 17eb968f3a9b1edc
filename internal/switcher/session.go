package switcher

import (
	"sync"
	"sync/atomic"

	"github.com/epapersync/epapersync/wifi"
	"github.com/google/uuid"
)

// Phase is the lifecycle stage of a switch session.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDetecting
	PhaseSwitching
	PhaseWorking
	PhaseReverting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDetecting:
		return "detecting"
	case PhaseSwitching:
		return "switching"
	case PhaseWorking:
		return "working"
	case PhaseReverting:
		return "reverting"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Session is the mutable state of one orchestration run. Exactly one
// session exists at a time; the Switcher rejects overlapping runs.
//
// Original is captured once during detection and never overwritten. The
// revertOnce gate is what makes the revert single-shot no matter how many
// triggers (completion, watchdog, interruption) race for it.
type Session struct {
	ID       uuid.UUID
	Original wifi.Identity
	Target   wifi.Identity

	phase            atomic.Int32
	switchedToTarget atomic.Bool
	revertOnce       sync.Once
}

func newSession(target wifi.Identity) *Session {
	return &Session{ID: uuid.New(), Target: target}
}

// Phase returns the session's current lifecycle stage.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Session) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

// SwitchedToTarget reports whether the session's last attempted network
// change targeted the device network and has not yet been reverted. The
// flag is set optimistically, before association is confirmed: the safety
// contract is "assume we switched and must revert".
func (s *Session) SwitchedToTarget() bool {
	return s.switchedToTarget.Load()
}
