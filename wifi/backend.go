package wifi

// Identity names a network and carries the credential needed to join it.
// Values are read from configuration once and never mutated afterwards.
type Identity struct {
	SSID     string
	Password string
}

// ConnectOutcome reports the result of a single association attempt.
// OK reflects only that the underlying tool accepted the request; callers
// that need to know whether an association actually happened must follow
// up with CurrentNetwork.
type ConnectOutcome struct {
	OK         bool
	Diagnostic string
}

// Backend controls one wireless interface through a platform-specific tool
// or daemon. All operations are best-effort: the underlying utilities give
// no atomicity guarantee, so expected failures are reported as values
// rather than raised as errors.
type Backend interface {
	// CurrentNetwork returns the SSID the interface is associated with,
	// or "" when unassociated. Ambiguous or garbled tool output is
	// reported as unassociated, never as an error.
	CurrentNetwork() (string, error)

	// ScanContains triggers a fresh scan and reports whether the given
	// SSID is visible. A failed scan reports false.
	ScanContains(ssid string) bool

	// Connect attempts to associate with the given network. It does not
	// retry and does not block beyond the backend's command timeout.
	// Backends that manage saved profiles try the saved profile first
	// and fall back to creating a new one with the password.
	Connect(id Identity) ConnectOutcome

	// CycleInterface powers the radio off and back on. Used as a recovery
	// step when association attempts fail repeatedly.
	CycleInterface() error
}
