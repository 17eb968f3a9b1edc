package switcher

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/epapersync/epapersync/internal/progress"
	"github.com/epapersync/epapersync/internal/workload"
	"github.com/epapersync/epapersync/wifi/mock"
	"github.com/stretchr/testify/assert"
)

// scriptedScanner replays a fixed sequence of scan answers, then repeats
// the last one.
type scriptedScanner struct {
	answers []bool
	calls   int
}

func (s *scriptedScanner) ScanContains(ssid string) bool {
	i := s.calls
	s.calls++
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	return s.answers[i]
}

func newPollerFixture(t *testing.T, scans []bool, autoUpload bool, pending func() bool) (*Poller, *int) {
	t.Helper()

	backend := mock.New()
	backend.Current = "Home"

	runs := 0
	runner := workload.Func(func(ctx context.Context, items []string) (int, error) {
		runs++
		return 0, nil
	})

	var buf bytes.Buffer
	sw := New(backend, runner, progress.NewReporter(&buf), testLogger(), testOptions())
	p := NewPoller(&scriptedScanner{answers: scans}, sw, testLogger(), "EPaper", time.Minute, autoUpload, pending)
	return p, &runs
}

func TestPollerDebouncesWhileInRange(t *testing.T) {
	// In range on ticks 1-5, gone on tick 6.
	p, runs := newPollerFixture(t, []bool{true, true, true, true, true, false}, true, func() bool { return true })

	for i := 0; i < 6; i++ {
		p.tick(context.Background())
	}

	assert.Equal(t, 1, *runs, "one sync per availability edge")
}

func TestPollerReinvokesAfterLeavingAndReturning(t *testing.T) {
	p, runs := newPollerFixture(t, []bool{true, false, true}, true, func() bool { return true })

	for i := 0; i < 3; i++ {
		p.tick(context.Background())
	}

	assert.Equal(t, 2, *runs)
}

func TestPollerWaitsForPendingWork(t *testing.T) {
	pending := false
	p, runs := newPollerFixture(t, []bool{true}, true, func() bool { return pending })

	p.tick(context.Background())
	assert.Equal(t, 0, *runs, "nothing to sync yet")

	// Work appears while the device is still in range.
	pending = true
	p.tick(context.Background())
	assert.Equal(t, 1, *runs)

	p.tick(context.Background())
	assert.Equal(t, 1, *runs, "still debounced after the upload")
}

func TestPollerRespectsAutoUploadToggle(t *testing.T) {
	p, runs := newPollerFixture(t, []bool{true}, false, func() bool { return true })

	for i := 0; i < 3; i++ {
		p.tick(context.Background())
	}

	assert.Equal(t, 0, *runs)
}
