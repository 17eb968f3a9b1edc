// Package progress emits and parses the machine-readable status lines that
// external UIs consume while a sync is running.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// prefix marks a machine-parsable line. Everything else on the stream is
// human-readable companion output.
const prefix = "PROGRESS|"

// Record is one progress data point.
type Record struct {
	Succeeded int
	Failed    int
	Processed int
	Total     int
	Label     string
}

// String renders the record in wire format. Label goes last and unescaped:
// consumers split on the first four delimiters only, so it may contain pipes.
func (r Record) String() string {
	return fmt.Sprintf("%s%d|%d|%d|%d|%s", prefix, r.Succeeded, r.Failed, r.Processed, r.Total, r.Label)
}

// Reporter serializes records onto a stream. Writes go straight to the
// underlying writer, one line per call, so consumers reading incrementally
// see records the moment they happen and always in emission order.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter creates a Reporter writing to w. w should be unbuffered (an
// *os.File is fine).
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Emit writes one record line.
func (p *Reporter) Emit(r Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, r.String())
}

// Linef writes a human-readable companion line. Companion lines must never
// masquerade as records, so a leading record prefix gets indented away.
func (p *Reporter) Linef(format string, a ...interface{}) {
	line := fmt.Sprintf(format, a...)
	if strings.HasPrefix(line, prefix) {
		line = " " + line
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// Forward passes a workload output line through verbatim, preserving any
// record lines the workload emits itself.
func (p *Reporter) Forward(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// ParseLine decodes a record line. It reports ok=false for companion lines
// and for malformed records.
func ParseLine(line string) (Record, bool) {
	if !strings.HasPrefix(line, prefix) {
		return Record{}, false
	}
	// Split on the first four delimiters only; the label keeps the rest.
	parts := strings.SplitN(line[len(prefix):], "|", 5)
	if len(parts) != 5 {
		return Record{}, false
	}

	var nums [4]int
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return Record{}, false
		}
		nums[i] = n
	}

	return Record{
		Succeeded: nums[0],
		Failed:    nums[1],
		Processed: nums[2],
		Total:     nums[3],
		Label:     strings.TrimSpace(parts[4]),
	}, true
}
