package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitFormat(t *testing.T) {
	var buf bytes.Buffer
	p := NewReporter(&buf)

	p.Emit(Record{Succeeded: 5, Failed: 1, Processed: 6, Total: 10, Label: "Downloading article 7"})

	assert.Equal(t, "PROGRESS|5|1|6|10|Downloading article 7\n", buf.String())
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Record
		ok   bool
	}{
		{
			name: "basic",
			line: "PROGRESS|5|1|6|10|Downloading article 7",
			want: Record{Succeeded: 5, Failed: 1, Processed: 6, Total: 10, Label: "Downloading article 7"},
			ok:   true,
		},
		{
			name: "label with pipes",
			line: "PROGRESS|0|0|0|3|Uploading: hcr|part|two.epub",
			want: Record{Total: 3, Label: "Uploading: hcr|part|two.epub"},
			ok:   true,
		},
		{
			name: "companion line",
			line: "Starting upload to device",
			ok:   false,
		},
		{
			name: "non-numeric field",
			line: "PROGRESS|a|0|0|0|x",
			ok:   false,
		},
		{
			name: "too few fields",
			line: "PROGRESS|1|2|3",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEmitParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	p := NewReporter(&buf)

	want := Record{Succeeded: 2, Failed: 0, Processed: 2, Total: 4, Label: "Uploading: hn/front.epub"}
	p.Emit(want)

	got, ok := ParseLine(strings.TrimSuffix(buf.String(), "\n"))
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLinefNeverLooksLikeARecord(t *testing.T) {
	var buf bytes.Buffer
	p := NewReporter(&buf)

	p.Linef("PROGRESS|fake|line")

	_, ok := ParseLine(strings.TrimSuffix(buf.String(), "\n"))
	assert.False(t, ok)
}

func TestForwardIsVerbatim(t *testing.T) {
	var buf bytes.Buffer
	p := NewReporter(&buf)

	p.Forward("PROGRESS|1|0|1|2|from the workload")

	rec, ok := ParseLine(strings.TrimSuffix(buf.String(), "\n"))
	require.True(t, ok)
	assert.Equal(t, "from the workload", rec.Label)
}
