package main

import (
	"testing"

	"github.com/epapersync/epapersync/wifi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeWifiString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`semi;colon`, `semi\;colon`},
		{`back\slash`, `back\\slash`},
		{`a:b,c"d`, `a\:b\,c\"d`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeWifiString(tt.in))
	}
}

func TestGenerateWifiQRCode(t *testing.T) {
	out, err := GenerateWifiQRCode(wifi.Identity{SSID: "EPaper", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	// Open networks render too.
	out, err = GenerateWifiQRCode(wifi.Identity{SSID: "EPaper"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
