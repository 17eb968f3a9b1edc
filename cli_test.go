package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/epapersync/epapersync/internal/config"
	"github.com/epapersync/epapersync/wifi/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	cfg.TargetNetworkSSID = "EPaper"
	cfg.TargetNetworkPassword = "devicepw"
	cfg.OriginalNetworkFallbackSSID = "Home"
	cfg.ConnectionWaitTime = 0
	cfg.RetryDelay = 0
	cfg.UploadDelaySeconds = 0
	return cfg
}

func TestRunScan(t *testing.T) {
	backend := mock.New()
	backend.Visible = []string{"EPaper"}

	var buf bytes.Buffer
	assert.True(t, runScan(&buf, backend, "EPaper"))
	assert.Contains(t, buf.String(), "EPaper: in range")

	buf.Reset()
	assert.False(t, runScan(&buf, backend, "Elsewhere"))
	assert.Contains(t, buf.String(), "Elsewhere: not in range")
}

func TestRunStatus(t *testing.T) {
	backend := mock.New()
	backend.Current = "Home"
	backend.Visible = []string{"EPaper"}

	var buf bytes.Buffer
	require.NoError(t, runStatus(&buf, backend, testConfig(t)))

	out := buf.String()
	assert.Contains(t, out, "Current network: Home")
	assert.Contains(t, out, "Device network:  EPaper")
	assert.Contains(t, out, "Device network is in range.")
}

func TestRunStatusOnDeviceNetwork(t *testing.T) {
	backend := mock.New()
	backend.Current = "EPaper"

	var buf bytes.Buffer
	require.NoError(t, runStatus(&buf, backend, testConfig(t)))
	assert.Contains(t, buf.String(), "a sync would skip the switch")
}

func TestRunSyncRequiresTargetSSID(t *testing.T) {
	cfg := testConfig(t)
	cfg.TargetNetworkSSID = ""

	var buf bytes.Buffer
	code, err := runSync(context.Background(), &buf, mock.New(), cfg, testLogger(), nil, nil)
	require.ErrorIs(t, err, config.ErrMissingField)
	assert.Equal(t, 1, code)
}

func TestRunSyncNativeUploadRequiresDeviceIP(t *testing.T) {
	cfg := testConfig(t)
	cfg.DeviceIP = ""

	var buf bytes.Buffer
	_, err := runSync(context.Background(), &buf, mock.New(), cfg, testLogger(), nil, nil)
	require.ErrorIs(t, err, config.ErrMissingField)
}

// TestRunSyncEndToEnd drives a whole session against a mock interface and a
// fake device web server.
func TestRunSyncEndToEnd(t *testing.T) {
	texts := t.TempDir()
	book := filepath.Join(texts, "novel.epub")
	require.NoError(t, os.WriteFile(book, []byte("pages"), 0o644))

	var uploads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			uploads++
		}
	}))
	defer srv.Close()
	host, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.DeviceIP = host.Host
	cfg.TextsDir = texts

	backend := mock.New()
	backend.Current = "Home"

	var buf bytes.Buffer
	code, err := runSync(context.Background(), &buf, backend, cfg, testLogger(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, uploads)

	// Back on the original network, book consumed.
	assert.Equal(t, []string{"EPaper", "Home"}, backend.ConnectedSSIDs())
	_, err = os.Stat(book)
	assert.True(t, os.IsNotExist(err))
}

func TestRunQR(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runQR(&buf, cfg, "target"))
	assert.Contains(t, buf.String(), "Scan to join EPaper")

	buf.Reset()
	require.NoError(t, runQR(&buf, cfg, "original"))
	assert.Contains(t, buf.String(), "Scan to join Home")

	require.Error(t, runQR(&buf, cfg, "sideways"))

	cfg.OriginalNetworkFallbackSSID = ""
	require.Error(t, runQR(&buf, cfg, "original"))
}
