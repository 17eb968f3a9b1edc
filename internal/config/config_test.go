package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetNetworkSSID != "E-Paper" {
		t.Errorf("default target ssid = %q, want E-Paper", cfg.TargetNetworkSSID)
	}
	if cfg.SwitchTimeout() != 300*time.Second {
		t.Errorf("default switch timeout = %v, want 5m", cfg.SwitchTimeout())
	}
}

func TestLoadWithSecretsOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), `
target_network_ssid = "EPaper"
original_network_fallback_ssid = "Home"
connection_wait_time = 2
max_retries = 1
device_ip = "192.168.4.1"
`)
	writeFile(t, filepath.Join(dir, "secrets.toml"), `
target_network_password = "hunter2"
original_network_password = "homepass"
`)

	cfg, err := Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Target(); got.SSID != "EPaper" || got.Password != "hunter2" {
		t.Errorf("Target() = %+v", got)
	}
	if got := cfg.OriginalFallback(); got.SSID != "Home" || got.Password != "homepass" {
		t.Errorf("OriginalFallback() = %+v", got)
	}
	if cfg.SettleDelay() != 2*time.Second {
		t.Errorf("SettleDelay() = %v, want 2s", cfg.SettleDelay())
	}
	if cfg.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", cfg.MaxRetries)
	}
	if cfg.UploadURL() != "http://192.168.4.1/edit" {
		t.Errorf("UploadURL() = %q", cfg.UploadURL())
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.TargetNetworkSSID = "  "
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}

	cfg = defaults()
	cfg.DeviceIP = ""
	if err := cfg.ValidateUpload(); !errors.Is(err, ErrMissingField) {
		t.Fatalf("ValidateUpload without device_ip should fail, got %v", err)
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.toml"), "target_network_ssid = [broken")

	if _, err := Load(filepath.Join(dir, "config.toml")); err == nil {
		t.Fatal("expected parse error")
	}
}
