// Package config loads the epapersync configuration: a TOML file of
// non-secret settings plus an optional secrets overlay kept out of version
// control.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/epapersync/epapersync/wifi"
)

// ErrMissingField marks configuration that is too incomplete to start a
// session with. It is a hard error: the orchestrator never starts blind.
var ErrMissingField = errors.New("missing required config field")

const (
	defaultConfigPath = "~/.config/epapersync/config.toml"
	secretsFileName   = "secrets.toml"
)

// Config is the full configuration surface. Timing fields are whole seconds.
type Config struct {
	TargetNetworkSSID           string `toml:"target_network_ssid"`
	TargetNetworkPassword       string `toml:"target_network_password"`
	OriginalNetworkFallbackSSID string `toml:"original_network_fallback_ssid"`
	OriginalNetworkPassword     string `toml:"original_network_password"`
	WifiInterfaceName           string `toml:"wifi_interface_name"`
	ConnectionWaitTime          int    `toml:"connection_wait_time"`
	SwitchTimeoutSeconds        int    `toml:"switch_timeout_seconds"`
	MaxRetries                  int    `toml:"max_retries"`
	RetryDelay                  int    `toml:"retry_delay"`
	PollInterval                int    `toml:"poll_interval"`
	AutoUploadEnabled           bool   `toml:"auto_upload_enabled"`

	DeviceIP           string `toml:"device_ip"`
	UploadEndpoint     string `toml:"upload_endpoint"`
	UploadTimeout      int    `toml:"upload_timeout"`
	UploadDelaySeconds int    `toml:"upload_delay_seconds"`
	TextsDir           string `toml:"texts_dir"`
	KeepFiles          bool   `toml:"keep_files"`
}

// defaults mirror the timings the device tolerates well in practice.
func defaults() Config {
	return Config{
		TargetNetworkSSID:    "E-Paper",
		ConnectionWaitTime:   5,
		SwitchTimeoutSeconds: 300,
		MaxRetries:           3,
		RetryDelay:           5,
		PollInterval:         30,
		UploadEndpoint:       "/edit",
		UploadTimeout:        30,
		UploadDelaySeconds:   1,
		TextsDir:             "texts",
	}
}

// Load reads the config at path (or the default location when path is
// empty), then overlays the secrets file sitting next to it, if present.
// A missing config file yields the defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	if _, err := toml.DecodeFile(resolved, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	// Secrets live in a separate file so the main config can be shared
	// freely; keys present there override the main config.
	secretsPath := filepath.Join(filepath.Dir(resolved), secretsFileName)
	if _, err := toml.DecodeFile(secretsPath, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse secrets: %w", err)
		}
	}

	return cfg, nil
}

// Validate reports whether the config is complete enough to run a switch
// session.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TargetNetworkSSID) == "" {
		return fmt.Errorf("target_network_ssid: %w", ErrMissingField)
	}
	return nil
}

// ValidateUpload additionally checks the fields the native uploader needs.
func (c Config) ValidateUpload() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DeviceIP) == "" {
		return fmt.Errorf("device_ip: %w", ErrMissingField)
	}
	return nil
}

// Target returns the device network identity.
func (c Config) Target() wifi.Identity {
	return wifi.Identity{SSID: c.TargetNetworkSSID, Password: c.TargetNetworkPassword}
}

// OriginalFallback returns the network to revert to when the original
// network cannot be detected at session start.
func (c Config) OriginalFallback() wifi.Identity {
	return wifi.Identity{SSID: c.OriginalNetworkFallbackSSID, Password: c.OriginalNetworkPassword}
}

// UploadURL builds the device's upload endpoint URL.
func (c Config) UploadURL() string {
	return "http://" + c.DeviceIP + c.UploadEndpoint
}

func (c Config) SettleDelay() time.Duration   { return time.Duration(c.ConnectionWaitTime) * time.Second }
func (c Config) SwitchTimeout() time.Duration { return time.Duration(c.SwitchTimeoutSeconds) * time.Second }
func (c Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}
func (c Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}
func (c Config) UploadTimeoutDuration() time.Duration {
	return time.Duration(c.UploadTimeout) * time.Second
}
func (c Config) UploadDelay() time.Duration {
	return time.Duration(c.UploadDelaySeconds) * time.Second
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
