package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/epapersync/epapersync/internal/config"
	"github.com/epapersync/epapersync/internal/progress"
	"github.com/epapersync/epapersync/internal/switcher"
	"github.com/epapersync/epapersync/internal/uploader"
	"github.com/epapersync/epapersync/internal/workload"
	"github.com/epapersync/epapersync/wifi"
)

func switchOptions(cfg config.Config) switcher.Options {
	return switcher.Options{
		Target:           cfg.Target(),
		OriginalFallback: cfg.OriginalFallback(),
		SettleDelay:      cfg.SettleDelay(),
		SwitchTimeout:    cfg.SwitchTimeout(),
		MaxRetries:       cfg.MaxRetries,
		RetryDelay:       cfg.RetryDelayDuration(),
	}
}

// buildRunner picks the session workload: an external command when one is
// given, the built-in device uploader otherwise.
func buildRunner(cfg config.Config, command []string, reporter *progress.Reporter, logger *slog.Logger) (workload.Runner, error) {
	if len(command) > 0 {
		return &workload.ExecRunner{Command: command, Reporter: reporter, Logger: logger}, nil
	}

	if err := cfg.ValidateUpload(); err != nil {
		return nil, err
	}
	return &uploader.Uploader{
		BaseURL:   cfg.UploadURL(),
		TextsDir:  cfg.TextsDir,
		KeepFiles: cfg.KeepFiles,
		Delay:     cfg.UploadDelay(),
		Client:    &http.Client{Timeout: cfg.UploadTimeoutDuration()},
		Reporter:  reporter,
		Logger:    logger,
	}, nil
}

// runSync runs one switch session and returns its exit code.
func runSync(ctx context.Context, w io.Writer, b wifi.Backend, cfg config.Config, logger *slog.Logger, command, items []string) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 1, err
	}

	reporter := progress.NewReporter(w)
	runner, err := buildRunner(cfg, command, reporter, logger)
	if err != nil {
		return 1, err
	}

	sw := switcher.New(b, runner, reporter, logger, switchOptions(cfg))
	return sw.Run(ctx, items)
}

// runUpload runs the workload directly, without touching the network.
// Useful when the host is already routed to the device by other means.
func runUpload(ctx context.Context, w io.Writer, cfg config.Config, logger *slog.Logger, command, items []string) (int, error) {
	reporter := progress.NewReporter(w)
	runner, err := buildRunner(cfg, command, reporter, logger)
	if err != nil {
		return 1, err
	}
	return runner.Run(ctx, items)
}

// runWatch polls for the device network and syncs whenever it appears with
// pending work. It blocks until ctx is cancelled.
func runWatch(ctx context.Context, w io.Writer, b wifi.Backend, cfg config.Config, logger *slog.Logger, command []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	reporter := progress.NewReporter(w)
	runner, err := buildRunner(cfg, command, reporter, logger)
	if err != nil {
		return err
	}

	pending := func() bool {
		if len(command) > 0 {
			// An external workload manages its own queue; always eligible.
			return true
		}
		books, err := uploader.FindBooks(cfg.TextsDir)
		if err != nil {
			logger.Warn("checking texts dir failed", "dir", cfg.TextsDir, "error", err)
			return false
		}
		return len(books) > 0
	}

	sw := switcher.New(b, runner, reporter, logger, switchOptions(cfg))
	p := switcher.NewPoller(b, sw, logger, cfg.TargetNetworkSSID, cfg.PollIntervalDuration(), cfg.AutoUploadEnabled, pending)

	logger.Info("watching for device network",
		"ssid", cfg.TargetNetworkSSID, "interval", cfg.PollIntervalDuration(), "auto_upload", cfg.AutoUploadEnabled)
	err = p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runScan reports whether the device network is currently in range.
func runScan(w io.Writer, b wifi.Backend, ssid string) bool {
	if b.ScanContains(ssid) {
		fmt.Fprintf(w, "%s: in range\n", ssid)
		return true
	}
	fmt.Fprintf(w, "%s: not in range\n", ssid)
	return false
}

// runStatus prints the current association and how it relates to the
// configured device network.
func runStatus(w io.Writer, b wifi.Backend, cfg config.Config) error {
	current, err := b.CurrentNetwork()
	if err != nil {
		return fmt.Errorf("querying current network: %w", err)
	}

	if current == "" {
		fmt.Fprintln(w, "Current network: (none)")
	} else {
		fmt.Fprintf(w, "Current network: %s\n", current)
	}
	fmt.Fprintf(w, "Device network:  %s\n", cfg.TargetNetworkSSID)

	switch {
	case current == cfg.TargetNetworkSSID && current != "":
		fmt.Fprintln(w, "On the device network; a sync would skip the switch.")
	case b.ScanContains(cfg.TargetNetworkSSID):
		fmt.Fprintln(w, "Device network is in range.")
	default:
		fmt.Fprintln(w, "Device network is not in range.")
	}
	return nil
}

// runQR prints a joinable QR code for the named network.
func runQR(w io.Writer, cfg config.Config, which string) error {
	var id wifi.Identity
	switch which {
	case "target", "":
		id = cfg.Target()
	case "original":
		id = cfg.OriginalFallback()
	default:
		return fmt.Errorf("unknown network %q (want target or original)", which)
	}
	if id.SSID == "" {
		return fmt.Errorf("no SSID configured for %q network", which)
	}

	code, err := GenerateWifiQRCode(id)
	if err != nil {
		return fmt.Errorf("generating QR code: %w", err)
	}
	fmt.Fprintf(w, "Scan to join %s:\n%s", id.SSID, code)
	return nil
}
