package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/epapersync/epapersync/internal/config"
	"github.com/epapersync/epapersync/wifi"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		rootFlagSet = flag.NewFlagSet("epapersync", flag.ExitOnError)
		configPath  = rootFlagSet.String("config", "", "path to config toml file (env: EPAPERSYNC_CONFIG)")
		verbose     = rootFlagSet.Bool("verbose", false, "log debug detail to stderr")
		version     = rootFlagSet.Bool("version", false, "display version")
	)

	// Filled in after flag parsing; the subcommand Execs close over these.
	var (
		cfg    config.Config
		logger *slog.Logger
		b      wifi.Backend
	)

	syncFlagSet := flag.NewFlagSet("sync", flag.ExitOnError)
	syncExec := syncFlagSet.String("exec", "", "run this command as the workload instead of the built-in uploader")
	syncKeep := syncFlagSet.Bool("keep-files", false, "keep local files after a successful upload")
	syncNoSwitch := syncFlagSet.Bool("no-switch", false, "upload without switching networks")
	syncCmd := &ffcli.Command{
		Name:       "sync",
		ShortUsage: "epapersync sync [flags] [files...]",
		ShortHelp:  "Switch to the device network, upload, switch back",
		FlagSet:    syncFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			if *syncKeep {
				cfg.KeepFiles = true
			}
			var code int
			var err error
			if *syncNoSwitch {
				code, err = runUpload(ctx, os.Stdout, cfg, logger, splitCommand(*syncExec), args)
			} else {
				code, err = runSync(ctx, os.Stdout, b, cfg, logger, splitCommand(*syncExec), args)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if code != 0 {
				return exitCodeError(code)
			}
			return nil
		},
	}

	watchFlagSet := flag.NewFlagSet("watch", flag.ExitOnError)
	watchExec := watchFlagSet.String("exec", "", "run this command as the workload instead of the built-in uploader")
	watchCmd := &ffcli.Command{
		Name:       "watch",
		ShortUsage: "epapersync watch [flags]",
		ShortHelp:  "Poll for the device network and sync when it appears",
		FlagSet:    watchFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			return runWatch(ctx, os.Stdout, b, cfg, logger, splitCommand(*watchExec))
		},
	}

	scanCmd := &ffcli.Command{
		Name:       "scan",
		ShortUsage: "epapersync scan [ssid]",
		ShortHelp:  "Check whether the device network is in range",
		Exec: func(ctx context.Context, args []string) error {
			ssid := cfg.TargetNetworkSSID
			if len(args) > 0 {
				ssid = args[0]
			}
			if !runScan(os.Stdout, b, ssid) {
				return exitCodeError(1)
			}
			return nil
		},
	}

	statusCmd := &ffcli.Command{
		Name:       "status",
		ShortUsage: "epapersync status",
		ShortHelp:  "Show the current network relative to the device network",
		Exec: func(ctx context.Context, args []string) error {
			return runStatus(os.Stdout, b, cfg)
		},
	}

	qrCmd := &ffcli.Command{
		Name:       "qr",
		ShortUsage: "epapersync qr [target|original]",
		ShortHelp:  "Print a QR code for joining a configured network",
		Exec: func(ctx context.Context, args []string) error {
			which := ""
			if len(args) > 0 {
				which = args[0]
			}
			return runQR(os.Stdout, cfg, which)
		},
	}

	root := &ffcli.Command{
		ShortUsage:  "epapersync [flags] <subcommand> [args...]",
		FlagSet:     rootFlagSet,
		Subcommands: []*ffcli.Command{syncCmd, watchCmd, scanCmd, statusCmd, qrCmd},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}

	// Parse root flags up front so config and logging are ready before the
	// subcommand runs. root.Run parses them again, which is fine.
	err := ff.Parse(rootFlagSet, args,
		ff.WithEnvVarPrefix("EPAPERSYNC"),
		ff.WithIgnoreUndefined(true),
	)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.FlagSet.Usage()
			return 0
		}
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		return 1
	}

	if *version {
		fmt.Println(Version)
		return 0
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err = config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}

	b, err = GetBackend(logger, cfg.WifiInterfaceName, cfg.SettleDelay())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	// SIGINT and SIGTERM cancel the context; the switcher turns that into
	// its recovery path rather than dying mid-switch.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx); err != nil {
		var code exitCodeError
		if errors.As(err, &code) {
			return int(code)
		}
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// exitCodeError carries a process exit code through ffcli's error return.
type exitCodeError int

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

// splitCommand turns a workload command string into argv; empty means the
// built-in uploader.
func splitCommand(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
