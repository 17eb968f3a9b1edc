// Package workload defines what the orchestrator executes while connected
// to the device network. The orchestrator treats the workload as a black
// box: it forwards output and the exit status without interpreting either.
package workload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/epapersync/epapersync/internal/progress"
)

// Runner executes one unit of work. items is an opaque list of work-item
// identifiers; empty means "process all pending work". The returned int is
// the workload's exit code, forwarded to the caller unchanged.
type Runner interface {
	Run(ctx context.Context, items []string) (int, error)
}

// Func adapts a plain function to the Runner interface.
type Func func(ctx context.Context, items []string) (int, error)

func (f Func) Run(ctx context.Context, items []string) (int, error) {
	return f(ctx, items)
}

// ExecRunner runs an external command as the workload, appending the work
// items to its argument list. Stdout is streamed to the progress reporter
// line by line, verbatim, so record lines the command emits reach the
// consumer in real time.
type ExecRunner struct {
	Command  []string
	Reporter *progress.Reporter
	Logger   *slog.Logger
}

func (e *ExecRunner) Run(ctx context.Context, items []string) (int, error) {
	if len(e.Command) == 0 {
		return 1, fmt.Errorf("no workload command configured")
	}

	args := append(append([]string{}, e.Command[1:]...), items...)
	cmd := exec.CommandContext(ctx, e.Command[0], args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("workload stdout: %w", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("starting workload: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		e.Reporter.Forward(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		e.Logger.Warn("reading workload output", "error", err)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("workload: %w", err)
	}
	return 0, nil
}
