// Package runner executes a single external toolchain program inside a job
// workspace with its standard streams redirected to the null device. All
// rerun/retry semantics live in the pipeline driver; this layer reports only
// the exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Invocation describes one external tool run.
type Invocation struct {
	Tool string   // logical tool name, for logging
	Path string   // resolved executable path
	Args []string // arguments, already split
	Dir  string   // working directory (the job workspace)

	// EnvVars lists environment variable names to populate with the
	// joined SearchPaths list (e.g. TEXINPUTS for the formatter,
	// BIBINPUTS/BSTINPUTS for the bibliography tool).
	EnvVars     []string
	SearchPaths []string
}

// Runner abstracts external tool execution so driver tests can substitute a
// fake that fabricates logs and artifacts instead of invoking real binaries.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (exitCode int, err error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command with stdout and stderr suppressed and returns its
// exit code. A non-nil error means the process could not be started at all;
// a nonzero exit with a started process is not an error at this layer.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (int, error) {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return -1, fmt.Errorf("open null device: %w", err)
	}
	defer devNull.Close()

	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Env = buildEnv(os.Environ(), inv.EnvVars, inv.SearchPaths)

	start := time.Now()
	slog.Debug("Running external tool",
		logfields.Tool(inv.Tool),
		logfields.Path(inv.Path),
		"args", strings.Join(inv.Args, " "))

	runErr := cmd.Run()
	elapsed := time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		slog.Debug("Tool completed",
			logfields.Tool(inv.Tool),
			logfields.ExitCode(0),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		return 0, nil
	case errors.As(runErr, &exitErr):
		code := exitErr.ExitCode()
		slog.Debug("Tool exited nonzero",
			logfields.Tool(inv.Tool),
			logfields.ExitCode(code),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		return code, nil
	default:
		return -1, fmt.Errorf("failed to start %s (%s): %w", inv.Tool, inv.Path, runErr)
	}
}

// buildEnv appends one entry per requested variable name, set to the joined
// search-path list. A trailing separator is kept so the toolchain still
// consults its built-in defaults after the job's paths.
func buildEnv(base []string, names []string, searchPaths []string) []string {
	if len(names) == 0 || len(searchPaths) == 0 {
		return base
	}
	joined := strings.Join(searchPaths, string(os.PathListSeparator)) + string(os.PathListSeparator)
	env := make([]string, len(base), len(base)+len(names))
	copy(env, base)
	for _, name := range names {
		env = append(env, name+"="+joined)
	}
	return env
}
