package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/nvandessel/gridrun/internal/naming"
)

// ErrSubprocess matches any *SubprocessError.
var ErrSubprocess = errors.New("experiment process failed")

// SubprocessError reports a child that could not start or exited non-zero.
// ExitCode is -1 when the process never started or was killed by a signal.
type SubprocessError struct {
	Command  []string
	ExitCode int
	Err      error
}

func (e *SubprocessError) Error() string {
	msg := "experiment process failed"
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if len(e.Command) > 0 {
		msg += ": " + Command{Program: e.Command[0], Args: e.Command[1:]}.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSubprocess.
func (e *SubprocessError) Is(target error) bool { return target == ErrSubprocess }

// Result describes a finished run.
type Result struct {
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	StdoutPath string
	StderrPath string
}

// Duration returns the wall-clock run time.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Launcher runs experiment processes one at a time.
type Launcher struct {
	logger *slog.Logger
}

// New creates a Launcher. A nil logger discards log output.
func New(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{logger: logger}
}

// Run starts cmd, redirects its stdout and stderr into logDir (created if
// absent) under names derived from filename, and blocks until it exits.
//
// A non-nil Result is returned whenever the log files were opened, including
// alongside a *SubprocessError.
func (l *Launcher) Run(ctx context.Context, cmd Command, logDir, filename string) (*Result, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stdoutPath, stderrPath := naming.LogPaths(logDir, filename)
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout log: %w", err)
	}
	defer stdout.Close()

	stderr, err := os.Create(stderrPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr log: %w", err)
	}
	defer stderr.Close()

	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Stdout = stdout
	c.Stderr = stderr
	c.Env = append(os.Environ(), cmd.Env...)

	res := &Result{StdoutPath: stdoutPath, StderrPath: stderrPath}

	l.logger.Debug("starting experiment process", "command", cmd.String(), "stdout", stdoutPath, "stderr", stderrPath)
	res.StartedAt = time.Now()
	runErr := c.Run()
	res.FinishedAt = time.Now()

	if runErr == nil {
		l.logger.Debug("experiment process exited", "exit_code", 0, "duration", res.Duration())
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	l.logger.Debug("experiment process failed", "exit_code", res.ExitCode, "duration", res.Duration(), "error", runErr)

	return res, &SubprocessError{
		Command:  cmd.Argv(),
		ExitCode: res.ExitCode,
		Err:      runErr,
	}
}
