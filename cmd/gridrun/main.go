package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/gridrun/internal/config"
	"github.com/nvandessel/gridrun/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gridrun",
		Short: "Run one point of a parameter sweep",
		Long: `gridrun runs research experiments over a parameter grid.

A configuration document lists fixed parameters and swept parameters
(lists). gridrun enumerates the Cartesian product of the swept values,
picks one combination by index, and starts the experiment process with
that parameter set, capturing its output to log files.

Typical use is one gridrun invocation per array-job task:
  gridrun run --config configs/vote.json --name vote --index $SLURM_ARRAY_TASK_ID`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: error, warn, info, debug or trace (default from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newPlanCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// signalContext returns a context cancelled on SIGINT (and SIGTERM where it
// exists). Cancelling it kills a running experiment process.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// loadSettings loads the tool configuration and applies the --log-level flag.
func loadSettings(cmd *cobra.Command) (*config.GridrunConfig, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		settings.Logging.Level = level
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// newLogger returns the stderr logger for settings.
func newLogger(cmd *cobra.Command, settings *config.GridrunConfig) *slog.Logger {
	return logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr())
}

// openEvents opens the JSONL event log. The result may be nil, which is
// safe to use.
func openEvents(settings *config.GridrunConfig) *logging.EventLogger {
	dir, err := config.Dir()
	if err != nil {
		return nil
	}
	return logging.NewEventLogger(dir, settings.Logging.Level)
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
