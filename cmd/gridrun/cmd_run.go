package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/gridrun/internal/config"
	"github.com/nvandessel/gridrun/internal/grid"
	"github.com/nvandessel/gridrun/internal/launcher"
	"github.com/nvandessel/gridrun/internal/ledger"
	"github.com/nvandessel/gridrun/internal/logging"
	"github.com/nvandessel/gridrun/internal/pathutil"
	"github.com/nvandessel/gridrun/internal/plan"
	"github.com/spf13/cobra"
)

// runReport is the machine-readable summary of gridrun run.
type runReport struct {
	RunID      string   `json:"run_id,omitempty"`
	ExpName    string   `json:"exp_name"`
	Index      int      `json:"index"`
	Size       int      `json:"size"`
	Filename   string   `json:"filename"`
	OutputPath string   `json:"output_path"`
	Command    []string `json:"command"`
	DryRun     bool     `json:"dry_run,omitempty"`
	ExitCode   int      `json:"exit_code"`
	DurationMs int64    `json:"duration_ms"`
	StdoutLog  string   `json:"stdout_log,omitempty"`
	StderrLog  string   `json:"stderr_log,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the experiment at one grid index",
		Long: `Resolve the parameter assignment at --index and start the experiment
process with it. The process receives one "--name value" pair per
parameter plus "--vars" listing the swept names; its stdout and stderr
go to <log_dir>/<filename>.out and .err.

Examples:
  gridrun run --config configs/vote.json --name vote --index 3
  gridrun run --config sweep.yaml --name sweep --index 0 --lang exec --source votesim --source-dir bin
  gridrun run --config sweep.yaml --name sweep --index 0 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			configPath, _ := cmd.Flags().GetString("config")
			expName, _ := cmd.Flags().GetString("name")
			index, _ := cmd.Flags().GetInt("index")
			langFlag, _ := cmd.Flags().GetString("lang")
			sourceFlag, _ := cmd.Flags().GetString("source")
			sourceDir, _ := cmd.Flags().GetString("source-dir")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			logDir, _ := cmd.Flags().GetString("log-dir")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, settings)

			doc, err := grid.Load(configPath)
			if err != nil {
				return err
			}

			p, err := plan.Build(doc, plan.Options{
				ExpName:   expName,
				Index:     index,
				OutputDir: outputDir,
				LogDir:    logDir,
				SourceDir: sourceDir,
				Defaults:  settings.Executor,
			})
			if err != nil {
				return err
			}
			for _, key := range p.Assignment.Overridden() {
				logger.Warn("parameter overridden by a later layer", "key", key)
			}

			lang, err := launcher.ParseLanguage(valueOrDefault(langFlag, settings.Executor.Language))
			if err != nil {
				return err
			}
			command, err := p.Command(lang, valueOrDefault(sourceFlag, settings.Executor.Source))
			if err != nil {
				return err
			}

			outputPath, err := pathutil.Join(p.OutputDir, p.Filename)
			if err != nil {
				return fmt.Errorf("invalid output path: %w", err)
			}

			logger.Info("resolved run", "exp_name", p.ExpName, "index", p.Index, "size", p.Size, "filename", p.Filename)
			logger.Log(cmd.Context(), logging.LevelTrace, "experiment command", "argv", command.Argv(), "env", command.Env)

			report := runReport{
				ExpName:    p.ExpName,
				Index:      p.Index,
				Size:       p.Size,
				Filename:   p.Filename,
				OutputPath: outputPath,
				Command:    command.Argv(),
				DryRun:     dryRun,
			}

			if dryRun {
				return printRunReport(cmd, jsonOut, report)
			}

			if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			runErr := execute(cmd.Context(), logger, settings, p, command, &report)
			if runErr != nil {
				report.Error = runErr.Error()
			}
			if err := printRunReport(cmd, jsonOut, report); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().String("config", "", "Experiment configuration document (JSON or YAML)")
	cmd.Flags().String("name", "", "Experiment name, used as the output filename prefix")
	cmd.Flags().Int("index", 0, "Grid index to run (0-based)")
	cmd.Flags().String("lang", "", "Language: python, julia or exec (default from config)")
	cmd.Flags().String("source", "", "Experiment source file (default from config)")
	cmd.Flags().String("source-dir", "", "Directory holding the experiment source")
	cmd.Flags().String("output-dir", "", "Directory for the result artifact")
	cmd.Flags().String("log-dir", "", "Directory for stdout/stderr logs")
	cmd.Flags().Bool("dry-run", false, "Print the resolved command without starting it")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("index")

	return cmd
}

// execute records the run in the ledger, starts the process and records
// its outcome. The returned error is the launcher's.
func execute(ctx context.Context, logger *slog.Logger, settings *config.GridrunConfig, p *plan.Plan, command launcher.Command, report *runReport) error {
	events := openEvents(settings)
	defer events.Close()

	var (
		runs  *ledger.Ledger
		runID string
	)
	if settings.Ledger.Enabled {
		path, err := settings.LedgerPath()
		if err != nil {
			return err
		}
		runs, err = ledger.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer runs.Close()

		prev, err := runs.LastSucceeded(ctx, p.ExpName, p.Filename)
		if err != nil {
			return err
		}
		if prev != nil {
			logger.Warn("this output was already produced by a successful run; it will be overwritten",
				"filename", p.Filename, "previous_run", prev.ID, "finished", prev.FinishedAt)
		}

		runID, err = runs.Start(ctx, ledger.Run{
			ExpName:    p.ExpName,
			Index:      p.Index,
			Filename:   p.Filename,
			ConfigPath: p.ConfigPath,
			Command:    command.String(),
			OutputPath: report.OutputPath,
			Params:     p.Assignment.Map(),
		})
		if err != nil {
			return err
		}
		report.RunID = runID
	}

	events.Log("run_started", map[string]any{
		"run_id":   runID,
		"exp_name": p.ExpName,
		"index":    p.Index,
		"filename": p.Filename,
	})

	res, runErr := launcher.New(logger).Run(ctx, command, p.LogDir, p.Filename)

	exitCode := -1
	if res != nil {
		exitCode = res.ExitCode
		report.DurationMs = res.Duration().Milliseconds()
		report.StdoutLog = res.StdoutPath
		report.StderrLog = res.StderrPath
	}
	report.ExitCode = exitCode

	if runs != nil {
		// Record the outcome even when the run was interrupted.
		if err := runs.Finish(context.WithoutCancel(ctx), runID, exitCode); err != nil {
			logger.Warn("failed to record run outcome", "run_id", runID, "error", err)
		}
	}

	events.Log("run_finished", map[string]any{
		"run_id":      runID,
		"exp_name":    p.ExpName,
		"index":       p.Index,
		"exit_code":   exitCode,
		"duration_ms": report.DurationMs,
	})

	var subErr *launcher.SubprocessError
	switch {
	case runErr == nil:
		logger.Info("experiment finished", "duration", res.Duration(), "output", report.OutputPath)
	case errors.As(runErr, &subErr):
		logger.Error("experiment failed", "exit_code", subErr.ExitCode, "stderr_log", report.StderrLog)
	}
	return runErr
}

func printRunReport(cmd *cobra.Command, jsonOut bool, r runReport) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(out).Encode(r)
	}

	fmt.Fprintf(out, "Experiment: %s [%d/%d]\n", r.ExpName, r.Index, r.Size)
	fmt.Fprintf(out, "Output:     %s\n", r.OutputPath)
	fmt.Fprintf(out, "Command:    %s\n", launcher.Command{Program: r.Command[0], Args: r.Command[1:]})
	if r.DryRun {
		fmt.Fprintln(out, "(dry run, not started)")
		return nil
	}
	if r.RunID != "" {
		fmt.Fprintf(out, "Run ID:     %s\n", r.RunID)
	}
	fmt.Fprintf(out, "Exit code:  %d\n", r.ExitCode)
	if r.StdoutLog != "" {
		fmt.Fprintf(out, "Logs:       %s, %s\n", r.StdoutLog, r.StderrLog)
	}
	return nil
}
