package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nvandessel/gridrun/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show gridrun configuration",
		Long: `View gridrun tool configuration.

Configuration is read from ~/.gridrun/config.yaml and overridden by
GRIDRUN_* environment variables.

Examples:
  gridrun config list                  # Show all settings
  gridrun config get executor.language # Get a specific setting`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			ledgerPath, _ := cfg.LedgerPath()
			fmt.Fprintln(out, "Configuration (~/.gridrun/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Executor Settings:")
			fmt.Fprintf(out, "  executor.language:   %s\n", cfg.Executor.Language)
			fmt.Fprintf(out, "  executor.source:     %s\n", cfg.Executor.Source)
			fmt.Fprintf(out, "  executor.source_dir: %s\n", valueOrDefault(cfg.Executor.SourceDir, "(current directory)"))
			fmt.Fprintf(out, "  executor.output_dir: %s\n", cfg.Executor.OutputDir)
			fmt.Fprintf(out, "  executor.log_dir:    %s\n", cfg.Executor.LogDir)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Ledger Settings:")
			fmt.Fprintf(out, "  ledger.enabled:      %v\n", cfg.Ledger.Enabled)
			fmt.Fprintf(out, "  ledger.path:         %s\n", valueOrDefault(cfg.Ledger.Path, "(default: "+ledgerPath+")"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging Settings:")
			fmt.Fprintf(out, "  logging.level:       %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s (valid: %v)", key, configKeys(cfg))
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
			return nil
		},
	}
}

// configValues maps dotted keys to their current values.
func configValues(cfg *config.GridrunConfig) map[string]any {
	return map[string]any{
		"executor.language":   cfg.Executor.Language,
		"executor.source":     cfg.Executor.Source,
		"executor.source_dir": cfg.Executor.SourceDir,
		"executor.output_dir": cfg.Executor.OutputDir,
		"executor.log_dir":    cfg.Executor.LogDir,
		"ledger.enabled":      cfg.Ledger.Enabled,
		"ledger.path":         cfg.Ledger.Path,
		"logging.level":       cfg.Logging.Level,
	}
}

func getConfigValue(cfg *config.GridrunConfig, key string) (any, bool) {
	v, ok := configValues(cfg)[key]
	return v, ok
}

func configKeys(cfg *config.GridrunConfig) []string {
	values := configValues(cfg)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
