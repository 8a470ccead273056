// Package config provides unified configuration loading for gridrun.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/gridrun/internal/constants"
	"github.com/nvandessel/gridrun/internal/launcher"
	"github.com/nvandessel/gridrun/internal/logging"
	"gopkg.in/yaml.v3"
)

// GridrunConfig contains all gridrun configuration settings.
type GridrunConfig struct {
	// Executor contains defaults for launching experiment processes.
	Executor ExecutorConfig `json:"executor" yaml:"executor"`

	// Ledger contains settings for the run ledger database.
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ExecutorConfig holds the defaults used when neither the command line nor
// the experiment document says otherwise.
type ExecutorConfig struct {
	// Language is the default language selector: "python", "julia" or "exec".
	Language string `json:"language" yaml:"language"`

	// Source is the default experiment source file, relative to SourceDir.
	Source string `json:"source" yaml:"source"`

	// SourceDir is the directory holding experiment sources.
	SourceDir string `json:"source_dir" yaml:"source_dir"`

	// OutputDir is where experiment processes write result artifacts.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// LogDir is where stdout/stderr logs of experiment processes go.
	LogDir string `json:"log_dir" yaml:"log_dir"`
}

// LedgerConfig configures the SQLite run ledger.
type LedgerConfig struct {
	// Enabled records every launch in the ledger.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the database file. Empty means ~/.gridrun/runs.db.
	// Supports ${VAR} syntax for env vars.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures gridrun's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the run event log at ~/.gridrun/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a GridrunConfig with sensible defaults.
func Default() *GridrunConfig {
	return &GridrunConfig{
		Executor: ExecutorConfig{
			Language:  constants.DefaultLanguage,
			Source:    constants.DefaultSource,
			SourceDir: constants.DefaultSourceDir,
			OutputDir: constants.DefaultOutputDir,
			LogDir:    constants.DefaultLogDir,
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the global gridrun directory (~/.gridrun).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.GlobalDirName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.gridrun/config.yaml -> environment variables
func Load() (*GridrunConfig, error) {
	config := Default()

	dir, err := Dir()
	if err == nil {
		configPath := filepath.Join(dir, constants.ConfigFileName)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*GridrunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Ledger.Path = expandEnvVars(config.Ledger.Path)
	config.Executor.SourceDir = expandEnvVars(config.Executor.SourceDir)
	config.Executor.OutputDir = expandEnvVars(config.Executor.OutputDir)
	config.Executor.LogDir = expandEnvVars(config.Executor.LogDir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *GridrunConfig) Validate() error {
	if _, err := launcher.ParseLanguage(c.Executor.Language); err != nil {
		return fmt.Errorf("invalid executor.language: %w", err)
	}

	if c.Executor.OutputDir == "" {
		return fmt.Errorf("executor.output_dir must not be empty")
	}
	if c.Executor.LogDir == "" {
		return fmt.Errorf("executor.log_dir must not be empty")
	}

	if err := logging.ValidateLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// LedgerPath returns the configured ledger path or the default location.
func (c *GridrunConfig) LedgerPath() (string, error) {
	if c.Ledger.Path != "" {
		return c.Ledger.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LedgerFileName), nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *GridrunConfig) {
	if v := os.Getenv("GRIDRUN_LANG"); v != "" {
		config.Executor.Language = v
	}

	if v := os.Getenv("GRIDRUN_SOURCE"); v != "" {
		config.Executor.Source = v
	}

	if v := os.Getenv("GRIDRUN_SOURCE_DIR"); v != "" {
		config.Executor.SourceDir = v
	}

	if v := os.Getenv("GRIDRUN_OUTPUT_DIR"); v != "" {
		config.Executor.OutputDir = v
	}

	if v := os.Getenv("GRIDRUN_LOG_DIR"); v != "" {
		config.Executor.LogDir = v
	}

	if v := os.Getenv("GRIDRUN_LEDGER_ENABLED"); v != "" {
		config.Ledger.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("GRIDRUN_LEDGER_PATH"); v != "" {
		config.Ledger.Path = v
	}

	if v := os.Getenv("GRIDRUN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
