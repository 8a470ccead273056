// Package constants provides named constants used throughout the gridrun codebase.
// This centralizes defaults and file names for better maintainability.
package constants

// Global directory layout under the user's home directory.
const (
	// GlobalDirName is the name of the per-user gridrun directory.
	GlobalDirName = ".gridrun"

	// ConfigFileName is the tool configuration file inside GlobalDirName.
	ConfigFileName = "config.yaml"

	// LedgerFileName is the default run ledger database inside GlobalDirName.
	LedgerFileName = "runs.db"

	// EventsFileName is the JSONL run event log inside GlobalDirName.
	EventsFileName = "events.jsonl"
)

// Executor defaults, used when neither flags, the experiment document nor
// the tool configuration set a value.
const (
	// DefaultLanguage is the language selector used to start experiments.
	DefaultLanguage = "python"

	// DefaultSource is the experiment source file.
	DefaultSource = "experiment.py"

	// DefaultSourceDir is the directory experiment sources are resolved against.
	DefaultSourceDir = "src"

	// DefaultOutputDir is where experiments write their JSON artifacts.
	DefaultOutputDir = "results"

	// DefaultLogDir is where experiment stdout/stderr logs are written.
	DefaultLogDir = "logs"
)

// Ledger query limits.
const (
	// DefaultRunsLimit is the default number of runs listed by "gridrun runs".
	DefaultRunsLimit = 50

	// MaxRunsLimit caps the number of runs returned in one query.
	MaxRunsLimit = 1000
)
