// Package launcher turns a resolved parameter assignment into an experiment
// process invocation and runs it with its output captured to log files.
package launcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/gridrun/internal/grid"
)

// Language selects how the experiment source is started.
type Language string

const (
	// Python runs "python <source> ...".
	Python Language = "python"
	// Julia runs "julia <source> ...".
	Julia Language = "julia"
	// Exec runs the source itself as the program.
	Exec Language = "exec"
)

// Languages lists the supported languages.
var Languages = []Language{Python, Julia, Exec}

// VarsFlag carries the comma-separated names of the swept parameters.
const VarsFlag = grid.KeyVars

// EnvPrefix marks environment variables set by the launcher itself.
const EnvPrefix = "GRIDRUN_"

// ErrUnsupportedLanguage matches any *UnsupportedLanguageError.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// UnsupportedLanguageError is returned for a language outside Languages.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	names := make([]string, len(Languages))
	for i, l := range Languages {
		names[i] = string(l)
	}
	return fmt.Sprintf("language %q is not supported (supported: %s)", e.Language, strings.Join(names, ", "))
}

// Is reports whether target is ErrUnsupportedLanguage.
func (e *UnsupportedLanguageError) Is(target error) bool { return target == ErrUnsupportedLanguage }

// ParseLanguage validates a language selector.
func ParseLanguage(s string) (Language, error) {
	for _, l := range Languages {
		if string(l) == s {
			return l, nil
		}
	}
	return "", &UnsupportedLanguageError{Language: s}
}

// Command is a fully synthesized process invocation. Args are passed to the
// process as discrete argv elements; no shell is involved.
type Command struct {
	Program string
	Args    []string

	// Env holds KEY=VALUE pairs added to the parent environment.
	Env []string
}

// Argv returns the program followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

// String renders the command for logs, quoting arguments that need it.
func (c Command) String() string {
	argv := c.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\$`") {
			quoted[i] = strconv.Quote(a)
		} else {
			quoted[i] = a
		}
	}
	return strings.Join(quoted, " ")
}

// Args renders one "--name value" pair per parameter in assignment order,
// followed by "--vars" with the swept parameter names.
func Args(a grid.Assignment) []string {
	params := a.Params()
	args := make([]string, 0, 2*len(params)+2)
	for _, p := range params {
		args = append(args, "--"+p.Name, grid.FormatValue(p.Value))
	}
	args = append(args, "--"+VarsFlag, strings.Join(a.SweptNames(), ","))
	return args
}

// BuildCommand synthesizes the invocation of source under lang.
func BuildCommand(a grid.Assignment, lang Language, sourceDir, source string) (Command, error) {
	if source == "" {
		return Command{}, errors.New("experiment source is required")
	}

	script := source
	if sourceDir != "" {
		script = filepath.Join(sourceDir, source)
	}

	switch lang {
	case Python, Julia:
		return Command{
			Program: string(lang),
			Args:    append([]string{script}, Args(a)...),
		}, nil
	case Exec:
		// A bare name would be looked up in PATH; keep it relative to sourceDir.
		if sourceDir != "" && !strings.ContainsRune(script, filepath.Separator) {
			script = "." + string(filepath.Separator) + script
		}
		return Command{Program: script, Args: Args(a)}, nil
	default:
		return Command{}, &UnsupportedLanguageError{Language: string(lang)}
	}
}

// RunInfo identifies the run in the child's environment.
type RunInfo struct {
	ExpName    string
	Index      int
	OutputFile string
}

// BuildEnv returns the environment additions for a run: the user-supplied
// variables in key order, minus any in the reserved GRIDRUN_ namespace,
// followed by the run identification variables.
func BuildEnv(extra map[string]string, info RunInfo) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		key := strings.TrimSpace(k)
		if key == "" || strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+3)
	for _, k := range keys {
		env = append(env, strings.TrimSpace(k)+"="+extra[k])
	}
	env = append(env,
		EnvPrefix+"EXP_NAME="+info.ExpName,
		EnvPrefix+"INDEX="+strconv.Itoa(info.Index),
		EnvPrefix+"OUTPUT_FILE="+info.OutputFile,
	)
	return env
}
