// Package plan ties the grid, naming and launcher packages together: it turns
// a configuration document and a grid index into everything needed to start
// one experiment process.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nvandessel/gridrun/internal/config"
	"github.com/nvandessel/gridrun/internal/constants"
	"github.com/nvandessel/gridrun/internal/grid"
	"github.com/nvandessel/gridrun/internal/launcher"
	"github.com/nvandessel/gridrun/internal/naming"
)

// Options selects one run out of a document. The directory fields are
// command-line overrides; empty means "not given".
type Options struct {
	ExpName   string
	Index     int
	OutputDir string
	LogDir    string
	SourceDir string

	// Defaults come from the tool configuration.
	Defaults config.ExecutorConfig
}

// Plan is a fully resolved run.
type Plan struct {
	ConfigPath  string
	ExpName     string
	Index       int
	Size        int
	Axes        []grid.Axis
	Combination grid.Combination
	Filename    string
	OutputDir   string
	LogDir      string
	SourceDir   string
	Assignment  grid.Assignment
	Env         map[string]string
}

// Build resolves the run at opts.Index. Directories are chosen by
// precedence: command line, then the document's executor block, then the
// tool configuration, then the built-in defaults.
//
// A grid in which two indices render to the same filename is rejected,
// since their artifacts would overwrite each other.
func Build(doc *grid.Document, opts Options) (*Plan, error) {
	if strings.TrimSpace(opts.ExpName) == "" {
		return nil, &grid.ConfigError{Path: doc.Path, Err: errors.New("experiment name must not be empty")}
	}

	g, err := doc.Grid()
	if err != nil {
		return nil, err
	}
	combo, err := g.At(opts.Index)
	if err != nil {
		return nil, err
	}

	if err := CheckCollisions(doc, opts.ExpName); err != nil {
		return nil, err
	}

	p := &Plan{
		ConfigPath:  doc.Path,
		ExpName:     opts.ExpName,
		Index:       opts.Index,
		Size:        g.Size(),
		Axes:        g.Axes(),
		Combination: combo,
		OutputDir:   firstNonEmpty(opts.OutputDir, doc.Executor.OutputDir, opts.Defaults.OutputDir, constants.DefaultOutputDir),
		LogDir:      firstNonEmpty(opts.LogDir, doc.Executor.LogDir, opts.Defaults.LogDir, constants.DefaultLogDir),
		SourceDir:   firstNonEmpty(opts.SourceDir, doc.Executor.SourceDir, opts.Defaults.SourceDir, constants.DefaultSourceDir),
		Env:         make(map[string]string, len(doc.Executor.Env)),
	}
	for k, v := range doc.Executor.Env {
		p.Env[k] = v
	}

	p.Filename = naming.Filename(opts.ExpName, naming.Pieces(p.Axes, combo))
	p.Assignment = grid.Resolve(doc, combo, grid.Metadata{
		ExpName:        opts.ExpName,
		OutputDir:      p.OutputDir,
		OutputFilename: p.Filename,
	})

	return p, nil
}

// CheckCollisions returns a ConfigError naming a filename that two indices
// of the grid share, or one saying uniqueness could not be checked because
// the grid is too large to scan.
func CheckCollisions(doc *grid.Document, expName string) error {
	name, indices, err := naming.FirstCollision(doc, expName)
	switch {
	case errors.Is(err, naming.ErrScanLimit):
		return &grid.ConfigError{
			Path: doc.Path,
			Err:  fmt.Errorf("cannot verify that output filenames are unique (a label or value contains \"=\"): %w", err),
		}
	case err != nil:
		return err
	case name == "":
		return nil
	}
	return &grid.ConfigError{
		Path: doc.Path,
		Err:  fmt.Errorf("output filename %q is produced by indices %v", name, indices),
	}
}

// OutputPath is where the experiment is expected to write its artifact.
func (p *Plan) OutputPath() string {
	return filepath.Join(p.OutputDir, p.Filename)
}

// RunInfo identifies the run to the child process.
func (p *Plan) RunInfo() launcher.RunInfo {
	return launcher.RunInfo{
		ExpName:    p.ExpName,
		Index:      p.Index,
		OutputFile: p.OutputPath(),
	}
}

// Command synthesizes the process invocation, environment included.
func (p *Plan) Command(lang launcher.Language, source string) (launcher.Command, error) {
	cmd, err := launcher.BuildCommand(p.Assignment, lang, p.SourceDir, source)
	if err != nil {
		return launcher.Command{}, err
	}
	cmd.Env = launcher.BuildEnv(p.Env, p.RunInfo())
	return cmd, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
