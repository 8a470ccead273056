package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/gridrun/internal/grid"
	"github.com/nvandessel/gridrun/internal/launcher"
	"github.com/nvandessel/gridrun/internal/naming"
	"github.com/nvandessel/gridrun/internal/plan"
	"github.com/spf13/cobra"
)

// gridSummary is the JSON form of "gridrun plan" without --index.
type gridSummary struct {
	Size       int              `json:"size"`
	Fixed      map[string]any   `json:"fixed"`
	Axes       []axisSummary    `json:"axes"`
	Runs       []plannedRun     `json:"runs"`
	Collisions map[string][]int `json:"collisions,omitempty"`

	CollisionsUnchecked bool `json:"collisions_unchecked,omitempty"`
}

type axisSummary struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Values []any  `json:"values"`
}

type plannedRun struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
}

// assignmentSummary is the JSON form of "gridrun plan --index".
type assignmentSummary struct {
	Index      int            `json:"index"`
	Size       int            `json:"size"`
	Filename   string         `json:"filename"`
	OutputPath string         `json:"output_path"`
	Params     map[string]any `json:"params"`
	Vars       []string       `json:"vars"`
	Command    []string       `json:"command"`
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the parameter grid of a configuration",
		Long: `Show the grid spanned by a configuration document: its size, the
fixed and swept parameters, and the output filename of every index.
With --index, show the full parameter assignment and the command that
"gridrun run" would start for that index.

Use the size to set the range of an array job:
  gridrun plan --config configs/vote.json --name vote --json | jq .size`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			configPath, _ := cmd.Flags().GetString("config")
			expName, _ := cmd.Flags().GetString("name")

			doc, err := grid.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("index") {
				index, _ := cmd.Flags().GetInt("index")
				return showAssignment(cmd, jsonOut, doc, expName, index)
			}
			return showGrid(cmd, jsonOut, doc, expName)
		},
	}

	cmd.Flags().String("config", "", "Experiment configuration document (JSON or YAML)")
	cmd.Flags().String("name", "", "Experiment name, used as the output filename prefix")
	cmd.Flags().Int("index", 0, "Show the resolved assignment of this index only")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("name")

	return cmd
}

func showGrid(cmd *cobra.Command, jsonOut bool, doc *grid.Document, expName string) error {
	if strings.TrimSpace(expName) == "" {
		return &grid.ConfigError{Path: doc.Path, Err: fmt.Errorf("experiment name must not be empty")}
	}
	g, err := doc.Grid()
	if err != nil {
		return err
	}
	collisions, err := naming.Collisions(doc, expName)
	unchecked := errors.Is(err, naming.ErrScanLimit)
	if err != nil && !unchecked {
		return err
	}

	summary := gridSummary{
		Size:  g.Size(),
		Fixed: make(map[string]any),
		Axes:  []axisSummary{},
		Runs:  make([]plannedRun, 0, g.Size()),
	}
	for _, e := range doc.FixedEntries() {
		summary.Fixed[e.Name] = e.Value
	}
	axes := g.Axes()
	for _, a := range axes {
		summary.Axes = append(summary.Axes, axisSummary{Name: a.Name, Label: a.Label(), Values: a.Values})
	}
	for i, combo := range g.All() {
		summary.Runs = append(summary.Runs, plannedRun{
			Index:    i,
			Filename: naming.Filename(expName, naming.Pieces(axes, combo)),
		})
	}
	if len(collisions) > 0 {
		summary.Collisions = collisions
	}
	summary.CollisionsUnchecked = unchecked

	out := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(out).Encode(summary)
	}

	fmt.Fprintf(out, "Grid size: %d\n", summary.Size)
	if fixed := doc.FixedEntries(); len(fixed) > 0 {
		fmt.Fprintln(out, "\nFixed:")
		for _, e := range fixed {
			fmt.Fprintf(out, "  %s = %s\n", e.Name, grid.FormatValue(e.Value))
		}
	}
	if len(axes) > 0 {
		fmt.Fprintln(out, "\nSwept:")
		for _, a := range axes {
			values := make([]string, len(a.Values))
			for i, v := range a.Values {
				values[i] = grid.FormatValue(v)
			}
			label := a.Name
			if a.Short != "" {
				label += " (" + a.Short + ")"
			}
			fmt.Fprintf(out, "  %s: [%s]\n", label, strings.Join(values, ", "))
		}
	}
	fmt.Fprintln(out, "\nRuns:")
	for _, r := range summary.Runs {
		fmt.Fprintf(out, "  %4d  %s\n", r.Index, r.Filename)
	}

	if unchecked {
		fmt.Fprintln(out, "\nFilename uniqueness not checked: grid too large to scan (gridrun run will refuse this grid).")
	}
	if len(collisions) > 0 {
		names := make([]string, 0, len(collisions))
		for name := range collisions {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(out, "\nFilename collisions (gridrun run will refuse this grid):")
		for _, name := range names {
			fmt.Fprintf(out, "  %s <- indices %v\n", name, collisions[name])
		}
	}
	return nil
}

func showAssignment(cmd *cobra.Command, jsonOut bool, doc *grid.Document, expName string, index int) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	p, err := plan.Build(doc, plan.Options{ExpName: expName, Index: index, Defaults: settings.Executor})
	if err != nil {
		return err
	}
	lang, err := launcher.ParseLanguage(settings.Executor.Language)
	if err != nil {
		return err
	}
	command, err := p.Command(lang, settings.Executor.Source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		vars := p.Assignment.SweptNames()
		if vars == nil {
			vars = []string{}
		}
		return json.NewEncoder(out).Encode(assignmentSummary{
			Index:      p.Index,
			Size:       p.Size,
			Filename:   p.Filename,
			OutputPath: p.OutputPath(),
			Params:     p.Assignment.Map(),
			Vars:       vars,
			Command:    command.Argv(),
		})
	}

	fmt.Fprintf(out, "Index %d of %d\n\n", p.Index, p.Size)
	fmt.Fprintln(out, "Parameters:")
	for _, param := range p.Assignment.Params() {
		fmt.Fprintf(out, "  %s = %s\n", param.Name, grid.FormatValue(param.Value))
	}
	fmt.Fprintf(out, "\nSwept:   %s\n", valueOrDefault(strings.Join(p.Assignment.SweptNames(), ","), "(none)"))
	fmt.Fprintf(out, "Output:  %s\n", p.OutputPath())
	fmt.Fprintf(out, "Command: %s\n", command)
	return nil
}
