package mcp

import "time"

// GridrunPlanInput defines the input for the gridrun_plan tool.
type GridrunPlanInput struct {
	Config string `json:"config" jsonschema:"Path to the experiment configuration document (JSON or YAML), relative to the server root"`
	Name   string `json:"name" jsonschema:"Experiment name used as the filename prefix"`
	Offset int    `json:"offset,omitempty" jsonschema:"First grid index to list (default 0)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to list (default 100, max 1000)"`
}

// GridrunPlanOutput defines the output for the gridrun_plan tool.
type GridrunPlanOutput struct {
	Size                int              `json:"size" jsonschema:"Number of combinations in the grid"`
	Fixed               []ParamValue     `json:"fixed" jsonschema:"Fixed parameters in declaration order"`
	Axes                []AxisInfo       `json:"axes" jsonschema:"Swept parameters in declaration order"`
	Runs                []PlannedRun     `json:"runs" jsonschema:"Grid indices with their output filenames"`
	Truncated           bool             `json:"truncated" jsonschema:"Whether more runs exist past offset+limit"`
	Collisions          map[string][]int `json:"collisions,omitempty" jsonschema:"Filenames produced by more than one index"`
	CollisionsUnchecked bool             `json:"collisions_unchecked,omitempty" jsonschema:"Set when the grid is too large to check for colliding filenames"`
}

// AxisInfo describes one swept parameter.
type AxisInfo struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// PlannedRun pairs a grid index with its artifact filename.
type PlannedRun struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
}

// ParamValue is one resolved parameter rendered as it is passed on the
// command line.
type ParamValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// GridrunResolveInput defines the input for the gridrun_resolve tool.
type GridrunResolveInput struct {
	Config   string `json:"config" jsonschema:"Path to the experiment configuration document, relative to the server root"`
	Name     string `json:"name" jsonschema:"Experiment name used as the filename prefix"`
	Index    int    `json:"index" jsonschema:"Grid index to resolve, 0-based"`
	Language string `json:"language,omitempty" jsonschema:"Language selector: python, julia or exec (default from tool config)"`
	Source   string `json:"source,omitempty" jsonschema:"Experiment source file (default from tool config)"`
}

// GridrunResolveOutput defines the output for the gridrun_resolve tool.
type GridrunResolveOutput struct {
	Index      int          `json:"index" jsonschema:"Resolved grid index"`
	Size       int          `json:"size" jsonschema:"Number of combinations in the grid"`
	Filename   string       `json:"filename" jsonschema:"Artifact filename"`
	OutputPath string       `json:"output_path" jsonschema:"Where the experiment writes its artifact"`
	Params     []ParamValue `json:"params" jsonschema:"Resolved parameters in assignment order"`
	Vars       []string     `json:"vars" jsonschema:"Names of the swept parameters"`
	Argv       []string     `json:"argv" jsonschema:"Process invocation that gridrun run would start"`
	LastRun    *RunItem     `json:"last_run,omitempty" jsonschema:"Most recent successful run with the same filename, if recorded"`
}

// GridrunRunsInput defines the input for the gridrun_runs tool.
type GridrunRunsInput struct {
	Name   string `json:"name,omitempty" jsonschema:"Only list runs of this experiment"`
	Status string `json:"status,omitempty" jsonschema:"Only list runs in this state: running, succeeded or failed"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of runs (default 50, max 1000)"`
}

// GridrunRunsOutput defines the output for the gridrun_runs tool.
type GridrunRunsOutput struct {
	Runs  []RunItem `json:"runs" jsonschema:"Recorded runs, most recent first"`
	Count int       `json:"count" jsonschema:"Number of runs returned"`
}

// RunItem is a ledger entry as reported over MCP.
type RunItem struct {
	ID         string     `json:"id"`
	ExpName    string     `json:"exp_name"`
	Index      int        `json:"index"`
	Filename   string     `json:"filename"`
	Status     string     `json:"status"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
