package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/gridrun/internal/constants"
	"github.com/nvandessel/gridrun/internal/grid"
	"github.com/nvandessel/gridrun/internal/launcher"
	"github.com/nvandessel/gridrun/internal/ledger"
	"github.com/nvandessel/gridrun/internal/naming"
	"github.com/nvandessel/gridrun/internal/pathutil"
	"github.com/nvandessel/gridrun/internal/plan"
	"github.com/nvandessel/gridrun/internal/ratelimit"
)

const (
	defaultPlanLimit = 100
	maxPlanLimit     = 1000
)

// ErrLedgerDisabled is returned by gridrun_runs when no ledger is open.
var ErrLedgerDisabled = errors.New("run ledger is disabled")

// registerTools registers all gridrun MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolPlan,
		Description: "Describe the parameter grid of an experiment configuration: size, fixed parameters, swept axes and the output filename of every index",
	}, s.handleGridrunPlan)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolResolve,
		Description: "Resolve one grid index to its full parameter assignment, output filename and the command gridrun run would start",
	}, s.handleGridrunResolve)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRuns,
		Description: "List recorded experiment runs from the run ledger, most recent first",
	}, s.handleGridrunRuns)
}

func (s *Server) handleGridrunPlan(ctx context.Context, req *sdk.CallToolRequest, args GridrunPlanInput) (_ *sdk.CallToolResult, _ GridrunPlanOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolPlan, start, retErr, map[string]any{
			"name": args.Name, "offset": args.Offset, "limit": args.Limit,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolPlan); err != nil {
		return nil, GridrunPlanOutput{}, err
	}
	if args.Name == "" {
		return nil, GridrunPlanOutput{}, errors.New("name is required")
	}
	if args.Offset < 0 {
		return nil, GridrunPlanOutput{}, fmt.Errorf("offset must be non-negative, got %d", args.Offset)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultPlanLimit
	}
	limit = min(limit, maxPlanLimit)

	doc, err := s.loadDocument(args.Config)
	if err != nil {
		return nil, GridrunPlanOutput{}, err
	}
	g, err := doc.Grid()
	if err != nil {
		return nil, GridrunPlanOutput{}, err
	}

	out := GridrunPlanOutput{
		Size:  g.Size(),
		Fixed: []ParamValue{},
		Axes:  []AxisInfo{},
		Runs:  []PlannedRun{},
	}
	for _, e := range doc.FixedEntries() {
		out.Fixed = append(out.Fixed, ParamValue{Name: e.Name, Value: grid.FormatValue(e.Value)})
	}
	axes := g.Axes()
	for _, a := range axes {
		values := make([]string, len(a.Values))
		for i, v := range a.Values {
			values[i] = grid.FormatValue(v)
		}
		out.Axes = append(out.Axes, AxisInfo{Name: a.Name, Label: a.Label(), Values: values})
	}

	offset := min(args.Offset, g.Size())
	end := offset + min(limit, g.Size()-offset)
	for i := offset; i < end; i++ {
		combo, err := g.At(i)
		if err != nil {
			return nil, GridrunPlanOutput{}, err
		}
		out.Runs = append(out.Runs, PlannedRun{
			Index:    i,
			Filename: naming.Filename(args.Name, naming.Pieces(axes, combo)),
		})
	}
	out.Truncated = end < g.Size()

	collisions, err := naming.Collisions(doc, args.Name)
	switch {
	case errors.Is(err, naming.ErrScanLimit):
		out.CollisionsUnchecked = true
	case err != nil:
		return nil, GridrunPlanOutput{}, err
	case len(collisions) > 0:
		out.Collisions = collisions
	}

	return nil, out, nil
}

func (s *Server) handleGridrunResolve(ctx context.Context, req *sdk.CallToolRequest, args GridrunResolveInput) (_ *sdk.CallToolResult, _ GridrunResolveOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolResolve, start, retErr, map[string]any{
			"name": args.Name, "index": args.Index, "language": args.Language,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolResolve); err != nil {
		return nil, GridrunResolveOutput{}, err
	}

	doc, err := s.loadDocument(args.Config)
	if err != nil {
		return nil, GridrunResolveOutput{}, err
	}

	p, err := plan.Build(doc, plan.Options{
		ExpName:  args.Name,
		Index:    args.Index,
		Defaults: s.settings.Executor,
	})
	if err != nil {
		return nil, GridrunResolveOutput{}, err
	}

	langName := args.Language
	if langName == "" {
		langName = s.settings.Executor.Language
	}
	lang, err := launcher.ParseLanguage(langName)
	if err != nil {
		return nil, GridrunResolveOutput{}, err
	}
	source := args.Source
	if source == "" {
		source = s.settings.Executor.Source
	}
	cmd, err := p.Command(lang, source)
	if err != nil {
		return nil, GridrunResolveOutput{}, err
	}

	out := GridrunResolveOutput{
		Index:      p.Index,
		Size:       p.Size,
		Filename:   p.Filename,
		OutputPath: p.OutputPath(),
		Vars:       p.Assignment.SweptNames(),
		Argv:       cmd.Argv(),
	}
	if out.Vars == nil {
		out.Vars = []string{}
	}
	for _, param := range p.Assignment.Params() {
		out.Params = append(out.Params, ParamValue{Name: param.Name, Value: grid.FormatValue(param.Value)})
	}

	if s.ledger != nil {
		last, err := s.ledger.LastSucceeded(ctx, p.ExpName, p.Filename)
		if err != nil {
			return nil, GridrunResolveOutput{}, fmt.Errorf("failed to query run ledger: %w", err)
		}
		if last != nil {
			item := runToItem(*last)
			out.LastRun = &item
		}
	}

	return nil, out, nil
}

func (s *Server) handleGridrunRuns(ctx context.Context, req *sdk.CallToolRequest, args GridrunRunsInput) (_ *sdk.CallToolResult, _ GridrunRunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRuns, start, retErr, map[string]any{
			"name": args.Name, "status": args.Status, "limit": args.Limit,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRuns); err != nil {
		return nil, GridrunRunsOutput{}, err
	}
	if s.ledger == nil {
		return nil, GridrunRunsOutput{}, ErrLedgerDisabled
	}

	status := ledger.Status(args.Status)
	switch status {
	case "", ledger.StatusRunning, ledger.StatusSucceeded, ledger.StatusFailed:
	default:
		return nil, GridrunRunsOutput{}, fmt.Errorf("invalid status %q (valid: running, succeeded, failed)", args.Status)
	}

	limit := args.Limit
	if limit <= 0 {
		limit = constants.DefaultRunsLimit
	}

	runs, err := s.ledger.List(ctx, ledger.Filter{ExpName: args.Name, Status: status, Limit: limit})
	if err != nil {
		return nil, GridrunRunsOutput{}, err
	}

	items := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, runToItem(r))
	}
	return nil, GridrunRunsOutput{Runs: items, Count: len(items)}, nil
}

// loadDocument resolves path against the server root and refuses documents
// outside it.
func (s *Server) loadDocument(path string) (*grid.Document, error) {
	if path == "" {
		return nil, errors.New("config is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	if err := pathutil.ValidatePath(path, []string{s.root}); err != nil {
		return nil, err
	}
	return grid.Load(path)
}

func runToItem(r ledger.Run) RunItem {
	return RunItem{
		ID:         r.ID,
		ExpName:    r.ExpName,
		Index:      r.Index,
		Filename:   r.Filename,
		Status:     string(r.Status),
		ExitCode:   r.ExitCode,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// auditTool records a tool invocation in the debug log and the event log.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]any) {
	status := "success"
	fields := map[string]any{
		"tool":        toolName,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	for k, v := range params {
		fields[k] = v
	}
	if err != nil {
		status = "error"
		fields["error"] = err.Error()
	}
	fields["status"] = status

	s.logger.Debug("mcp tool call", "tool", toolName, "status", status, "error", err)
	s.events.Log("tool_call", fields)
}
