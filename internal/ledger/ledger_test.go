package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// fakeClock returns a now func that advances one second per call.
func fakeClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestStartFinish(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	l.now = fakeClock()

	id, err := l.Start(ctx, Run{
		ExpName:    "vote",
		Index:      1,
		Filename:   "vote_N=3.json",
		ConfigPath: "configs/vote.json",
		Command:    "python src/experiment.py --N 3",
		OutputPath: "results/vote_N=3.json",
		Params:     map[string]any{"N": 3, "prob": 0.5},
		Host:       "node-1",
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if id == "" {
		t.Fatal("Start() returned empty ID")
	}

	run, err := l.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Status != StatusRunning {
		t.Errorf("Status = %q, want running", run.Status)
	}
	if run.ExitCode != nil || run.FinishedAt != nil {
		t.Errorf("running run should have no exit code or finish time: %+v", run)
	}
	wantParams := map[string]any{"N": float64(3), "prob": 0.5}
	if diff := cmp.Diff(wantParams, run.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}

	if err := l.Finish(ctx, id, 0); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	run, err = l.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Status != StatusSucceeded {
		t.Errorf("Status = %q, want succeeded", run.Status)
	}
	if run.ExitCode == nil || *run.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", run.ExitCode)
	}
	if run.FinishedAt == nil || !run.FinishedAt.After(run.StartedAt) {
		t.Errorf("FinishedAt = %v, want after %v", run.FinishedAt, run.StartedAt)
	}
	if run.Host != "node-1" || run.ConfigPath != "configs/vote.json" {
		t.Errorf("Host/ConfigPath = %q/%q", run.Host, run.ConfigPath)
	}
}

func TestFinish_Failed(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	id, err := l.Start(ctx, Run{ExpName: "e", Filename: "e.json", Command: "x", OutputPath: "results/e.json"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := l.Finish(ctx, id, 2); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	run, err := l.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Status != StatusFailed || *run.ExitCode != 2 {
		t.Errorf("run = %+v, want failed with exit code 2", run)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	if err := l.Finish(ctx, "missing", 0); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Finish() error = %v, want ErrRunNotFound", err)
	}
	if _, err := l.Get(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get() error = %v, want ErrRunNotFound", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	l.now = fakeClock()

	var ids []string
	for i, exp := range []string{"a", "b", "a", "a"} {
		id, err := l.Start(ctx, Run{ExpName: exp, Index: i, Filename: exp + ".json", Command: "x", OutputPath: exp})
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		ids = append(ids, id)
	}
	if err := l.Finish(ctx, ids[2], 1); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
	}{
		{"all, newest first", Filter{}, []string{ids[3], ids[2], ids[1], ids[0]}},
		{"by experiment", Filter{ExpName: "a"}, []string{ids[3], ids[2], ids[0]}},
		{"by status", Filter{Status: StatusFailed}, []string{ids[2]}},
		{"limit", Filter{ExpName: "a", Limit: 2}, []string{ids[3], ids[2]}},
		{"no match", Filter{ExpName: "zzz"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := l.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var got []string
			for _, r := range runs {
				got = append(got, r.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, got); diff != "" {
				t.Errorf("List() IDs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLastSucceeded(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	l.now = fakeClock()

	got, err := l.LastSucceeded(ctx, "vote", "vote_N=3.json")
	if err != nil {
		t.Fatalf("LastSucceeded() error = %v", err)
	}
	if got != nil {
		t.Fatalf("LastSucceeded() = %+v, want nil on empty ledger", got)
	}

	first, _ := l.Start(ctx, Run{ExpName: "vote", Filename: "vote_N=3.json", Command: "x", OutputPath: "o"})
	l.Finish(ctx, first, 0)
	failed, _ := l.Start(ctx, Run{ExpName: "vote", Filename: "vote_N=3.json", Command: "x", OutputPath: "o"})
	l.Finish(ctx, failed, 1)
	other, _ := l.Start(ctx, Run{ExpName: "vote", Filename: "vote_N=2.json", Command: "x", OutputPath: "o"})
	l.Finish(ctx, other, 0)

	got, err = l.LastSucceeded(ctx, "vote", "vote_N=3.json")
	if err != nil {
		t.Fatalf("LastSucceeded() error = %v", err)
	}
	if got == nil || got.ID != first {
		t.Errorf("LastSucceeded() = %+v, want run %s", got, first)
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	l, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id, err := l.Start(ctx, Run{ExpName: "e", Filename: "e.json", Command: "x", OutputPath: "o"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	l.Close()

	l, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer l.Close()

	if _, err := l.Get(ctx, id); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

func TestInitSchema_MigratesV1(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		t.Fatalf("creating v1 schema: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (1, datetime('now'))`); err != nil {
		t.Fatalf("recording v1: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, exp_name, grid_index, filename, command, output_path, status, started_at)
		VALUES ('old', 'e', 0, 'e.json', 'x', 'o', 'succeeded', '2025-01-01T00:00:00.000000000Z')`); err != nil {
		t.Fatalf("inserting v1 row: %v", err)
	}
	db.Close()

	l, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer l.Close()

	version, err := getSchemaVersion(ctx, l.db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	run, err := l.Get(ctx, "old")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.Params != nil || run.Host != "" {
		t.Errorf("migrated row should have empty params and host: %+v", run)
	}
}
