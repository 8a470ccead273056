// Package ledger records every experiment launch in a SQLite database so
// that past runs can be listed and repeat runs detected.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/gridrun/internal/constants"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded launch.
type Run struct {
	ID         string         `json:"id"`
	ExpName    string         `json:"exp_name"`
	Index      int            `json:"index"`
	Filename   string         `json:"filename"`
	ConfigPath string         `json:"config_path,omitempty"`
	Command    string         `json:"command"`
	OutputPath string         `json:"output_path"`
	Params     map[string]any `json:"params,omitempty"`
	Host       string         `json:"host,omitempty"`
	Status     Status         `json:"status"`
	ExitCode   *int           `json:"exit_code,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Filter narrows List results.
type Filter struct {
	ExpName string
	Status  Status

	// Limit caps the result count; values <= 0 use the default.
	Limit int
}

// Ledger is a SQLite-backed run ledger.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the ledger database at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start records run as running and returns its new ID. ID, Status and
// StartedAt are assigned here; Host defaults to the machine's hostname.
func (l *Ledger) Start(ctx context.Context, run Run) (string, error) {
	run.ID = uuid.NewString()
	run.Status = StatusRunning
	run.StartedAt = l.now().UTC()
	if run.Host == "" {
		run.Host, _ = os.Hostname()
	}

	var params sql.NullString
	if len(run.Params) > 0 {
		data, err := json.Marshal(run.Params)
		if err != nil {
			return "", fmt.Errorf("failed to encode params: %w", err)
		}
		params = sql.NullString{String: string(data), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, exp_name, grid_index, filename, config_path, command,
			output_path, status, started_at, params, host)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ExpName, run.Index, run.Filename, run.ConfigPath, run.Command,
		run.OutputPath, string(run.Status), formatTime(run.StartedAt), params, run.Host)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return run.ID, nil
}

// Finish records the exit code of a started run. Exit code 0 marks it
// succeeded, anything else failed.
func (l *Ledger) Finish(ctx context.Context, id string, exitCode int) error {
	status := StatusSucceeded
	if exitCode != 0 {
		status = StatusFailed
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, exit_code = ?, finished_at = ? WHERE id = ?`,
		string(status), exitCode, formatTime(l.now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Get returns the run with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List returns runs matching f, most recent first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.ExpName != "" {
		where = append(where, "exp_name = ?")
		args = append(args, f.ExpName)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultRunsLimit
	}
	if limit > constants.MaxRunsLimit {
		limit = constants.MaxRunsLimit
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// LastSucceeded returns the most recent successful run of expName that
// produced filename, or nil if there is none.
func (l *Ledger) LastSucceeded(ctx context.Context, expName, filename string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE exp_name = ? AND filename = ? AND status = ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		expName, filename, string(StatusSucceeded))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

const runColumns = `id, exp_name, grid_index, filename, config_path, command, output_path,
	status, exit_code, started_at, finished_at, params, host`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                      Run
		status                   string
		configPath, params, host sql.NullString
		exitCode                 sql.NullInt64
		startedAt                string
		finishedAt               sql.NullString
	)
	err := s.Scan(&run.ID, &run.ExpName, &run.Index, &run.Filename, &configPath, &run.Command,
		&run.OutputPath, &status, &exitCode, &startedAt, &finishedAt, &params, &host)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = Status(status)
	run.ConfigPath = configPath.String
	run.Host = host.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		run.FinishedAt = &t
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &run.Params); err != nil {
			return nil, fmt.Errorf("failed to decode params of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// timeLayout is fixed-width so that timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
