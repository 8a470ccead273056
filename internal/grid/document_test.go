package grid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_PartitionsEntries(t *testing.T) {
	doc, err := Parse([]byte(`{"N": [2, 3], "prob": 0.5, "_note": "x", "label": "run"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Entry{
		{Name: "N", Kind: Swept, Values: []any{2, 3}},
		{Name: "prob", Kind: Fixed, Value: 0.5},
		{Name: "label", Kind: Fixed, Value: "run"},
	}
	if diff := cmp.Diff(want, doc.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}

	if got := len(doc.FixedEntries()); got != 2 {
		t.Errorf("FixedEntries() len = %d, want 2", got)
	}
	if got := len(doc.SweptEntries()); got != 1 {
		t.Errorf("SweptEntries() len = %d, want 1", got)
	}
}

func TestParse_PreservesDeclarationOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"z": [1], "a": [1], "m": 1, "b": [1, 2]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var names []string
	for _, e := range doc.Entries {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"z", "a", "m", "b"}, names); diff != "" {
		t.Errorf("entry order mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Executor(t *testing.T) {
	doc, err := Parse([]byte(`{
		"executor": {"output_dir": "out", "log_dir": "logs", "env": {"OMP_NUM_THREADS": "1"}},
		"N": 10
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Executor{OutputDir: "out", LogDir: "logs", Env: map[string]string{"OMP_NUM_THREADS": "1"}}
	if diff := cmp.Diff(want, doc.Executor); diff != "" {
		t.Errorf("Executor mismatch (-want +got):\n%s", diff)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].Name != "N" {
		t.Errorf("Entries = %+v, want only N", doc.Entries)
	}
}

func TestParse_SweepObjectWithShortName(t *testing.T) {
	doc, err := Parse([]byte(`{"learning_rate": {"values": [0.1, 0.01], "short": "lr"}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	e := doc.Entries[0]
	if e.Kind != Swept {
		t.Fatalf("Kind = %v, want swept", e.Kind)
	}
	if e.Short != "lr" || e.Label() != "lr" {
		t.Errorf("Short = %q, Label() = %q, want lr", e.Short, e.Label())
	}
	if diff := cmp.Diff([]any{0.1, 0.01}, e.Values); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_YAML(t *testing.T) {
	doc, err := Parse([]byte(`
N: [2, 3]
prob: 0.5
mode: fast
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(doc.Entries) != 3 {
		t.Fatalf("Entries len = %d, want 3", len(doc.Entries))
	}
	if doc.Entries[2].Value != "fast" {
		t.Errorf("mode = %v, want fast", doc.Entries[2].Value)
	}
}

func TestParse_JSONEscapes(t *testing.T) {
	doc, err := Parse([]byte(`{"path": "a\/b", "label": "\ud83d\ude00", "sep": ["x\ty", "\u00e9"]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Entry{
		{Name: "path", Kind: Fixed, Value: "a/b"},
		{Name: "label", Kind: Fixed, Value: "\U0001F600"},
		{Name: "sep", Kind: Swept, Values: []any{"x\ty", "é"}},
	}
	if diff := cmp.Diff(want, doc.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_JSONNumbers(t *testing.T) {
	doc, err := Parse([]byte(`{"n": [3, 3.0, -2, 1e3, 0.5, 18446744073709551615]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []any{3, 3.0, -2, 1000.0, 0.5, uint64(18446744073709551615)}
	if diff := cmp.Diff(want, doc.Entries[0].Values); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_JSONMatchesYAML(t *testing.T) {
	fromJSON, err := Parse([]byte(`{
		"executor": {"output_dir": "out", "env": {"A": "1"}},
		"N": [2, 3],
		"lr": {"values": [0.1, 0.01], "short": "l"},
		"mode": "fast",
		"debug": false
	}`))
	if err != nil {
		t.Fatalf("Parse(JSON) error = %v", err)
	}
	fromYAML, err := Parse([]byte(`
executor:
  output_dir: out
  env: {A: "1"}
N: [2, 3]
lr:
  values: [0.1, 0.01]
  short: l
mode: fast
debug: false
`))
	if err != nil {
		t.Fatalf("Parse(YAML) error = %v", err)
	}

	if diff := cmp.Diff(fromYAML, fromJSON); diff != "" {
		t.Errorf("JSON and YAML documents differ (-yaml +json):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
	}{
		{"malformed", `{"N": [1, 2`, ""},
		{"empty", ``, ""},
		{"top level array", `[1, 2]`, ""},
		{"null value", `{"N": null}`, "N"},
		{"nested list", `{"N": [[1, 2], [3]]}`, "N"},
		{"plain object", `{"opts": {"a": 1}}`, "opts"},
		{"object without values", `{"opts": {"short": "o"}}`, "opts"},
		{"null in sweep", `{"N": [1, null]}`, "N"},
		{"executor not object", `{"executor": "x"}`, ExecutorKey},
		{"executor unknown field", `{"executor": {"workers": 4}}`, ExecutorKey},
		{"short not string", `{"N": {"values": [1], "short": 3}}`, "N"},
		{"duplicate sweep field", `{"N": {"values": [1], "values": [2]}}`, "N"},
		{"duplicate executor field", `{"executor": {"log_dir": "a", "log_dir": "b"}}`, ExecutorKey},
		{"number out of range", `{"x": 1e400}`, "x"},
		{"reserved vars", `{"vars": [1, 2]}`, KeyVars},
		{"reserved vars in YAML", "vars: fast\n", KeyVars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("Parse() error = %v, want ErrConfig", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error is %T, want *ConfigError", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", cfgErr.Key, tt.wantKey)
			}
		})
	}
}

func TestParse_DuplicateKey(t *testing.T) {
	_, err := Parse([]byte(`{"N": 1, "N": 2}`))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("Parse() error = %v, want ErrConfig", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "experiment.json")
	if err := os.WriteFile(path, []byte(`{"N": [2, 3], "prob": 0.5}`), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Path != path {
		t.Errorf("Path = %q, want %q", doc.Path, path)
	}

	g, err := doc.Grid()
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("Size() = %d, want 2", g.Size())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := Load(path)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("Load() error = %v, want ErrConfig", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestLoad_ErrorCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"N": null}`), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Load() error = %v, want *ConfigError", err)
	}
	if cfgErr.Path != path {
		t.Errorf("Path = %q, want %q", cfgErr.Path, path)
	}
}
