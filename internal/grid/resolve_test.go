package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func resolveAt(t *testing.T, input string, index int, meta Metadata) Assignment {
	t.Helper()
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	g, err := doc.Grid()
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	combo, err := g.At(index)
	if err != nil {
		t.Fatalf("At(%d) error = %v", index, err)
	}
	return Resolve(doc, combo, meta)
}

func TestResolve_SelectsCombination(t *testing.T) {
	a := resolveAt(t, `{"N": [2, 3], "prob": 0.5, "_note": "x"}`, 1, Metadata{
		ExpName:        "vote",
		OutputDir:      "results",
		OutputFilename: "vote_N=3.json",
	})

	want := []Param{
		{Name: "prob", Value: 0.5},
		{Name: "N", Value: 3},
		{Name: KeyExpName, Value: "vote"},
		{Name: KeyOutputDir, Value: "results"},
		{Name: KeyOutputFilename, Value: "vote_N=3.json"},
	}
	if diff := cmp.Diff(want, a.Params()); diff != "" {
		t.Errorf("Params() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := a.Get("_note"); ok {
		t.Error("_note should be excluded from the assignment")
	}
	if diff := cmp.Diff([]string{"N"}, a.SweptNames()); diff != "" {
		t.Errorf("SweptNames() mismatch (-want +got):\n%s", diff)
	}
	if len(a.Overridden()) != 0 {
		t.Errorf("Overridden() = %v, want none", a.Overridden())
	}
}

func TestResolve_NoSweptEntries(t *testing.T) {
	a := resolveAt(t, `{"N": 10, "iterations": 5}`, 0, Metadata{ExpName: "e", OutputDir: "out"})

	if len(a.SweptNames()) != 0 {
		t.Errorf("SweptNames() = %v, want none", a.SweptNames())
	}
	if v, _ := a.Get("N"); v != 10 {
		t.Errorf("N = %v, want 10", v)
	}
	if a.Len() != 5 {
		t.Errorf("Len() = %d, want 5 (2 fixed + 3 metadata)", a.Len())
	}
}

func TestResolve_MetadataWins(t *testing.T) {
	a := resolveAt(t, `{"output_dir": "ignored", "N": [1]}`, 0, Metadata{ExpName: "e", OutputDir: "chosen"})

	if v, _ := a.Get(KeyOutputDir); v != "chosen" {
		t.Errorf("output_dir = %v, want chosen", v)
	}
	if diff := cmp.Diff([]string{KeyOutputDir}, a.Overridden()); diff != "" {
		t.Errorf("Overridden() mismatch (-want +got):\n%s", diff)
	}
	// The overwritten key keeps its original position.
	if a.Params()[0].Name != KeyOutputDir {
		t.Errorf("first param = %q, want %q", a.Params()[0].Name, KeyOutputDir)
	}
}

func TestAssignment_AccessorsReturnCopies(t *testing.T) {
	a := resolveAt(t, `{"a": [1, 2], "b": [10, 20]}`, 2, Metadata{ExpName: "e"})

	params := a.Params()
	params[0].Value = "mutated"
	if v, _ := a.Get("a"); v != 2 {
		t.Errorf("a = %v after mutating Params() copy, want 2", v)
	}

	names := a.SweptNames()
	names[0] = "mutated"
	if a.SweptNames()[0] != "a" {
		t.Error("SweptNames() copy mutation leaked into assignment")
	}

	if v, _ := a.Get("b"); v != 10 {
		t.Errorf("b = %v, want 10", v)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "a/b", "a/b"},
		{"int", 3, "3"},
		{"negative int", -7, "-7"},
		{"int64", int64(1) << 40, "1099511627776"},
		{"bool", true, "true"},
		{"float", 0.5, "0.5"},
		{"integral float", 3.0, "3.0"},
		{"large float", 1e6, "1000000.0"},
		{"small float", 1e-5, "1e-05"},
		{"huge float", 1.5e20, "1.5e+20"},
		{"zero float", 0.0, "0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
