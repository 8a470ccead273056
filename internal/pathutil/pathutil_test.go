package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	results := t.TempDir()
	elsewhere := t.TempDir()

	nested := filepath.Join(results, "sweep-1")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		wantErr     bool
		errContains string
	}{
		{"artifact in results", filepath.Join(results, "vote_N=3.json"), []string{results}, false, ""},
		{"artifact in nested dir", filepath.Join(nested, "vote.json"), []string{results}, false, ""},
		{"not yet created dir", filepath.Join(results, "new", "vote.json"), []string{results}, false, ""},
		{"the dir itself", results, []string{results}, false, ""},
		{"dot-dot escape", filepath.Join(results, "..", "vote.json"), []string{results}, true, "outside allowed directories"},
		{"other dir", filepath.Join(elsewhere, "vote.json"), []string{results}, true, "outside allowed directories"},
		{"second allowed dir", filepath.Join(elsewhere, "vote.json"), []string{results, elsewhere}, false, ""},
		{"null byte", filepath.Join(results, "vo\x00te.json"), []string{results}, true, "null byte"},
		{"empty", "", []string{results}, true, "empty"},
		{"no allowed dirs", filepath.Join(results, "vote.json"), nil, true, "no allowed directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePath() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidatePath_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	results := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(results, "escape")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	err := ValidatePath(filepath.Join(results, "escape", "vote.json"), []string{results})
	if !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("symlink escape: error = %v, want ErrOutsideRoot", err)
	}

	inside := filepath.Join(results, "real")
	if err := os.MkdirAll(inside, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.Symlink(inside, filepath.Join(results, "link")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if err := ValidatePath(filepath.Join(results, "link", "vote.json"), []string{results}); err != nil {
		t.Errorf("symlink inside: error = %v, want nil", err)
	}
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()

	got, err := Join(dir, "vote_N=3.json")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got != filepath.Join(dir, "vote_N=3.json") {
		t.Errorf("Join() = %q", got)
	}

	for _, bad := range []string{"", ".", "..", "a/b.json", `a\b.json`, "../x.json"} {
		if _, err := Join(dir, bad); err == nil {
			t.Errorf("Join(%q) should fail", bad)
		}
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/home/user/.gridrun/runs.db", ".../.gridrun/runs.db"},
		{"/a/b/c/results/vote.json", ".../results/vote.json"},
		{"/vote.json", "vote.json"},
		{"results/vote.json", ".../results/vote.json"},
		{"vote.json", "vote.json"},
		{"/scratch/results/", ".../scratch/results"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.input); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
