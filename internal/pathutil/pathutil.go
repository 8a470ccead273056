// Package pathutil keeps experiment artifacts and logs inside the
// directories they were configured for.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes its allowed directories.
var ErrOutsideRoot = errors.New("path is outside allowed directories")

// RedactPath shortens a path to ".../<parent>/<base>" for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Join places name inside dir. name must be a single path segment; the
// joined path must also stay inside dir after symlinks are resolved.
func Join(dir, name string) (string, error) {
	switch {
	case name == "" || name == "." || name == "..":
		return "", fmt.Errorf("invalid file name %q", name)
	case strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("file name %q must not contain path separators", name)
	}

	path := filepath.Join(dir, name)
	if err := ValidatePath(path, []string{dir}); err != nil {
		return "", err
	}
	return path, nil
}

// ValidatePath checks that path lies within one of allowedDirs. Symlinks in
// the existing part of either path are resolved first; the rest of the path
// need not exist.
func ValidatePath(path string, allowedDirs []string) error {
	if path == "" {
		return errors.New("path validation failed: path is empty")
	}
	if len(allowedDirs) == 0 {
		return errors.New("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return errors.New("path validation failed: path contains null byte")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	resolvedDir, err := resolveExisting(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, allowed := range allowedDirs {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		allowedResolved, err := resolveExisting(allowedAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolved, allowedResolved) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrOutsideRoot, RedactPath(absPath))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of
// dir and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
