// Package naming derives output artifact and log filenames from an
// experiment name and the swept part of a parameter assignment.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nvandessel/gridrun/internal/grid"
)

const (
	// Separator joins the experiment name and the rendered pieces.
	Separator = "_"

	// Ext is the artifact extension.
	Ext = ".json"

	stdoutExt = ".out"
	stderrExt = ".err"
)

// pathReplacer substitutes both separator styles so that a filename built on
// one platform stays a single segment on any other.
var pathReplacer = strings.NewReplacer("/", "_", `\`, "_")

// Piece is one swept parameter as it appears in a filename.
type Piece struct {
	Label string
	Value any
}

// Pieces pairs each axis label with its value in combo.
func Pieces(axes []grid.Axis, combo grid.Combination) []Piece {
	pieces := make([]Piece, len(axes))
	for i, a := range axes {
		pieces[i] = Piece{Label: a.Label(), Value: combo[i]}
	}
	return pieces
}

// Filename renders "{expName}_{label}={value}_..._{label}={value}.json".
// With no pieces the result is "{expName}.json". Path separators in any
// component are replaced by "_", so the result is always one path segment.
func Filename(expName string, pieces []Piece) string {
	var b strings.Builder
	b.WriteString(pathReplacer.Replace(expName))
	for _, p := range pieces {
		b.WriteString(Separator)
		b.WriteString(pathReplacer.Replace(p.Label))
		b.WriteByte('=')
		b.WriteString(renderValue(p.Value))
	}
	b.WriteString(Ext)
	return b.String()
}

// LogPaths returns the stdout and stderr log paths for an artifact filename.
func LogPaths(logDir, filename string) (stdout, stderr string) {
	base := strings.TrimSuffix(filename, Ext)
	return filepath.Join(logDir, base+stdoutExt), filepath.Join(logDir, base+stderrExt)
}

// ForIndex computes the filename of the combination at index.
func ForIndex(doc *grid.Document, expName string, index int) (string, error) {
	g, err := doc.Grid()
	if err != nil {
		return "", err
	}
	combo, err := g.At(index)
	if err != nil {
		return "", err
	}
	return Filename(expName, Pieces(g.Axes(), combo)), nil
}

// MaxCollisionScan is the largest grid Collisions and FirstCollision will
// enumerate when uniqueness cannot be shown from the axes alone.
const MaxCollisionScan = 1 << 20

// ErrScanLimit is returned when a grid would have to be enumerated to find
// collisions but is larger than MaxCollisionScan.
var ErrScanLimit = errors.New("grid too large to scan for filename collisions")

// Collisions returns every filename produced by more than one index of
// doc's grid, mapped to those indices in ascending order.
//
// Grids whose filenames are provably distinct are not enumerated. Above
// MaxCollisionScan, only the collision found by FirstCollision is reported.
func Collisions(doc *grid.Document, expName string) (map[string][]int, error) {
	g, err := doc.Grid()
	if err != nil {
		return nil, err
	}

	collisions := make(map[string][]int)
	axes := g.Axes()
	if g.Size() <= 1 || (duplicateValue(axes) == nil && unambiguous(axes)) {
		return collisions, nil
	}
	if g.Size() > MaxCollisionScan {
		name, indices, err := FirstCollision(doc, expName)
		if err != nil {
			return nil, err
		}
		if name != "" {
			collisions[name] = indices
		}
		return collisions, nil
	}

	byName := make(map[string][]int, g.Size())
	for i, combo := range g.All() {
		name := Filename(expName, Pieces(axes, combo))
		byName[name] = append(byName[name], i)
	}
	for name, indices := range byName {
		if len(indices) > 1 {
			collisions[name] = indices
		}
	}
	return collisions, nil
}

// FirstCollision returns a filename produced by two indices of doc's grid,
// and those two indices. The name is empty when all filenames are distinct.
//
// Two values of one axis that render alike are found without enumerating
// the grid. Only when a label or value contains "=", which makes the
// rendering ambiguous, is the grid scanned, up to MaxCollisionScan.
func FirstCollision(doc *grid.Document, expName string) (string, []int, error) {
	g, err := doc.Grid()
	if err != nil {
		return "", nil, err
	}
	if g.Size() <= 1 {
		return "", nil, nil
	}

	axes := g.Axes()
	if dup := duplicateValue(axes); dup != nil {
		stride := 1
		for _, a := range axes[dup.axis+1:] {
			stride *= len(a.Values)
		}
		first, second := dup.first*stride, dup.second*stride
		combo, err := g.At(first)
		if err != nil {
			return "", nil, err
		}
		return Filename(expName, Pieces(axes, combo)), []int{first, second}, nil
	}
	if unambiguous(axes) {
		return "", nil, nil
	}

	if g.Size() > MaxCollisionScan {
		return "", nil, fmt.Errorf("%w: %d combinations, limit %d", ErrScanLimit, g.Size(), MaxCollisionScan)
	}
	seen := make(map[string]int, g.Size())
	for i, combo := range g.All() {
		name := Filename(expName, Pieces(axes, combo))
		if j, ok := seen[name]; ok {
			return name, []int{j, i}, nil
		}
		seen[name] = i
	}
	return "", nil, nil
}

type axisDuplicate struct {
	axis, first, second int
}

// duplicateValue finds the first axis holding two values that render to the
// same filename piece.
func duplicateValue(axes []grid.Axis) *axisDuplicate {
	for i, a := range axes {
		seen := make(map[string]int, len(a.Values))
		for j, v := range a.Values {
			r := renderValue(v)
			if k, ok := seen[r]; ok {
				return &axisDuplicate{axis: i, first: k, second: j}
			}
			seen[r] = j
		}
	}
	return nil
}

// unambiguous reports whether no label or value contains "=". Labels are
// the same for every index, so each "=" after the fixed prefix then marks
// exactly one piece boundary, and distinct values per axis imply distinct
// filenames.
func unambiguous(axes []grid.Axis) bool {
	for _, a := range axes {
		if strings.Contains(a.Label(), "=") {
			return false
		}
		for _, v := range a.Values {
			if strings.Contains(renderValue(v), "=") {
				return false
			}
		}
	}
	return true
}

func renderValue(v any) string {
	return pathReplacer.Replace(grid.FormatValue(v))
}
