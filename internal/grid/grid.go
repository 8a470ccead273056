package grid

import (
	"fmt"
	"iter"
	"math"
)

// Axis is one swept parameter of the grid.
type Axis struct {
	Name   string
	Short  string
	Values []any
}

// Label returns the name used for this axis in output filenames.
func (a Axis) Label() string {
	if a.Short != "" {
		return a.Short
	}
	return a.Name
}

// Combination holds one value per axis, in axis order.
type Combination []any

// Grid is the Cartesian product of a list of axes. Combinations are ordered
// lexicographically with the last axis varying fastest.
type Grid struct {
	axes []Axis
	size int
}

// New builds a grid over axes. A grid with no axes has exactly one (empty)
// combination; a grid with an empty axis has none.
func New(axes []Axis) (*Grid, error) {
	size := 1
	for _, a := range axes {
		n := len(a.Values)
		if n != 0 && size > math.MaxInt/n {
			return nil, configErrorf(a.Name, "grid has more than %d combinations", math.MaxInt)
		}
		size *= n
	}

	copied := make([]Axis, len(axes))
	copy(copied, axes)
	return &Grid{axes: copied, size: size}, nil
}

// Size returns the number of combinations.
func (g *Grid) Size() int {
	return g.size
}

// Axes returns the grid axes in declaration order.
func (g *Grid) Axes() []Axis {
	out := make([]Axis, len(g.axes))
	copy(out, g.axes)
	return out
}

// At returns the combination at index.
func (g *Grid) At(index int) (Combination, error) {
	if index < 0 || index >= g.size {
		return nil, &IndexOutOfRangeError{Index: index, Count: g.size}
	}
	return g.decode(index), nil
}

// All iterates over every combination in index order.
func (g *Grid) All() iter.Seq2[int, Combination] {
	return func(yield func(int, Combination) bool) {
		for i := 0; i < g.size; i++ {
			if !yield(i, g.decode(i)) {
				return
			}
		}
	}
}

// decode maps an index to a combination by mixed-radix decomposition,
// last axis least significant.
func (g *Grid) decode(index int) Combination {
	combo := make(Combination, len(g.axes))
	rem := index
	for i := len(g.axes) - 1; i >= 0; i-- {
		n := len(g.axes[i].Values)
		combo[i] = g.axes[i].Values[rem%n]
		rem /= n
	}
	return combo
}

// String returns a short description such as "2 axes, 6 combinations".
func (g *Grid) String() string {
	return fmt.Sprintf("%d axes, %d combinations", len(g.axes), g.size)
}
