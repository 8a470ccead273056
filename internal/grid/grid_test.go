package grid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGrid_OrderLastAxisFastest(t *testing.T) {
	g, err := New([]Axis{
		{Name: "a", Values: []any{1, 2}},
		{Name: "b", Values: []any{10, 20}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []Combination{{1, 10}, {1, 20}, {2, 10}, {2, 20}}
	if g.Size() != len(want) {
		t.Fatalf("Size() = %d, want %d", g.Size(), len(want))
	}

	for i, w := range want {
		got, err := g.At(i)
		if err != nil {
			t.Fatalf("At(%d) error = %v", i, err)
		}
		if diff := cmp.Diff(w, got); diff != "" {
			t.Errorf("At(%d) mismatch (-want +got):\n%s", i, diff)
		}
	}

	got, _ := g.At(2)
	if diff := cmp.Diff(Combination{2, 10}, got); diff != "" {
		t.Errorf("At(2) mismatch (-want +got):\n%s", diff)
	}
}

func TestGrid_Bijection(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
	}{
		{"single axis", []int{5}},
		{"two axes", []int{2, 3}},
		{"three axes", []int{3, 1, 4}},
		{"singleton axes", []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			axes := make([]Axis, len(tt.sizes))
			want := 1
			for i, n := range tt.sizes {
				values := make([]any, n)
				for j := range values {
					values[j] = fmt.Sprintf("v%d_%d", i, j)
				}
				axes[i] = Axis{Name: fmt.Sprintf("x%d", i), Values: values}
				want *= n
			}

			g, err := New(axes)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if g.Size() != want {
				t.Fatalf("Size() = %d, want %d", g.Size(), want)
			}

			seen := make(map[string]int)
			for i, combo := range g.All() {
				key := fmt.Sprint(combo)
				if prev, dup := seen[key]; dup {
					t.Fatalf("combination %v produced by both %d and %d", combo, prev, i)
				}
				seen[key] = i

				at, err := g.At(i)
				if err != nil {
					t.Fatalf("At(%d) error = %v", i, err)
				}
				if diff := cmp.Diff(combo, at); diff != "" {
					t.Errorf("All() and At(%d) disagree (-all +at):\n%s", i, diff)
				}
			}
			if len(seen) != want {
				t.Errorf("distinct combinations = %d, want %d", len(seen), want)
			}

			first, _ := g.At(0)
			last, _ := g.At(want - 1)
			for i, a := range axes {
				if first[i] != a.Values[0] {
					t.Errorf("At(0)[%d] = %v, want first value %v", i, first[i], a.Values[0])
				}
				if last[i] != a.Values[len(a.Values)-1] {
					t.Errorf("At(last)[%d] = %v, want last value %v", i, last[i], a.Values[len(a.Values)-1])
				}
			}
		})
	}
}

func TestGrid_OutOfRange(t *testing.T) {
	g, err := New([]Axis{{Name: "N", Values: []any{2, 3}}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, index := range []int{2, 3, 100, -1} {
		_, err := g.At(index)
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("At(%d) error = %v, want ErrIndexOutOfRange", index, err)
		}
		var rangeErr *IndexOutOfRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("At(%d) error is %T, want *IndexOutOfRangeError", index, err)
		}
		if rangeErr.Index != index || rangeErr.Count != 2 {
			t.Errorf("error = %+v, want Index=%d Count=2", rangeErr, index)
		}
	}
}

func TestGrid_NoAxes(t *testing.T) {
	g, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", g.Size())
	}
	combo, err := g.At(0)
	if err != nil {
		t.Fatalf("At(0) error = %v", err)
	}
	if len(combo) != 0 {
		t.Errorf("At(0) = %v, want empty combination", combo)
	}
	if _, err := g.At(1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("At(1) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestGrid_EmptyAxis(t *testing.T) {
	g, err := New([]Axis{
		{Name: "a", Values: []any{1, 2}},
		{Name: "b", Values: []any{}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", g.Size())
	}
	if _, err := g.At(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("At(0) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestGrid_Overflow(t *testing.T) {
	big := make([]any, 1<<16)
	axes := make([]Axis, 5)
	for i := range axes {
		axes[i] = Axis{Name: fmt.Sprintf("x%d", i), Values: big}
	}
	if _, err := New(axes); !errors.Is(err, ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
}

func TestGrid_AllStopsEarly(t *testing.T) {
	g, _ := New([]Axis{{Name: "a", Values: []any{1, 2, 3, 4}}})
	count := 0
	for i := range g.All() {
		count++
		if i == 1 {
			break
		}
	}
	if count != 2 {
		t.Errorf("iterated %d times, want 2", count)
	}
}
