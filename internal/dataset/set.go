package dataset

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Set pairs a feature matrix (N x D) with a label matrix (N x C). Row i of X
// always corresponds to row i of Y.
type Set struct {
	X *mat.Dense
	Y *mat.Dense
}

// NewSet validates that x and y describe the same examples.
func NewSet(x, y *mat.Dense) (*Set, error) {
	if x == nil || y == nil {
		return nil, errors.New("dataset: set needs features and labels")
	}
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr != yr {
		return nil, errors.Errorf("dataset: %d feature rows but %d label rows", xr, yr)
	}
	return &Set{X: x, Y: y}, nil
}

// Len returns the number of examples.
func (s *Set) Len() int {
	if s == nil || s.X == nil {
		return 0
	}
	r, _ := s.X.Dims()
	return r
}

// Features returns the feature width, bias column included.
func (s *Set) Features() int {
	_, c := s.X.Dims()
	return c
}

// Classes returns the label width.
func (s *Set) Classes() int {
	_, c := s.Y.Dims()
	return c
}

// Shuffle permutes the rows of X and Y with one shared permutation.
func (s *Set) Shuffle(rng *rand.Rand) {
	rng.Shuffle(s.Len(), func(i, j int) {
		swapRows(s.X, i, j)
		swapRows(s.Y, i, j)
	})
}

func swapRows(m *mat.Dense, i, j int) {
	a := m.RawRowView(i)
	b := m.RawRowView(j)
	for k := range a {
		a[k], b[k] = b[k], a[k]
	}
}

// Batch returns size consecutive examples starting at offset. A batch that
// runs past the end of the set continues from the first row.
func (s *Set) Batch(offset, size int) (x, y *mat.Dense) {
	n := s.Len()
	if offset+size <= n {
		return s.X.Slice(offset, offset+size, 0, s.Features()).(*mat.Dense),
			s.Y.Slice(offset, offset+size, 0, s.Classes()).(*mat.Dense)
	}
	x = mat.NewDense(size, s.Features(), nil)
	y = mat.NewDense(size, s.Classes(), nil)
	for i := 0; i < size; i++ {
		src := (offset + i) % n
		x.SetRow(i, s.X.RawRowView(src))
		y.SetRow(i, s.Y.RawRowView(src))
	}
	return x, y
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	return &Set{X: mat.DenseCopyOf(s.X), Y: mat.DenseCopyOf(s.Y)}
}

// Concat returns a new set holding the rows of s followed by the rows of o.
func (s *Set) Concat(o *Set) (*Set, error) {
	if s.Features() != o.Features() || s.Classes() != o.Classes() {
		return nil, errors.Errorf("dataset: cannot concat %dx%d set with %dx%d set",
			s.Features(), s.Classes(), o.Features(), o.Classes())
	}
	var x, y mat.Dense
	x.Stack(s.X, o.X)
	y.Stack(s.Y, o.Y)
	return &Set{X: &x, Y: &y}, nil
}
