// Package vecops holds snapshot sequences and the distributed inner product
// and linear combination operations BPOD is built from.
package vecops

import (
	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Sequence is an ordered set of snapshot vectors of one dimension.
type Sequence interface {
	Len() int
	At(i int) (mat.Vector, error)
}

// Vectors is a Sequence held in memory.
type Vectors []mat.Vector

func (v Vectors) Len() int { return len(v) }

func (v Vectors) At(i int) (mat.Vector, error) {
	if i < 0 || i >= len(v) {
		return nil, errors.Wrapf(modred.ErrIndex, "vector %d of %d", i, len(v))
	}
	return v[i], nil
}

// FileSequence loads each snapshot from a path through a matio.Store. A file
// holds a single row or column.
type FileSequence struct {
	Store matio.Store
	Paths []string
}

func (s FileSequence) Len() int { return len(s.Paths) }

func (s FileSequence) At(i int) (mat.Vector, error) {
	if i < 0 || i >= len(s.Paths) {
		return nil, errors.Wrapf(modred.ErrIndex, "vector %d of %d", i, len(s.Paths))
	}
	m, err := s.Store.Load(s.Paths[i])
	if err != nil {
		return nil, err
	}
	values, err := matio.Values(m)
	if err != nil {
		return nil, errors.Wrap(err, s.Paths[i])
	}
	return mat.NewVecDense(len(values), values), nil
}

// InnerProduct of two snapshots. It must be linear in its second argument.
type InnerProduct func(a, b mat.Vector) float64

// Euclidean is the standard inner product a^T b.
func Euclidean(a, b mat.Vector) float64 {
	return mat.Dot(a, b)
}
