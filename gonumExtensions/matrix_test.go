package gonumExtensions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestEye(t *testing.T) {
	eye := Eye(2, 3)
	assert.True(t, mat.Equal(eye, mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0})))
}

func TestNANORINF(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.False(t, NANORINF(m))
	m.Set(1, 0, math.Inf(-1))
	assert.True(t, NANORINF(m))
	m.Set(1, 0, math.NaN())
	assert.True(t, NANORINF(m))
}

func TestDiagPow(t *testing.T) {
	d := DiagPow([]float64{4, 9, 0}, -0.5)
	assert.InDelta(t, 0.5, d.At(0, 0), 1e-15)
	assert.InDelta(t, 1./3., d.At(1, 1), 1e-15)
	assert.True(t, math.IsInf(d.At(2, 2), 1))
}

func TestLeading(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	cols := LeadingColumns(m, 2)
	assert.True(t, mat.Equal(cols, mat.NewDense(3, 2, []float64{1, 2, 4, 5, 7, 8})))
	rows := LeadingRows(m.T(), 1)
	assert.True(t, mat.Equal(rows, mat.NewDense(1, 3, []float64{1, 4, 7})))

	// The copies must not alias the source.
	cols.Set(0, 0, 100)
	assert.Equal(t, 1., m.At(0, 0))
}

func TestFrobeniusDistanceAndMaxAbs(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	b := mat.NewDense(2, 2, []float64{0, 0, 0, -2})
	assert.InDelta(t, math.Sqrt(10), FrobeniusDistance(a, b), 1e-14)
	assert.Equal(t, 2., MaxAbs(b))
}
