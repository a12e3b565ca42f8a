package gonumExtensions

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Eye returns the (m by n) identity matrix
func Eye(m, n int) *mat.Dense {
	res := mat.NewDense(m, n, nil)
	for index := 0; index < m && index < n; index++ {
		res.Set(index, index, 1)
	}
	return res
}

// NANORINF checks if there are any NAN or INF in matrix
func NANORINF(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if v := matrix.At(row, col); math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

// DiagPow returns the diagonal matrix diag(values^p).
//
// Zero values raised to a negative power give +Inf on the diagonal.
func DiagPow(values []float64, p float64) *mat.DiagDense {
	data := make([]float64, len(values))
	for index, v := range values {
		data[index] = math.Pow(v, p)
	}
	return mat.NewDiagDense(len(data), data)
}

// LeadingColumns returns a copy of the first k columns of matrix
func LeadingColumns(matrix mat.Matrix, k int) *mat.Dense {
	m, _ := matrix.Dims()
	var res mat.Dense
	res.CloneFrom(sliceable(matrix).Slice(0, m, 0, k))
	return &res
}

// LeadingRows returns a copy of the first k rows of matrix
func LeadingRows(matrix mat.Matrix, k int) *mat.Dense {
	_, n := matrix.Dims()
	var res mat.Dense
	res.CloneFrom(sliceable(matrix).Slice(0, k, 0, n))
	return &res
}

// FrobeniusDistance returns ||a - b||_F
func FrobeniusDistance(a, b mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2)
}

// MaxAbs returns the largest absolute entry of matrix
func MaxAbs(matrix mat.Matrix) float64 {
	m, n := matrix.Dims()
	row := make([]float64, n)
	var res float64
	for index := 0; index < m; index++ {
		mat.Row(row, index, matrix)
		for j := range row {
			row[j] = math.Abs(row[j])
		}
		if n > 0 {
			res = math.Max(res, floats.Max(row))
		}
	}
	return res
}

type slicer interface {
	Slice(i, k, j, l int) mat.Matrix
}

// sliceable returns matrix itself if it can be sliced, otherwise a dense copy.
func sliceable(matrix mat.Matrix) slicer {
	if s, ok := matrix.(slicer); ok {
		return s
	}
	return mat.DenseCopyOf(matrix)
}
