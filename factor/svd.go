// Package factor wraps the singular value decomposition used by both BPOD and
// ERA. The decomposition is returned as a single Triple with the singular
// values sorted in descending order.
package factor

import (
	"sort"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/gonumExtensions"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Triple holds the thin SVD
//
// M = U diag(Values) V^T
//
// where U is (m by k), V is (n by k) and k = min(m, n).
type Triple struct {
	U      *mat.Dense
	Values []float64
	V      *mat.Dense
}

// SVD factors matrix. It fails with modred.ErrNumerical if the matrix holds a
// NaN or Inf entry or if the factorization does not converge.
func SVD(matrix mat.Matrix) (*Triple, error) {
	m, n := matrix.Dims()
	if m == 0 || n == 0 {
		return nil, errors.Wrapf(modred.ErrNumerical, "can not factor empty %dx%d matrix", m, n)
	}
	if gonumExtensions.NANORINF(matrix) {
		return nil, errors.Wrap(modred.ErrNumerical, "matrix contains NaN or Inf")
	}

	var svd mat.SVD
	if ok := svd.Factorize(matrix, mat.SVDThin); !ok {
		return nil, errors.Wrapf(modred.ErrNumerical, "SVD of %dx%d matrix did not converge", m, n)
	}
	res := &Triple{
		U:      &mat.Dense{},
		Values: svd.Values(nil),
		V:      &mat.Dense{},
	}
	svd.UTo(res.U)
	svd.VTo(res.V)
	res.sort()
	return res, nil
}

// sort orders the singular values descending and permutes the singular
// vectors with them. The LAPACK backend already returns them in this order,
// sort only has work to do if that ever changes.
func (t *Triple) sort() {
	if sort.IsSorted(sort.Reverse(sort.Float64Slice(t.Values))) {
		return
	}
	k := len(t.Values)
	perm := make([]int, k)
	for index := range perm {
		perm[index] = index
	}
	sort.SliceStable(perm, func(i, j int) bool { return t.Values[perm[i]] > t.Values[perm[j]] })

	values := make([]float64, k)
	u := mat.NewDense(t.U.RawMatrix().Rows, k, nil)
	v := mat.NewDense(t.V.RawMatrix().Rows, k, nil)
	for to, from := range perm {
		values[to] = t.Values[from]
		u.SetCol(to, mat.Col(nil, from, t.U))
		v.SetCol(to, mat.Col(nil, from, t.V))
	}
	t.Values, t.U, t.V = values, u, v
}

// Rank returns the number of singular values in the triple.
func (t *Triple) Rank() int {
	return len(t.Values)
}

// Truncate returns a new triple keeping the first r singular values and
// vectors.
func (t *Triple) Truncate(r int) (*Triple, error) {
	if r < 1 || r > len(t.Values) {
		return nil, errors.Wrapf(modred.ErrConfiguration,
			"can not truncate to %d states, decomposition has %d singular values", r, len(t.Values))
	}
	values := make([]float64, r)
	copy(values, t.Values[:r])
	return &Triple{
		U:      gonumExtensions.LeadingColumns(t.U, r),
		Values: values,
		V:      gonumExtensions.LeadingColumns(t.V, r),
	}, nil
}

// Reconstruct returns U diag(Values) V^T.
func (t *Triple) Reconstruct() *mat.Dense {
	var us, res mat.Dense
	us.Mul(t.U, mat.NewDiagDense(len(t.Values), t.Values))
	res.Mul(&us, t.V.T())
	return &res
}
