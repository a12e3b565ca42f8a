package vecops

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomVectors(rng *rand.Rand, n, dim int) Vectors {
	res := make(Vectors, n)
	for index := range res {
		data := make([]float64, dim)
		for j := range data {
			data[j] = rng.NormFloat64()
		}
		res[index] = mat.NewVecDense(dim, data)
	}
	return res
}

func stack(v Vectors) *mat.Dense {
	res := mat.NewDense(v[0].Len(), len(v), nil)
	for index, vec := range v {
		res.SetCol(index, mat.Col(nil, 0, vec))
	}
	return res
}

func TestInnerProductMatrixSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	rows, cols := randomVectors(rng, 5, 10), randomVectors(rng, 7, 10)

	ops := NewOps()
	ops.MaxVectorsPerNode = 3
	m, err := ops.InnerProductMatrix(context.Background(), rows, cols)
	require.NoError(t, err)

	var expected mat.Dense
	expected.Mul(stack(rows).T(), stack(cols))
	assert.True(t, mat.EqualApprox(m, &expected, 1e-12))
}

func TestInnerProductMatrixDistributed(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	rows, cols := randomVectors(rng, 5, 6), randomVectors(rng, 4, 6)

	serial, err := NewOps().InnerProductMatrix(context.Background(), rows, cols)
	require.NoError(t, err)

	const size = 3
	results := make([]*mat.Dense, size)
	g := parallel.NewLocalGroup(size)
	err = g.Run(context.Background(), func(ctx context.Context, comm parallel.Comm) error {
		ops := &Ops{Coordinator: parallel.NewCoordinator(comm, nil), InnerProduct: Euclidean, MaxVectorsPerNode: 2}
		m, err := ops.InnerProductMatrix(ctx, rows, cols)
		results[comm.Rank()] = m
		return err
	})
	require.NoError(t, err)
	for rank, m := range results {
		assert.True(t, mat.Equal(serial, m), "rank %d", rank)
	}
}

func TestInnerProductMatrixMoreWorkersThanRows(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rows, cols := randomVectors(rng, 2, 3), randomVectors(rng, 2, 3)
	serial, err := NewOps().InnerProductMatrix(context.Background(), rows, cols)
	require.NoError(t, err)

	g := parallel.NewLocalGroup(4)
	err = g.Run(context.Background(), func(ctx context.Context, comm parallel.Comm) error {
		ops := &Ops{Coordinator: parallel.NewCoordinator(comm, nil), InnerProduct: Euclidean}
		m, err := ops.InnerProductMatrix(ctx, rows, cols)
		if err == nil && !mat.Equal(serial, m) {
			t.Errorf("rank %d differs", comm.Rank())
		}
		return err
	})
	require.NoError(t, err)
}

func TestInnerProductMatrixDimensionMismatch(t *testing.T) {
	rows := Vectors{mat.NewVecDense(3, nil), mat.NewVecDense(3, nil)}
	cols := Vectors{mat.NewVecDense(3, nil), mat.NewVecDense(4, nil)}
	_, err := NewOps().InnerProductMatrix(context.Background(), rows, cols)
	assert.True(t, errors.Is(err, modred.ErrData))

	// The failure is seen by every worker, not only the one that found it.
	g := parallel.NewLocalGroup(2)
	err = g.Run(context.Background(), func(ctx context.Context, comm parallel.Comm) error {
		ops := &Ops{Coordinator: parallel.NewCoordinator(comm, nil), InnerProduct: Euclidean}
		_, err := ops.InnerProductMatrix(ctx, rows, cols)
		if !errors.Is(err, modred.ErrData) {
			t.Errorf("rank %d: expected data error, got %v", comm.Rank(), err)
		}
		return err
	})
	require.Error(t, err)

	_, err = NewOps().InnerProductMatrix(context.Background(), Vectors{}, cols)
	assert.True(t, errors.Is(err, modred.ErrData))
}

func TestLinearCombinations(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	seq := randomVectors(rng, 4, 5)
	coeffs := mat.NewDense(4, 3, []float64{
		1, 0, 2,
		0, 1, 0,
		0, 0, -1,
		1, 0, 0,
	})
	columns := []int{2, 0, 1}

	check := func(res []*mat.VecDense) {
		require.Len(t, res, len(columns))
		for k, col := range columns {
			var expected mat.VecDense
			expected.MulVec(stack(seq), coeffs.ColView(col))
			assert.True(t, mat.EqualApprox(&expected, res[k], 1e-12), "column %d", col)
		}
	}

	res, err := NewOps().LinearCombinations(context.Background(), seq, coeffs, columns)
	require.NoError(t, err)
	check(res)

	g := parallel.NewLocalGroup(2)
	results := make([][]*mat.VecDense, 2)
	err = g.Run(context.Background(), func(ctx context.Context, comm parallel.Comm) error {
		ops := &Ops{Coordinator: parallel.NewCoordinator(comm, nil), InnerProduct: Euclidean}
		res, err := ops.LinearCombinations(ctx, seq, coeffs, columns)
		results[comm.Rank()] = res
		return err
	})
	require.NoError(t, err)
	check(results[0])
	check(results[1])
}

func TestLinearCombinationsErrors(t *testing.T) {
	seq := Vectors{mat.NewVecDense(2, nil), mat.NewVecDense(2, nil)}
	_, err := NewOps().LinearCombinations(context.Background(), seq, mat.NewDense(3, 1, nil), []int{0})
	assert.True(t, errors.Is(err, modred.ErrData))

	_, err = NewOps().LinearCombinations(context.Background(), seq, mat.NewDense(2, 1, nil), []int{1})
	assert.True(t, errors.Is(err, modred.ErrIndex))
}

func TestFileSequence(t *testing.T) {
	dir := t.TempDir()
	store := matio.TextStore{}
	paths := make([]string, 2)
	for index := range paths {
		paths[index] = filepath.Join(dir, fmt.Sprintf("snap_%d.txt", index))
		require.NoError(t, store.Save(matio.Column([]float64{float64(index), 1, 2}), paths[index]))
	}
	seq := FileSequence{Store: store, Paths: paths}
	assert.Equal(t, 2, seq.Len())
	v, err := seq.At(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2}, mat.Col(nil, 0, v))

	_, err = seq.At(2)
	assert.True(t, errors.Is(err, modred.ErrIndex))
}
