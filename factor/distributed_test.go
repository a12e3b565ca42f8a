package factor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func bits(values []float64) []uint64 {
	res := make([]uint64, len(values))
	for index, v := range values {
		res[index] = math.Float64bits(v)
	}
	return res
}

func TestSVDOnLeaderBitIdentical(t *testing.T) {
	m := randomDense(rand.New(rand.NewSource(7)), 6, 5)
	const size = 4
	results := make([]*Triple, size)
	g := parallel.NewLocalGroup(size)
	err := g.Run(context.Background(), func(ctx context.Context, comm parallel.Comm) error {
		var input mat.Matrix
		if comm.Rank() == 0 {
			input = m
		}
		res, err := SVDOnLeader(ctx, parallel.NewCoordinator(comm, nil), input)
		results[comm.Rank()] = res
		return err
	})
	require.NoError(t, err)

	for rank := 1; rank < size; rank++ {
		assert.Equal(t, bits(results[0].Values), bits(results[rank].Values))
		assert.Equal(t, bits(results[0].U.RawMatrix().Data), bits(results[rank].U.RawMatrix().Data))
		assert.Equal(t, bits(results[0].V.RawMatrix().Data), bits(results[rank].V.RawMatrix().Data))
	}
}

func TestSVDOnLeaderSerial(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{3, 0, 0, 4})
	res, err := SVDOnLeader(context.Background(), parallel.Default(), m)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 3}, res.Values, 1e-14)
}

func TestSVDOnLeaderFailureReachesEveryWorker(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{math.NaN(), 0, 0, 1})
	g := parallel.NewLocalGroup(3)
	err := g.Run(context.Background(), func(ctx context.Context, comm parallel.Comm) error {
		_, err := SVDOnLeader(ctx, parallel.NewCoordinator(comm, nil), m)
		if !errors.Is(err, modred.ErrNumerical) {
			t.Errorf("rank %d: %v", comm.Rank(), err)
		}
		return err
	})
	require.Error(t, err)
}
