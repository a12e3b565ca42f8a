package hankel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/vecops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// sequential returns Markov parameters whose entries encode their position:
// 100*step + 10*output + input.
func sequential(t *testing.T, steps, outputs, inputs int) *Markovs {
	data := make([]float64, 0, steps*outputs*inputs)
	for step := 0; step < steps; step++ {
		for out := 0; out < outputs; out++ {
			for in := 0; in < inputs; in++ {
				data = append(data, float64(100*step+10*out+in))
			}
		}
	}
	m, err := NewMarkovs(steps, outputs, inputs, data)
	require.NoError(t, err)
	return m
}

func TestNormalizeMarkovs(t *testing.T) {
	m, err := NormalizeMarkovs([]int{4}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	steps, outputs, inputs := m.Dims()
	assert.Equal(t, [3]int{4, 1, 1}, [3]int{steps, outputs, inputs})

	m, err = NormalizeMarkovs([]int{3, 2}, make([]float64, 6))
	require.NoError(t, err)
	steps, outputs, inputs = m.Dims()
	assert.Equal(t, [3]int{3, 2, 1}, [3]int{steps, outputs, inputs})

	_, err = NormalizeMarkovs([]int{2, 1, 1, 1}, make([]float64, 2))
	assert.True(t, errors.Is(err, modred.ErrData))
	_, err = NormalizeMarkovs(nil, nil)
	assert.True(t, errors.Is(err, modred.ErrData))
	_, err = NormalizeMarkovs([]int{3, 2, 2}, make([]float64, 11))
	assert.True(t, errors.Is(err, modred.ErrData))
}

func TestTrim(t *testing.T) {
	m := sequential(t, 7, 1, 1)
	trimmed := m.Trim()
	steps, _, _ := trimmed.Dims()
	assert.Equal(t, 6, steps)
	assert.Equal(t, 500., trimmed.At(5).At(0, 0))

	even := sequential(t, 6, 1, 1)
	assert.Same(t, even, even.Trim())
}

func TestAssembleShapeAndBlocks(t *testing.T) {
	const outputs, inputs = 2, 3
	m := sequential(t, 10, outputs, inputs)
	h, err := Assemble(m, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Mo)
	assert.Equal(t, 2, h.Mc)

	rows, cols := h.H.Dims()
	assert.Equal(t, 2*outputs, rows)
	assert.Equal(t, 2*inputs, cols)
	r2, c2 := h.H2.Dims()
	assert.Equal(t, rows, r2)
	assert.Equal(t, cols, c2)

	for row := 0; row < h.Mo; row++ {
		for col := 0; col < h.Mc; col++ {
			for out := 0; out < outputs; out++ {
				for in := 0; in < inputs; in++ {
					step := 2 * (row + col)
					assert.Equal(t, float64(100*step+10*out+in), h.H.At(row*outputs+out, col*inputs+in))
					assert.Equal(t, float64(100*(step+1)+10*out+in), h.H2.At(row*outputs+out, col*inputs+in))
				}
			}
		}
	}
}

func TestAssembleTrimsOddLength(t *testing.T) {
	h, err := Assemble(sequential(t, 7, 1, 1), 2, 2)
	require.NoError(t, err)
	expected := mat.NewDense(2, 2, []float64{0, 200, 200, 400})
	assert.True(t, mat.Equal(expected, h.H))
}

func TestBlockCounts(t *testing.T) {
	mo, mc, err := BlockCounts(6, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, mo)
	assert.Equal(t, 2, mc)

	_, _, err = BlockCounts(6, 3, 3)
	assert.True(t, errors.Is(err, modred.ErrConfiguration))

	mo, mc, err = BlockCounts(22, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, mo)
	assert.Equal(t, 5, mc)

	// too few samples for even one block
	_, _, err = BlockCounts(4, 0, 0)
	assert.True(t, errors.Is(err, modred.ErrConfiguration))

	// passes mo+mc+2 <= steps but H2 would read past the data
	_, _, err = BlockCounts(10, 4, 4)
	assert.True(t, errors.Is(err, modred.ErrConfiguration))
}

func TestMakeSampledFormat(t *testing.T) {
	markovs := sequential(t, 4, 1, 2)
	steps, out, dt, err := MakeSampledFormat([]float64{0, 1, 2, 3}, markovs, 1e-6)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 3}, steps)
	assert.Equal(t, 1., dt)
	n, outputs, inputs := out.Dims()
	assert.Equal(t, [3]int{6, 1, 2}, [3]int{n, outputs, inputs})
	for index, step := range steps {
		assert.True(t, mat.Equal(markovs.At(step), out.At(index)), "index %d", index)
	}

	steps, _, dt, err = MakeSampledFormat([]float64{1, 1.5, 2, 2.5}, markovs, 1e-6)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 3}, steps)
	assert.Equal(t, 0.5, dt)

	_, _, _, err = MakeSampledFormat([]float64{0, 1, 2, 4}, markovs, 1e-6)
	assert.True(t, errors.Is(err, modred.ErrData))

	_, _, _, err = MakeSampledFormat([]float64{0, 1, 2}, markovs, 1e-6)
	assert.True(t, errors.Is(err, modred.ErrData))

	for _, times := range [][]float64{
		{0, 1, math.NaN(), 3},
		{math.NaN(), 1, 2, 3},
		{0, 1, 2, math.Inf(1)},
	} {
		_, _, _, err = MakeSampledFormat(times, markovs, 1e-6)
		assert.True(t, errors.Is(err, modred.ErrData), "times %v", times)
	}
	_, _, _, err = MakeSampledFormat([]float64{0, 1, 2, 3}, markovs, math.NaN())
	assert.True(t, errors.Is(err, modred.ErrData))
}

func TestMakeTimeSteps(t *testing.T) {
	steps, err := MakeTimeSteps(6, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 5, 6, 10, 11}, steps)

	_, err = MakeTimeSteps(5, 2)
	assert.True(t, errors.Is(err, modred.ErrConfiguration))
}

func TestFromSignals(t *testing.T) {
	table := mat.NewDense(3, 5, []float64{
		0, 1, 2, 3, 4,
		0.1, 5, 6, 7, 8,
		0.2, 9, 10, 11, 12,
	})
	times, markovs, err := FromSignals(table, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.1, 0.2}, times)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{5, 6, 7, 8}), markovs.At(1)))

	_, _, err = FromSignals(table, 1, 2)
	assert.True(t, errors.Is(err, modred.ErrData))
}

func TestCorrelation(t *testing.T) {
	direct := vecops.Vectors{mat.NewVecDense(2, []float64{1, 0}), mat.NewVecDense(2, []float64{1, 1})}
	adjoint := vecops.Vectors{
		mat.NewVecDense(2, []float64{2, 0}),
		mat.NewVecDense(2, []float64{0, 3}),
		mat.NewVecDense(2, []float64{1, 1}),
	}
	m, err := Correlation(context.Background(), vecops.NewOps(), direct, adjoint)
	require.NoError(t, err)
	expected := mat.NewDense(3, 2, []float64{
		2, 2,
		0, 3,
		1, 2,
	})
	assert.True(t, mat.Equal(expected, m))
}
