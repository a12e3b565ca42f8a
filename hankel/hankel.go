// Package hankel assembles the matrices that BPOD and ERA factor: the
// adjoint-direct correlation matrix and the pair of block Hankel matrices
// built from Markov parameters.
package hankel

import (
	"context"
	"math"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/vecops"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Correlation returns the (len(adjoint) by len(direct)) matrix of inner
// products <adjoint[i], direct[j]>.
func Correlation(ctx context.Context, ops *vecops.Ops, direct, adjoint vecops.Sequence) (*mat.Dense, error) {
	return ops.InnerProductMatrix(ctx, adjoint, direct)
}

// Hankel holds H and its one step shifted companion H2 (H and H' in Ma et
// al. 2011) together with the block counts they were built with.
type Hankel struct {
	H, H2 *mat.Dense
	// Mo is the number of block rows (observable dimension)
	Mo int
	// Mc is the number of block columns (controllable dimension)
	Mc int
}

// BlockCounts validates mo and mc for a sequence of steps time steps. If
// either is zero both take the default (steps-2)/4, which uses all of the
// data for samples in the [0, 1, P, P+1, ...] format.
func BlockCounts(steps, mo, mc int) (int, int, error) {
	// [0 1 1 2 2 3] gives H = [[0 1][1 2]], H2 = [[1 2][2 3]] with mo = mc = 1
	// and [0 1 1 2 2 3 3 4 4 5] gives mo = mc = 2, hence (steps-2)/4.
	if mo <= 0 || mc <= 0 {
		mo = (steps - 2) / 4
		mc = mo
	}
	if mo < 1 || mc < 1 {
		return 0, 0, errors.Wrapf(modred.ErrConfiguration,
			"%d time steps are too few for a Hankel matrix (mo=%d, mc=%d)", steps, mo, mc)
	}
	if mo+mc+2 > steps {
		return 0, 0, errors.Wrapf(modred.ErrConfiguration,
			"mo+mc+2=%d and must be <= than the number of samples %d", mo+mc+2, steps)
	}
	// H2 reaches sample 2(mo-1 + mc-1)+1
	if last := 2*(mo+mc) - 3; last >= steps {
		return 0, 0, errors.Wrapf(modred.ErrConfiguration,
			"mo=%d and mc=%d need sample %d but there are only %d", mo, mc, last, steps)
	}
	return mo, mc, nil
}

// Assemble builds H and H2 from markovs. An odd number of time steps is
// trimmed to an even one first. Block (row, col) of H is
// markovs[2(row+col)] and of H2 markovs[2(row+col)+1].
func Assemble(markovs *Markovs, mo, mc int) (*Hankel, error) {
	markovs = markovs.Trim()
	steps, outputs, inputs := markovs.Dims()
	mo, mc, err := BlockCounts(steps, mo, mc)
	if err != nil {
		return nil, err
	}

	h := mat.NewDense(mo*outputs, mc*inputs, nil)
	h2 := mat.NewDense(mo*outputs, mc*inputs, nil)
	for row := 0; row < mo; row++ {
		rowStart := row * outputs
		for col := 0; col < mc; col++ {
			colStart := col * inputs
			h.Slice(rowStart, rowStart+outputs, colStart, colStart+inputs).(*mat.Dense).
				Copy(markovs.At(2 * (row + col)))
			h2.Slice(rowStart, rowStart+outputs, colStart, colStart+inputs).(*mat.Dense).
				Copy(markovs.At(2*(row+col) + 1))
		}
	}
	return &Hankel{H: h, H2: h2, Mo: mo, Mc: mc}, nil
}

// MakeTimeSteps returns num integer time steps [0, 1, P, P+1, 2P, 2P+1, ...]
// for interval P.
func MakeTimeSteps(num, interval int) ([]int, error) {
	if num%2 != 0 || num < 0 {
		return nil, errors.Wrapf(modred.ErrConfiguration, "number of steps must be even, got %d", num)
	}
	res := make([]int, num)
	for index := 0; index < num/2; index++ {
		res[2*index] = interval * index
		res[2*index+1] = interval*index + 1
	}
	return res, nil
}

// MakeSampledFormat converts samples at times dt*[0, 1, 2, 3, ...] into the
// format dt*[0, 1, 1, 2, 2, 3, ...] by duplicating interior samples. ERA on
// the result gives a model with time step dt rather than 2*dt.
//
// times must be uniformly spaced within dtTol.
func MakeSampledFormat(times []float64, markovs *Markovs, dtTol float64) ([]int, *Markovs, float64, error) {
	steps, outputs, inputs := markovs.Dims()
	if len(times) != steps {
		return nil, nil, 0, errors.Wrapf(modred.ErrData, "%d times for %d Markov parameters", len(times), steps)
	}
	if steps < 2 {
		return nil, nil, 0, errors.Wrapf(modred.ErrData, "need at least two samples, got %d", steps)
	}
	for index, tm := range times {
		if math.IsNaN(tm) || math.IsInf(tm, 0) {
			return nil, nil, 0, errors.Wrapf(modred.ErrData, "time %g of sample %d is not finite", tm, index)
		}
	}
	dt := times[1] - times[0]
	for index := 1; index < steps; index++ {
		if !(math.Abs(times[index]-times[index-1]-dt) <= dtTol) {
			return nil, nil, 0, errors.Wrapf(modred.ErrData, "data is not equally spaced in time at sample %d", index)
		}
	}
	if dt == 0 {
		return nil, nil, 0, errors.Wrap(modred.ErrData, "zero time step")
	}

	size := outputs * inputs
	corrected := 2 * (steps - 1)
	timeSteps := make([]int, corrected)
	data := make([]float64, 0, corrected*size)
	for index := 0; index < steps-1; index++ {
		timeSteps[2*index] = int(math.Round((times[index] - times[0]) / dt))
		timeSteps[2*index+1] = int(math.Round((times[index+1] - times[0]) / dt))
		data = append(data, markovs.data[index*size:(index+1)*size]...)
		data = append(data, markovs.data[(index+1)*size:(index+2)*size]...)
	}
	res, err := NewMarkovs(corrected, outputs, inputs, data)
	if err != nil {
		return nil, nil, 0, err
	}
	return timeSteps, res, dt, nil
}
