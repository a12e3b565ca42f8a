package ode

import (
	"github.com/JIMMY-KSU/modred"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Sample integrates system from the initial state at times[0] and returns
// the state at every entry of times, which must be increasing.
func (rk RungeKutta) Sample(times []float64, tol float64, initial mat.Vector, system DifferentiableSystem) ([]*mat.VecDense, error) {
	if len(times) == 0 {
		return nil, errors.Wrap(modred.ErrData, "no sample times")
	}
	res := make([]*mat.VecDense, len(times))
	res[0] = mat.VecDenseCopyOf(initial)
	for index := 1; index < len(times); index++ {
		if times[index] < times[index-1] {
			return nil, errors.Wrapf(modred.ErrData, "sample times decrease at %d", index)
		}
		next, err := rk.AdaptiveCompute(times[index-1], times[index], tol, res[index-1], system)
		if err != nil {
			return nil, err
		}
		res[index] = next
	}
	return res, nil
}
