// Package ode is a ordinary differential equation library that implements the
// Runge-Kutta methods https://en.wikipedia.org/wiki/Runge–Kutta_methods.
// It integrates the state trajectories from which continuous time impulse
// responses are sampled.
package ode

import (
	"math"
	"sync"

	"github.com/JIMMY-KSU/modred"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// maxNumberOfIterations bounds the step halvings of one adaptive step.
const maxNumberOfIterations int = 10000

// DifferentiableSystem is dx/dt = f(t, x).
type DifferentiableSystem interface {
	Derivative(t float64, state mat.Vector) mat.Vector
}

// RungeKutta holds the butcherTableau which describes the Runge Kutta method.
type RungeKutta struct {
	Description butcherTableau
}

// Adaptive reports whether the tableau carries an embedded error estimate.
func (rk RungeKutta) Adaptive() bool {
	return len(rk.Description.weights) == 2
}

// Compute advances every column of value from t = from to t = to with a
// single step and returns the result. Columns are computed concurrently.
func (rk RungeKutta) Compute(from, to float64, value mat.Matrix, system DifferentiableSystem) *mat.Dense {
	M, N := value.Dims()
	res := mat.NewDense(M, N, nil)

	var wg sync.WaitGroup
	wg.Add(N)
	for column := 0; column < N; column++ {
		go func(column int) {
			defer wg.Done()
			next, _ := rk.Step(from, to, mat.NewVecDense(M, mat.Col(nil, column, value)), system)
			res.SetCol(column, next.RawVector().Data)
		}(column)
	}
	wg.Wait()
	return res
}

// Step computes the update for a Runge-Kutta system based on a current value
// at t = from and a target time t = to. It returns the state at t = to and,
// for adaptive tableaus, the local error estimate. value is not modified.
func (rk RungeKutta) Step(from, to float64, value mat.Vector, system DifferentiableSystem) (*mat.VecDense, *mat.VecDense) {
	M := value.Len()
	// The precomputed derivative points
	K := make([]mat.Vector, rk.Description.stages)
	// Step length
	h := to - from
	for index := range K {
		tempV := mat.VecDenseCopyOf(value)
		// Combine previously computed derivative points according to the
		// Butcher Tableau.
		for index2, a := range rk.Description.rungeKuttaMatrix[index] {
			tempV.AddScaledVec(tempV, h*a, K[index2])
		}
		K[index] = system.Derivative(from+h*rk.Description.nodes[index], tempV)
	}

	next := mat.VecDenseCopyOf(value)
	errVec := mat.NewVecDense(M, nil)
	// Sum up the different contributions with relevant weights.
	for index, k := range K {
		next.AddScaledVec(next, h*rk.Description.weights[0][index], k)
		if rk.Adaptive() {
			errVec.AddScaledVec(errVec, h*(rk.Description.weights[1][index]-rk.Description.weights[0][index]), k)
		}
	}
	return next, errVec
}

// AdaptiveCompute integrates value from t = from to t = to, halving the step
// until the local error stays below tol. Tableaus without an error estimate
// take a single step.
func (rk RungeKutta) AdaptiveCompute(from, to, tol float64, value mat.Vector, system DifferentiableSystem) (*mat.VecDense, error) {
	state := mat.VecDenseCopyOf(value)
	if !rk.Adaptive() {
		next, _ := rk.Step(from, to, state, system)
		return next, nil
	}

	tnow := from
	// Repeat until time to is reached
	for tnow < to {
		tnext := to
		count := 0
		var next *mat.VecDense
		for {
			var errVec *mat.VecDense
			next, errVec = rk.Step(tnow, tnext, state, system)
			currentError := 0.
			for index := 0; index < errVec.Len(); index++ {
				currentError += math.Abs(errVec.AtVec(index))
			}
			if currentError < tol {
				break
			}
			// Half the next integration interval and try again
			tnext = (tnext-tnow)/2. + tnow

			count++
			if count >= maxNumberOfIterations {
				return nil, errors.Wrapf(modred.ErrNumerical,
					"adaptive Runge-Kutta does not converge at t=%g", tnow)
			}
		}
		state = next
		tnow = tnext
	}
	return state, nil
}

// NewRK4 function returns a forth order Runge-Kutta object
func NewRK4() *RungeKutta {
	var temp butcherTableau
	temp.stages = 4
	temp.nodes = []float64{0, 1. / 2., 1. / 2., 1}
	temp.weights = [][]float64{{1. / 6., 1. / 3., 1. / 3., 1. / 6.}}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 2.},
		{0, 1. / 2.},
		{0, 0, 1.},
	}
	rk := RungeKutta{temp}
	return &rk
}

// NewEulerMethod returns a pointer to a Runge-Kutta that does the Euler method.
func NewEulerMethod() *RungeKutta {
	var temp butcherTableau
	temp.stages = 1
	temp.nodes = []float64{0}
	temp.weights = [][]float64{{1}}
	temp.rungeKuttaMatrix = [][]float64{nil}
	rk := RungeKutta{temp}
	return &rk
}

// butcherTableau which describes the approximate solution, see https://en.wikipedia.org/wiki/Runge–Kutta_methods.
type butcherTableau struct {
	stages           int
	weights          [][]float64
	nodes            []float64
	rungeKuttaMatrix [][]float64
}

// NewFehlberg45 implements https://en.wikipedia.org/wiki/Runge%E2%80%93Kutta%E2%80%93Fehlberg_method
func NewFehlberg45() *RungeKutta {
	var temp butcherTableau
	temp.stages = 6
	temp.nodes = []float64{0, 1. / 4., 3. / 8., 12. / 13., 1., 1. / 2.}
	temp.weights = [][]float64{
		{16. / 135., 0, 6656. / 12825., 28561. / 56430., -9. / 50., 2. / 55.},
		{25. / 216., 0, 1408. / 2565., 2197. / 4104., -1. / 5., 0},
	}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 4.},
		{3. / 32., 9. / 32.},
		{1932. / 2197., -7200. / 2197., 7296. / 2197.},
		{439. / 216., -8., 3680. / 513., -845. / 4104.},
		{-8. / 27., 2, -3544. / 2565., 1859. / 4104., -11. / 40.},
	}
	rk := RungeKutta{temp}
	return &rk
}
