// Package ssm holds discrete time linear state space models
//
// x[k+1] = A x[k] + B u[k]
//
// y[k] = C x[k]
//
// which is what ERA realizes from Markov parameters.
package ssm

import (
	"errors"
	"math/cmplx"
	"sync"

	"github.com/JIMMY-KSU/modred/hankel"
	"gonum.org/v1/gonum/mat"
)

// LinearSystem struct represent the system
//
// x[k+1] = A x[k] + B u[k]
//
// y[k] = C x[k]
type LinearSystem struct {
	// State dynamics
	A mat.Matrix
	// Input matrix
	B mat.Matrix
	// Observation matrix
	C mat.Matrix
}

// NewLinearSystem creates a new linear system
func NewLinearSystem(A, B, C mat.Matrix) *LinearSystem {
	// Check that system parameters match
	m, n := A.Dims()
	mB, _ := B.Dims()
	_, nC := C.Dims()
	if m != n || mB != m || nC != m {
		panic(errors.New("System Parameters don't match"))
	}
	return &LinearSystem{A, B, C}
}

// StateSpaceOrder is the number of states
func (sys LinearSystem) StateSpaceOrder() int {
	m, _ := sys.A.Dims()
	return m
}

// InputSpaceOrder is the number of inputs
func (sys LinearSystem) InputSpaceOrder() int {
	_, n := sys.B.Dims()
	return n
}

// OutputSpaceOrder is the number of outputs
func (sys LinearSystem) OutputSpaceOrder() int {
	m, _ := sys.C.Dims()
	return m
}

// Markov returns the Markov parameter C A^step B
func (sys LinearSystem) Markov(step int) *mat.Dense {
	var (
		power mat.Dense
		tmp   mat.Dense
		res   mat.Dense
	)
	power.Pow(sys.A, step)
	tmp.Mul(sys.C, &power)
	res.Mul(&tmp, sys.B)
	return &res
}

// ImpulseResponse computes the Markov parameters at the given time steps,
// for instance those of hankel.MakeTimeSteps.
func (sys LinearSystem) ImpulseResponse(steps []int) (*hankel.Markovs, error) {
	var wg sync.WaitGroup
	res := make([]mat.Matrix, len(steps))

	wg.Add(len(steps))
	for index, step := range steps {
		// Compute the different taps as a go routine
		go func(i, k int) {
			defer wg.Done()
			res[i] = sys.Markov(k)
		}(index, step)
	}
	wg.Wait()
	return hankel.FromMatrices(res)
}

// Eigenvalues returns the eigenvalues of A
func (sys LinearSystem) Eigenvalues() ([]complex128, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(sys.A, mat.EigenNone); !ok {
		return nil, errors.New("eigenvalue decomposition did not converge")
	}
	return eig.Values(nil), nil
}

// SpectralRadius returns the largest eigenvalue magnitude of A
func (sys LinearSystem) SpectralRadius() (float64, error) {
	values, err := sys.Eigenvalues()
	if err != nil {
		return 0, err
	}
	var res float64
	for _, v := range values {
		if a := cmplx.Abs(v); a > res {
			res = a
		}
	}
	return res, nil
}

// IsStable reports whether every eigenvalue of A lies strictly inside the
// unit circle
func (sys LinearSystem) IsStable() (bool, error) {
	radius, err := sys.SpectralRadius()
	if err != nil {
		return false, err
	}
	return radius < 1, nil
}
