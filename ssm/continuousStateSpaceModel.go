package ssm

import (
	"errors"
	"sync"

	"github.com/JIMMY-KSU/modred/hankel"
	"github.com/JIMMY-KSU/modred/ode"
	"gonum.org/v1/gonum/mat"
)

// ContinuousSystem struct represent the system
//
// dx/dt = A x(t) + B u(t)
//
// y(t) = C x(t)
type ContinuousSystem struct {
	A mat.Matrix
	B mat.Matrix
	C mat.Matrix
}

// NewContinuousSystem creates a new continuous time linear system
func NewContinuousSystem(A, B, C mat.Matrix) *ContinuousSystem {
	m, n := A.Dims()
	mB, _ := B.Dims()
	_, nC := C.Dims()
	if m != n || mB != m || nC != m {
		panic(errors.New("System Parameters don't match"))
	}
	return &ContinuousSystem{A, B, C}
}

// Derivative is A x, the homogeneous dynamics.
func (sys ContinuousSystem) Derivative(_ float64, state mat.Vector) mat.Vector {
	var res mat.VecDense
	res.MulVec(sys.A, state)
	return &res
}

// Discretize samples the system with time step dt. The impulse response
// C exp(A k dt) B of the continuous system is the k-th Markov parameter of
// the result.
func (sys ContinuousSystem) Discretize(dt float64) *LinearSystem {
	var scaled, A mat.Dense
	scaled.Scale(dt, sys.A)
	A.Exp(&scaled)
	return NewLinearSystem(&A, mat.DenseCopyOf(sys.B), mat.DenseCopyOf(sys.C))
}

// ImpulseResponse integrates the response to an impulse on each input and
// samples the outputs at times, which must be increasing and start at 0.
// The inputs are integrated as go routines.
func (sys ContinuousSystem) ImpulseResponse(rk *ode.RungeKutta, times []float64, tol float64) (*hankel.Markovs, error) {
	_, inputs := sys.B.Dims()
	outputs, _ := sys.C.Dims()
	responses := make([][]*mat.VecDense, inputs)
	errs := make([]error, inputs)

	var wg sync.WaitGroup
	wg.Add(inputs)
	for input := 0; input < inputs; input++ {
		go func(input int) {
			defer wg.Done()
			initial := mat.NewVecDense(sys.StateSpaceOrder(), mat.Col(nil, input, sys.B))
			responses[input], errs[input] = rk.Sample(times, tol, initial, sys)
		}(input)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	params := make([]mat.Matrix, len(times))
	for step := range times {
		m := mat.NewDense(outputs, inputs, nil)
		var y mat.VecDense
		for input := 0; input < inputs; input++ {
			y.MulVec(sys.C, responses[input][step])
			m.SetCol(input, y.RawVector().Data)
		}
		params[step] = m
	}
	return hankel.FromMatrices(params)
}

// StateSpaceOrder is the number of states
func (sys ContinuousSystem) StateSpaceOrder() int {
	m, _ := sys.A.Dims()
	return m
}
