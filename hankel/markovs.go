package hankel

import (
	"github.com/JIMMY-KSU/modred"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Markovs is a sequence of Markov parameters C A^i B indexed
// [time step][output][input]. It is never modified after construction.
type Markovs struct {
	steps, outputs, inputs int
	data                   []float64
}

// NewMarkovs copies data, laid out [time step][output][input] in row major
// order, into a new tensor.
func NewMarkovs(steps, outputs, inputs int, data []float64) (*Markovs, error) {
	if steps < 1 || outputs < 1 || inputs < 1 {
		return nil, errors.Wrapf(modred.ErrData, "invalid Markov parameter shape (%d, %d, %d)", steps, outputs, inputs)
	}
	if len(data) != steps*outputs*inputs {
		return nil, errors.Wrapf(modred.ErrData, "shape (%d, %d, %d) needs %d values, got %d",
			steps, outputs, inputs, steps*outputs*inputs, len(data))
	}
	m := &Markovs{steps: steps, outputs: outputs, inputs: inputs, data: make([]float64, len(data))}
	copy(m.data, data)
	return m, nil
}

// NormalizeMarkovs builds a tensor from data of the given shape. A shape
// of one axis is read as (steps, 1, 1) and one of two axes as
// (steps, outputs, 1). Shapes with no axes or more than three are rejected.
func NormalizeMarkovs(shape []int, data []float64) (*Markovs, error) {
	switch len(shape) {
	case 1:
		return NewMarkovs(shape[0], 1, 1, data)
	case 2:
		return NewMarkovs(shape[0], shape[1], 1, data)
	case 3:
		return NewMarkovs(shape[0], shape[1], shape[2], data)
	default:
		return nil, errors.Wrapf(modred.ErrData, "Markov parameters can have 1, 2, or 3 axes, got %d", len(shape))
	}
}

// FromMatrices stacks one (outputs by inputs) matrix per time step.
func FromMatrices(params []mat.Matrix) (*Markovs, error) {
	if len(params) == 0 {
		return nil, errors.Wrap(modred.ErrData, "no Markov parameters")
	}
	outputs, inputs := params[0].Dims()
	data := make([]float64, 0, len(params)*outputs*inputs)
	for step, p := range params {
		if r, c := p.Dims(); r != outputs || c != inputs {
			return nil, errors.Wrapf(modred.ErrData, "Markov parameter %d is %dx%d, expected %dx%d", step, r, c, outputs, inputs)
		}
		for row := 0; row < outputs; row++ {
			for col := 0; col < inputs; col++ {
				data = append(data, p.At(row, col))
			}
		}
	}
	return NewMarkovs(len(params), outputs, inputs, data)
}

// Dims returns the number of time steps, outputs and inputs.
func (m *Markovs) Dims() (steps, outputs, inputs int) {
	return m.steps, m.outputs, m.inputs
}

// At returns a copy of the (outputs by inputs) Markov parameter at step.
func (m *Markovs) At(step int) *mat.Dense {
	size := m.outputs * m.inputs
	data := make([]float64, size)
	copy(data, m.data[step*size:(step+1)*size])
	return mat.NewDense(m.outputs, m.inputs, data)
}

// Trim returns the tensor with an even number of time steps, dropping the
// last step if the count is odd.
func (m *Markovs) Trim() *Markovs {
	if m.steps%2 == 0 {
		return m
	}
	size := m.outputs * m.inputs
	return &Markovs{
		steps:   m.steps - 1,
		outputs: m.outputs,
		inputs:  m.inputs,
		data:    m.data[:(m.steps-1)*size],
	}
}

// FromSignals splits a table whose first column holds sample times and whose
// remaining outputs*inputs columns hold the responses, column
// 1 + output*inputs + input, into times and Markov parameters.
func FromSignals(table mat.Matrix, outputs, inputs int) ([]float64, *Markovs, error) {
	rows, cols := table.Dims()
	if outputs < 1 || inputs < 1 || cols != 1+outputs*inputs {
		return nil, nil, errors.Wrapf(modred.ErrData,
			"signal table has %d columns, expected 1 + %d outputs x %d inputs", cols, outputs, inputs)
	}
	times := mat.Col(nil, 0, table)
	data := make([]float64, 0, rows*outputs*inputs)
	for row := 0; row < rows; row++ {
		for col := 1; col < cols; col++ {
			data = append(data, table.At(row, col))
		}
	}
	markovs, err := NewMarkovs(rows, outputs, inputs, data)
	return times, markovs, err
}
