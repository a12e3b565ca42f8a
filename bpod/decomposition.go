package bpod

import (
	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/gonumExtensions"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Decomposition is the result of a BPOD: the adjoint-direct correlation
// matrix Y^T X and its SVD
//
// Y^T X = L diag(SingVals) R^T
//
// A Decomposition is immutable once returned; recomputing produces a new one.
type Decomposition struct {
	// Correlation is nil for a decomposition loaded from storage
	Correlation *mat.Dense
	L           *mat.Dense
	SingVals    []float64
	R           *mat.Dense
}

// NumStates is the number of singular values, the number of modes that can
// be requested.
func (d *Decomposition) NumStates() int {
	if d == nil {
		return 0
	}
	return len(d.SingVals)
}

// DirectBuildCoeffs returns R diag(SingVals^-1/2), the map from direct
// snapshots to direct modes.
func (d *Decomposition) DirectBuildCoeffs() (*mat.Dense, error) {
	if d == nil || d.R == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "right singular vectors are not computed")
	}
	return d.buildCoeffs(d.R)
}

// AdjointBuildCoeffs returns L diag(SingVals^-1/2), the map from adjoint
// snapshots to adjoint modes.
func (d *Decomposition) AdjointBuildCoeffs() (*mat.Dense, error) {
	if d == nil || d.L == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "left singular vectors are not computed")
	}
	return d.buildCoeffs(d.L)
}

func (d *Decomposition) buildCoeffs(vecs *mat.Dense) (*mat.Dense, error) {
	if len(d.SingVals) == 0 {
		return nil, errors.Wrap(modred.ErrUndefinedState, "singular values are not computed")
	}
	if _, c := vecs.Dims(); c != len(d.SingVals) {
		return nil, errors.Wrapf(modred.ErrData, "%d singular vectors for %d singular values", c, len(d.SingVals))
	}
	var res mat.Dense
	res.Mul(vecs, gonumExtensions.DiagPow(d.SingVals, -0.5))
	return &res, nil
}
