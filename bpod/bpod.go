// Package bpod computes balanced proper orthogonal decompositions: direct and
// adjoint modes from direct and adjoint snapshots.
//
// Usage:
//
//	b := bpod.New(ops, bpod.WithStore(matio.TextStore{}))
//	decomp, err := b.ComputeDecomp(ctx, direct, adjoint)
//	modes, err := b.ComputeDirectModes(ctx, decomp, []int{1, 2, 3}, direct)
package bpod

import (
	"context"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/factor"
	"github.com/JIMMY-KSU/modred/hankel"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/JIMMY-KSU/modred/vecops"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// BPOD sequences correlation assembly, factorization and mode construction.
// It holds configuration only; results live in Decomposition values.
type BPOD struct {
	ops       *vecops.Ops
	store     matio.Store
	logger    logrus.FieldLogger
	indexFrom int
}

// Option configures a BPOD.
type Option func(*BPOD)

// WithStore sets the matrix store used by the Load and Save methods.
func WithStore(store matio.Store) Option {
	return func(b *BPOD) { b.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *BPOD) { b.logger = logger }
}

// WithIndexFrom sets the number of the first mode, 1 by default.
func WithIndexFrom(index int) Option {
	return func(b *BPOD) { b.indexFrom = index }
}

// New returns a BPOD computing with ops. A nil ops is serial with the
// Euclidean inner product.
func New(ops *vecops.Ops, opts ...Option) *BPOD {
	if ops == nil {
		ops = vecops.NewOps()
	}
	if ops.Coordinator == nil {
		ops.Coordinator = parallel.Default()
	}
	b := &BPOD{ops: ops, logger: logrus.New(), indexFrom: 1}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithField("rank", ops.Coordinator.Rank())
	return b
}

// ComputeDecomp assembles the correlation matrix Y^T X of adjoint snapshots
// Y and direct snapshots X and factors it.
func (b *BPOD) ComputeDecomp(ctx context.Context, direct, adjoint vecops.Sequence) (*Decomposition, error) {
	if direct == nil || adjoint == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "direct and adjoint snapshots are required")
	}
	b.logger.WithField("action", "bpod_correlation").
		Debugf("computing %dx%d correlation matrix", adjoint.Len(), direct.Len())
	correlation, err := hankel.Correlation(ctx, b.ops, direct, adjoint)
	if err != nil {
		return nil, errors.Wrap(err, "correlation matrix")
	}
	return b.ComputeSVD(ctx, correlation)
}

// ComputeSVD factors an already assembled correlation matrix. The SVD runs
// on rank zero and is broadcast to every worker.
func (b *BPOD) ComputeSVD(ctx context.Context, correlation *mat.Dense) (*Decomposition, error) {
	if correlation == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "correlation matrix is not computed")
	}
	triple, err := factor.SVDOnLeader(ctx, b.ops.Coordinator, correlation)
	if err != nil {
		return nil, errors.Wrap(err, "SVD of correlation matrix")
	}
	b.logger.WithFields(logrus.Fields{
		"action":     "bpod_svd",
		"num_states": triple.Rank(),
	}).Debugf("largest singular value %g", triple.Values[0])
	return &Decomposition{
		Correlation: correlation,
		L:           triple.U,
		SingVals:    triple.Values,
		R:           triple.V,
	}, nil
}

// ComputeDirectModes returns the direct modes numbered modeNums, in the
// order given. Mode k is the combination of the direct snapshots weighted by
// column k - indexFrom of DirectBuildCoeffs.
func (b *BPOD) ComputeDirectModes(ctx context.Context, d *Decomposition, modeNums []int, direct vecops.Sequence) ([]*mat.VecDense, error) {
	coeffs, err := d.DirectBuildCoeffs()
	if err != nil {
		return nil, err
	}
	if direct == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "direct snapshots are required")
	}
	return b.computeModes(ctx, d, coeffs, modeNums, direct)
}

// ComputeAdjointModes returns the adjoint modes numbered modeNums, in the
// order given.
func (b *BPOD) ComputeAdjointModes(ctx context.Context, d *Decomposition, modeNums []int, adjoint vecops.Sequence) ([]*mat.VecDense, error) {
	coeffs, err := d.AdjointBuildCoeffs()
	if err != nil {
		return nil, err
	}
	if adjoint == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "adjoint snapshots are required")
	}
	return b.computeModes(ctx, d, coeffs, modeNums, adjoint)
}

func (b *BPOD) computeModes(ctx context.Context, d *Decomposition, coeffs *mat.Dense, modeNums []int, seq vecops.Sequence) ([]*mat.VecDense, error) {
	columns := make([]int, len(modeNums))
	for index, num := range modeNums {
		k := num - b.indexFrom
		if k < 0 || k >= d.NumStates() {
			return nil, errors.Wrapf(modred.ErrIndex, "mode %d outside [%d, %d)", num, b.indexFrom, b.indexFrom+d.NumStates())
		}
		if d.SingVals[k] <= 0 {
			return nil, errors.Wrapf(modred.ErrNumerical, "mode %d has zero singular value", num)
		}
		columns[index] = k
	}
	if r, _ := coeffs.Dims(); r != seq.Len() {
		return nil, errors.Wrapf(modred.ErrData, "decomposition is for %d snapshots, got %d", r, seq.Len())
	}
	b.logger.WithField("action", "bpod_modes").Debugf("computing %d modes", len(columns))
	return b.ops.LinearCombinations(ctx, seq, coeffs, columns)
}

func (b *BPOD) requireStore() error {
	if b.store == nil {
		return errors.Wrap(modred.ErrConfiguration, "no matrix store configured")
	}
	return nil
}

type decompWire struct {
	L        parallel.Matrix `msgpack:"l"`
	SingVals []float64       `msgpack:"sing_vals"`
	R        parallel.Matrix `msgpack:"r"`
}

// LoadDecomp loads L, the singular values and R on rank zero and broadcasts
// them.
func (b *BPOD) LoadDecomp(ctx context.Context, lSrc, singValsSrc, rSrc string) (*Decomposition, error) {
	if err := b.requireStore(); err != nil {
		return nil, err
	}
	wire, err := parallel.RunOnLeaderAndBroadcast(ctx, b.ops.Coordinator, func() (decompWire, error) {
		l, err := b.store.Load(lSrc)
		if err != nil {
			return decompWire{}, err
		}
		sv, err := b.store.Load(singValsSrc)
		if err != nil {
			return decompWire{}, err
		}
		values, err := matio.Values(sv)
		if err != nil {
			return decompWire{}, err
		}
		r, err := b.store.Load(rSrc)
		if err != nil {
			return decompWire{}, err
		}
		return decompWire{L: parallel.Matrix{Dense: l}, SingVals: values, R: parallel.Matrix{Dense: r}}, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load decomposition")
	}
	return &Decomposition{L: wire.L.Dense, SingVals: wire.SingVals, R: wire.R.Dense}, nil
}

// SaveDecomp writes L, the singular values and R from rank zero.
func (b *BPOD) SaveDecomp(ctx context.Context, d *Decomposition, lDst, singValsDst, rDst string) error {
	if err := b.requireStore(); err != nil {
		return err
	}
	if d == nil || d.L == nil || d.R == nil || len(d.SingVals) == 0 {
		return errors.Wrap(modred.ErrUndefinedState, "decomposition is not computed")
	}
	return parallel.Save(ctx, b.ops.Coordinator, func() error {
		if err := b.store.Save(d.L, lDst); err != nil {
			return err
		}
		if err := b.store.Save(matio.Column(d.SingVals), singValsDst); err != nil {
			return err
		}
		return b.store.Save(d.R, rDst)
	})
}

// SaveCorrelation writes the correlation matrix from rank zero.
func (b *BPOD) SaveCorrelation(ctx context.Context, d *Decomposition, dst string) error {
	if err := b.requireStore(); err != nil {
		return err
	}
	if d == nil || d.Correlation == nil {
		return errors.Wrap(modred.ErrUndefinedState, "correlation matrix is not computed")
	}
	return parallel.Save(ctx, b.ops.Coordinator, func() error {
		return b.store.Save(d.Correlation, dst)
	})
}

// SaveSingVals writes only the singular values from rank zero.
func (b *BPOD) SaveSingVals(ctx context.Context, d *Decomposition, dst string) error {
	if err := b.requireStore(); err != nil {
		return err
	}
	if d.NumStates() == 0 {
		return errors.Wrap(modred.ErrUndefinedState, "singular values are not computed")
	}
	return parallel.Save(ctx, b.ops.Coordinator, func() error {
		return b.store.Save(matio.Column(d.SingVals), dst)
	})
}

// PutModes writes modes[i] to the destination pattern filled with
// modeNums[i], e.g. "direct_mode_%03d.txt".
func (b *BPOD) PutModes(ctx context.Context, modes []*mat.VecDense, modeNums []int, pattern string) error {
	if err := b.requireStore(); err != nil {
		return err
	}
	if len(modes) != len(modeNums) {
		return errors.Wrapf(modred.ErrData, "%d modes for %d mode numbers", len(modes), len(modeNums))
	}
	dsts := make([]string, len(modeNums))
	for index, num := range modeNums {
		dst, err := matio.Expand(pattern, num)
		if err != nil {
			return err
		}
		dsts[index] = dst
	}
	return parallel.Save(ctx, b.ops.Coordinator, func() error {
		for index, mode := range modes {
			if err := b.store.Save(matio.Column(mat.Col(nil, 0, mode)), dsts[index]); err != nil {
				return err
			}
		}
		return nil
	})
}
