// Package era forms reduced-order models of discrete time systems from
// impulse response data with the eigensystem realization algorithm (Ma et
// al. 2011).
//
// The Markov parameters are expected in the time sampled format
// dt*[0, 1, P, P+1, 2P, 2P+1, ...]; P=2 gives dt*[0, 1, 2, 3, ...], see
// hankel.MakeSampledFormat.
//
// The impulse of a discrete time system acts over an interval dt and so has
// integral dt rather than 1. The reduced B is therefore off by a factor of
// dt; callers that need a physical time step multiply B by dt themselves.
package era

import (
	"context"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/factor"
	"github.com/JIMMY-KSU/modred/gonumExtensions"
	"github.com/JIMMY-KSU/modred/hankel"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/JIMMY-KSU/modred/ssm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ERA holds the configuration of a realization. Results live in ROM values.
type ERA struct {
	coordinator *parallel.Coordinator
	store       matio.Store
	logger      logrus.FieldLogger
	mo, mc      int
	verbose     bool
}

// Option configures an ERA.
type Option func(*ERA)

// WithCoordinator sets the worker coordinator, serial by default.
func WithCoordinator(c *parallel.Coordinator) Option {
	return func(e *ERA) { e.coordinator = c }
}

// WithStore sets the matrix store used by the Put methods.
func WithStore(store matio.Store) Option {
	return func(e *ERA) { e.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *ERA) { e.logger = logger }
}

// WithBlockCounts sets the number of Markov parameters in the observable
// (mo) and controllable (mc) dimensions of the Hankel matrix. Zero selects
// the balanced default.
func WithBlockCounts(mo, mc int) Option {
	return func(e *ERA) { e.mo, e.mc = mo, mc }
}

// WithVerbose toggles the non-essential warnings such as the unstable
// model advisory.
func WithVerbose(verbose bool) Option {
	return func(e *ERA) { e.verbose = verbose }
}

// New returns an ERA.
func New(opts ...Option) *ERA {
	e := &ERA{logger: logrus.New(), verbose: true}
	for _, opt := range opts {
		opt(e)
	}
	if e.coordinator == nil {
		e.coordinator = parallel.Default()
	}
	e.logger = e.logger.WithField("rank", e.coordinator.Rank())
	return e
}

// Decomposition holds the Hankel matrices and the SVD
//
// H = L diag(SingVals) R^T
type Decomposition struct {
	Hankel   *hankel.Hankel
	L        *mat.Dense
	SingVals []float64
	R        *mat.Dense
}

// ROM is a reduced-order model together with the decomposition it was
// realized from.
type ROM struct {
	System        *ssm.LinearSystem
	Decomposition *Decomposition
}

// A, B and C return the model matrices.
func (r *ROM) A() mat.Matrix { return r.System.A }
func (r *ROM) B() mat.Matrix { return r.System.B }
func (r *ROM) C() mat.Matrix { return r.System.C }

// ComputeROM realizes a model with numStates states from markovs. An odd
// number of time steps is trimmed by one. The SVD runs on rank zero and is
// broadcast, so every worker returns the same model.
func (e *ERA) ComputeROM(ctx context.Context, markovs *hankel.Markovs, numStates int) (*ROM, error) {
	if markovs == nil {
		return nil, errors.Wrap(modred.ErrUndefinedState, "Markov parameters are required")
	}
	if numStates < 1 {
		return nil, errors.Wrapf(modred.ErrConfiguration, "number of states must be positive, got %d", numStates)
	}
	markovs = markovs.Trim()
	steps, outputs, inputs := markovs.Dims()

	h, err := hankel.Assemble(markovs, e.mo, e.mc)
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{
		"action": "era_hankel",
		"shape":  []int{h.Mo * outputs, h.Mc * inputs},
	}).Debugf("assembled Hankel matrices from %d time steps, mo=%d mc=%d", steps, h.Mo, h.Mc)

	triple, err := factor.SVDOnLeader(ctx, e.coordinator, h.H)
	if err != nil {
		return nil, errors.Wrap(err, "SVD of Hankel matrix")
	}
	truncated, err := triple.Truncate(numStates)
	if err != nil {
		return nil, err
	}
	for index, v := range truncated.Values {
		if v <= 0 {
			return nil, errors.Wrapf(modred.ErrNumerical,
				"singular value %d is zero, the Hankel matrix has rank below %d", index, numStates)
		}
	}

	sys := realize(h, truncated, outputs, inputs)
	e.checkStability(sys, numStates)

	return &ROM{
		System: sys,
		Decomposition: &Decomposition{
			Hankel:   h,
			L:        triple.U,
			SingVals: triple.Values,
			R:        triple.V,
		},
	}, nil
}

// realize builds
//
// A = Er^-1/2 Ur^T H2 Vr Er^-1/2
//
// B = Er^1/2 (Vr^T)[:, :inputs]
//
// C = Ur[:outputs, :] Er^1/2
func realize(h *hankel.Hankel, t *factor.Triple, outputs, inputs int) *ssm.LinearSystem {
	invSqrt := gonumExtensions.DiagPow(t.Values, -0.5)
	sqrt := gonumExtensions.DiagPow(t.Values, 0.5)

	var tmp1, tmp2, A mat.Dense
	tmp1.Mul(invSqrt, t.U.T())
	tmp2.Mul(&tmp1, h.H2)
	tmp1.Reset()
	tmp1.Mul(&tmp2, t.V)
	A.Mul(&tmp1, invSqrt)

	var B mat.Dense
	B.Mul(sqrt, gonumExtensions.LeadingRows(t.V, inputs).T())

	var C mat.Dense
	C.Mul(gonumExtensions.LeadingRows(t.U, outputs), sqrt)

	return ssm.NewLinearSystem(&A, &B, &C)
}

// checkStability warns if A has an eigenvalue on or outside the unit
// circle. Truncation and sampling can produce such eigenvalues for a stable
// system, so this is advisory only.
func (e *ERA) checkStability(sys *ssm.LinearSystem, numStates int) {
	if !e.verbose {
		return
	}
	logger := e.logger.WithFields(logrus.Fields{"action": "era_stability", "num_states": numStates})
	radius, err := sys.SpectralRadius()
	if err != nil {
		logger.WithError(err).Warn("could not compute eigenvalues of ROM matrix A")
		return
	}
	if radius >= 1 {
		logger.Warnf("unstable eigenvalues of ROM matrix A, spectral radius %g", radius)
	}
}

// ComputeERAROM realizes a model with numStates states using the default
// settings and returns A, B and C.
func ComputeERAROM(markovs *hankel.Markovs, numStates int) (A, B, C mat.Matrix, err error) {
	rom, err := New().ComputeROM(context.Background(), markovs, numStates)
	if err != nil {
		return nil, nil, nil, err
	}
	return rom.A(), rom.B(), rom.C(), nil
}

func (e *ERA) requireStore() error {
	if e.store == nil {
		return errors.Wrap(modred.ErrConfiguration, "no matrix store configured")
	}
	return nil
}

// PutROM writes A, B and C from rank zero.
func (e *ERA) PutROM(ctx context.Context, rom *ROM, aDst, bDst, cDst string) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	if rom == nil || rom.System == nil {
		return errors.Wrap(modred.ErrUndefinedState, "model is not computed")
	}
	err := parallel.Save(ctx, e.coordinator, func() error {
		for _, put := range []struct {
			m   mat.Matrix
			dst string
		}{{rom.A(), aDst}, {rom.B(), bDst}, {rom.C(), cDst}} {
			if err := e.store.Save(put.m, put.dst); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && e.verbose && e.coordinator.IsRankZero() {
		e.logger.WithField("action", "era_put_rom").Infof("put ROM matrices to %s, %s, %s", aDst, bDst, cDst)
	}
	return err
}

// PutDecomp writes both Hankel matrices and the SVD from rank zero.
func (e *ERA) PutDecomp(ctx context.Context, rom *ROM, hDst, h2Dst, lDst, singValsDst, rDst string) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	if rom == nil || rom.Decomposition == nil {
		return errors.Wrap(modred.ErrUndefinedState, "decomposition is not computed")
	}
	d := rom.Decomposition
	return parallel.Save(ctx, e.coordinator, func() error {
		for _, put := range []struct {
			m   mat.Matrix
			dst string
		}{
			{d.Hankel.H, hDst},
			{d.Hankel.H2, h2Dst},
			{d.L, lDst},
			{matio.Column(d.SingVals), singValsDst},
			{d.R, rDst},
		} {
			if err := e.store.Save(put.m, put.dst); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutSingVals writes only the singular values from rank zero.
func (e *ERA) PutSingVals(ctx context.Context, rom *ROM, dst string) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	if rom == nil || rom.Decomposition == nil {
		return errors.Wrap(modred.ErrUndefinedState, "decomposition is not computed")
	}
	return parallel.Save(ctx, e.coordinator, func() error {
		return e.store.Save(matio.Column(rom.Decomposition.SingVals), dst)
	})
}
