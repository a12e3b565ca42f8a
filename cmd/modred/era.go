package main

import (
	"context"
	"os"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/era"
	"github.com/JIMMY-KSU/modred/hankel"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/JIMMY-KSU/modred/plotting"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

type eraFlags struct {
	markovs   string
	numStates int
	outputs   int
	inputs    int
	uniform   bool
	out       string
	decomp    bool
	plot      string
}

func newERACmd(o *options) *cobra.Command {
	f := &eraFlags{}
	cmd := &cobra.Command{
		Use:   "era",
		Short: "Realize a reduced-order model from impulse response data",
		Long: `Reads a table whose first column is the sample time and whose remaining
outputs*inputs columns are the impulse responses, and writes the matrices
A, B and C of a reduced-order model with the requested number of states.

Without --uniform the samples must be at dt*[0, 1, P, P+1, 2P, 2P+1, ...].
With --uniform they are at dt*[0, 1, 2, 3, ...] and are converted first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runERA(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.markovs, "markovs", "", "impulse response table")
	cmd.Flags().IntVarP(&f.numStates, "num-states", "n", 0, "number of states of the model (overrides config)")
	cmd.Flags().IntVar(&f.outputs, "outputs", 1, "number of outputs")
	cmd.Flags().IntVar(&f.inputs, "inputs", 1, "number of inputs")
	cmd.Flags().BoolVar(&f.uniform, "uniform", false, "samples are uniformly spaced in time")
	cmd.Flags().StringVarP(&f.out, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&f.decomp, "decomp", false, "also write the Hankel matrices and their SVD")
	cmd.Flags().StringVar(&f.plot, "plot", "", "plot the Hankel singular values to this file")
	_ = cmd.MarkFlagRequired("markovs")
	return cmd
}

func (o *options) runERA(ctx context.Context, f *eraFlags) error {
	numStates := f.numStates
	if numStates == 0 {
		numStates = o.cfg.ERA.NumStates
	}
	if numStates < 1 {
		return errors.Wrap(modred.ErrConfiguration, "number of states is required, set --num-states or era.num_states")
	}
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", f.out)
	}

	return o.spmd(ctx, func(ctx context.Context, c *parallel.Coordinator) error {
		logger := o.logger.WithFields(logrus.Fields{"action": "era", "rank": c.Rank()})
		table, err := parallel.Load(ctx, c, func() (*mat.Dense, error) {
			return o.store.Load(f.markovs)
		})
		if err != nil {
			return err
		}
		times, markovs, err := hankel.FromSignals(table, f.outputs, f.inputs)
		if err != nil {
			return err
		}
		if f.uniform {
			var dt float64
			_, markovs, dt, err = hankel.MakeSampledFormat(times, markovs, o.cfg.ERA.DtTol)
			if err != nil {
				return err
			}
			logger.Debugf("converted uniform samples with time step %g", dt)
		}

		e := era.New(
			era.WithCoordinator(c),
			era.WithStore(o.store),
			era.WithLogger(logger),
			era.WithBlockCounts(o.cfg.ERA.Mo, o.cfg.ERA.Mc),
			era.WithVerbose(*o.cfg.ERA.Verbose),
		)
		rom, err := e.ComputeROM(ctx, markovs, numStates)
		if err != nil {
			return err
		}
		if err := e.PutROM(ctx, rom, o.path(f.out, "A"), o.path(f.out, "B"), o.path(f.out, "C")); err != nil {
			return err
		}
		if err := e.PutSingVals(ctx, rom, o.path(f.out, "sing_vals")); err != nil {
			return err
		}
		if f.decomp {
			err := e.PutDecomp(ctx, rom,
				o.path(f.out, "H"), o.path(f.out, "H2"),
				o.path(f.out, "L"), o.path(f.out, "sing_vals"), o.path(f.out, "R"))
			if err != nil {
				return err
			}
		}
		if f.plot != "" {
			return parallel.Save(ctx, c, func() error {
				return plotting.SingularValues(rom.Decomposition.SingVals, "Hankel singular values", f.plot)
			})
		}
		return nil
	})
}
