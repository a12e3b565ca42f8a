package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/bpod"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/JIMMY-KSU/modred/plotting"
	"github.com/JIMMY-KSU/modred/vecops"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type bpodFlags struct {
	direct  string
	adjoint string
	modes   []int
	out     string
	plot    string
}

func newBPODCmd(o *options) *cobra.Command {
	f := &bpodFlags{}
	cmd := &cobra.Command{
		Use:   "bpod",
		Short: "Compute balanced direct and adjoint modes from snapshot files",
		Long: `Reads direct and adjoint snapshots, one vector per file, computes the
balanced proper orthogonal decomposition of their correlation matrix and
writes the requested direct and adjoint modes.

Snapshots are taken in the lexical order of the file names matched by the
glob patterns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBPOD(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.direct, "direct", "", "glob of direct snapshot files")
	cmd.Flags().StringVar(&f.adjoint, "adjoint", "", "glob of adjoint snapshot files")
	cmd.Flags().IntSliceVarP(&f.modes, "modes", "m", nil, "mode numbers to compute, all modes with a nonzero singular value by default")
	cmd.Flags().StringVarP(&f.out, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&f.plot, "plot", "", "plot the singular values to this file")
	_ = cmd.MarkFlagRequired("direct")
	_ = cmd.MarkFlagRequired("adjoint")
	return cmd
}

func glob(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(modred.ErrConfiguration, "pattern %q: %v", pattern, err)
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(modred.ErrData, "no snapshots match %q", pattern)
	}
	return paths, nil
}

func (o *options) runBPOD(ctx context.Context, f *bpodFlags) error {
	directPaths, err := glob(f.direct)
	if err != nil {
		return err
	}
	adjointPaths, err := glob(f.adjoint)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", f.out)
	}
	direct := vecops.FileSequence{Store: o.store, Paths: directPaths}
	adjoint := vecops.FileSequence{Store: o.store, Paths: adjointPaths}
	indexFrom := *o.cfg.BPOD.IndexFrom

	return o.spmd(ctx, func(ctx context.Context, c *parallel.Coordinator) error {
		logger := o.logger.WithFields(logrus.Fields{"action": "bpod", "rank": c.Rank()})
		ops := &vecops.Ops{
			Coordinator:       c,
			InnerProduct:      vecops.Euclidean,
			MaxVectorsPerNode: o.cfg.BPOD.MaxVectorsPerNode,
		}
		b := bpod.New(ops, bpod.WithStore(o.store), bpod.WithLogger(logger), bpod.WithIndexFrom(indexFrom))

		d, err := b.ComputeDecomp(ctx, direct, adjoint)
		if err != nil {
			return err
		}
		if err := b.SaveDecomp(ctx, d, o.path(f.out, "L"), o.path(f.out, "sing_vals"), o.path(f.out, "R")); err != nil {
			return err
		}
		if err := b.SaveCorrelation(ctx, d, o.path(f.out, "correlation")); err != nil {
			return err
		}

		modeNums := f.modes
		if len(modeNums) == 0 {
			for k, v := range d.SingVals {
				if v > 0 {
					modeNums = append(modeNums, k+indexFrom)
				}
			}
		}
		directModes, err := b.ComputeDirectModes(ctx, d, modeNums, direct)
		if err != nil {
			return err
		}
		if err := b.PutModes(ctx, directModes, modeNums, o.path(f.out, "direct_mode_%03d")); err != nil {
			return err
		}
		adjointModes, err := b.ComputeAdjointModes(ctx, d, modeNums, adjoint)
		if err != nil {
			return err
		}
		if err := b.PutModes(ctx, adjointModes, modeNums, o.path(f.out, "adjoint_mode_%03d")); err != nil {
			return err
		}
		logger.Debugf("computed %d direct and adjoint modes", len(modeNums))

		if f.plot != "" {
			return parallel.Save(ctx, c, func() error {
				return plotting.SingularValues(d.SingVals, "BPOD singular values", f.plot)
			})
		}
		return nil
	})
}
