package main

import (
	"github.com/JIMMY-KSU/modred"
	"github.com/JIMMY-KSU/modred/hankel"
	"github.com/JIMMY-KSU/modred/ode"
	"github.com/JIMMY-KSU/modred/ssm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

type impulseFlags struct {
	a, b, c string
	dt      float64
	steps   int
	method  string
	tol     float64
	out     string
}

func newImpulseCmd(o *options) *cobra.Command {
	f := &impulseFlags{}
	cmd := &cobra.Command{
		Use:   "impulse",
		Short: "Sample the impulse response of a continuous time model",
		Long: `Reads --state A, --input B and --output C of dx/dt = A x + B u, y = C x
and writes the impulse response sampled at dt*[0, 1, 2, ...] as a table that
era reads with --uniform. The response is computed from exp(A dt) with --method exp or
integrated with --method rk45.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runImpulse(f)
		},
	}
	cmd.Flags().StringVar(&f.a, "state", "", "state matrix A")
	cmd.Flags().StringVar(&f.b, "input", "", "input matrix B")
	cmd.Flags().StringVar(&f.c, "output", "", "output matrix C")
	cmd.Flags().Float64Var(&f.dt, "dt", 0, "sample interval")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "number of samples")
	cmd.Flags().StringVar(&f.method, "method", "exp", "exp or rk45")
	cmd.Flags().Float64Var(&f.tol, "tol", 1e-10, "local error tolerance of rk45")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "impulse response table")
	for _, name := range []string{"state", "input", "output", "dt", "steps", "out"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (o *options) runImpulse(f *impulseFlags) error {
	if f.dt <= 0 || f.steps < 2 {
		return errors.Wrapf(modred.ErrConfiguration, "need dt > 0 and at least two steps, got dt=%g steps=%d", f.dt, f.steps)
	}
	var matrices [3]*mat.Dense
	for index, src := range []string{f.a, f.b, f.c} {
		m, err := o.store.Load(src)
		if err != nil {
			return err
		}
		matrices[index] = m
	}
	sys, err := newContinuousSystem(matrices[0], matrices[1], matrices[2])
	if err != nil {
		return err
	}

	times := make([]float64, f.steps)
	for index := range times {
		times[index] = f.dt * float64(index)
	}
	var markovs *hankel.Markovs
	switch f.method {
	case "exp":
		steps := make([]int, f.steps)
		for index := range steps {
			steps[index] = index
		}
		markovs, err = sys.Discretize(f.dt).ImpulseResponse(steps)
	case "rk45":
		markovs, err = sys.ImpulseResponse(ode.NewFehlberg45(), times, f.tol)
	default:
		return errors.Wrapf(modred.ErrConfiguration, "unknown method %q", f.method)
	}
	if err != nil {
		return err
	}

	_, outputs, inputs := markovs.Dims()
	table := mat.NewDense(f.steps, 1+outputs*inputs, nil)
	for step, tm := range times {
		table.Set(step, 0, tm)
		param := markovs.At(step)
		for output := 0; output < outputs; output++ {
			for input := 0; input < inputs; input++ {
				table.Set(step, 1+output*inputs+input, param.At(output, input))
			}
		}
	}
	o.logger.WithField("action", "impulse").Infof("writing %d samples of %d outputs x %d inputs to %s", f.steps, outputs, inputs, f.out)
	return o.store.Save(table, f.out)
}

// newContinuousSystem turns the dimension panic of ssm into a data error.
func newContinuousSystem(A, B, C mat.Matrix) (sys *ssm.ContinuousSystem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(modred.ErrData, "%v", r)
		}
	}()
	return ssm.NewContinuousSystem(A, B, C), nil
}
