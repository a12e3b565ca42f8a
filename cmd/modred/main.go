// Command modred computes reduced-order models from impulse response data
// (ERA) and balanced modes from snapshot files (BPOD).
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/JIMMY-KSU/modred/config"
	"github.com/JIMMY-KSU/modred/matio"
	"github.com/JIMMY-KSU/modred/parallel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// options are shared by every command. They are filled in by the persistent
// pre-run of the root command.
type options struct {
	configPath string
	workers    int
	logLevel   string

	cfg    *config.Config
	logger *logrus.Logger
	store  matio.Store
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "modred",
		Short:         "Model reduction with ERA and BPOD",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().IntVarP(&o.workers, "workers", "w", 0, "number of workers (overrides config)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(newERACmd(o))
	root.AddCommand(newBPODCmd(o))
	root.AddCommand(newImpulseCmd(o))
	root.AddCommand(newVersionCmd())
	return root
}

func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = o.workers
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = cfg.Logger()
	o.logger.SetOutput(cmd.ErrOrStderr())
	o.store = cfg.Store()
	return nil
}

// spmd runs program on every worker, each with its own coordinator.
func (o *options) spmd(ctx context.Context, program func(ctx context.Context, c *parallel.Coordinator) error) error {
	if o.cfg.Workers <= 1 {
		return program(ctx, parallel.NewCoordinator(parallel.Serial(), o.logger))
	}
	o.logger.WithField("action", "spmd").Debugf("starting %d workers", o.cfg.Workers)
	g := parallel.NewLocalGroup(o.cfg.Workers)
	return g.Run(ctx, func(ctx context.Context, comm parallel.Comm) error {
		return program(ctx, parallel.NewCoordinator(comm, o.logger))
	})
}

// path returns the file name for a matrix written to dir.
func (o *options) path(dir, name string) string {
	ext := ".txt"
	if o.cfg.Storage.Format == "binary" {
		ext = ".bin"
	}
	return filepath.Join(dir, name+ext)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("modred %s\n", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("modred failed")
		stop()
		os.Exit(1)
	}
}
