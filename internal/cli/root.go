package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/cfg"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/inspect"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/logger"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/metrics"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/privilege"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
)

const serviceName = "pageinspect"

var version = "0.1.0"

// app is what the subcommands share once the root command validated the environment.
type app struct {
	pid       int
	config    cfg.Config
	logger    *zap.Logger
	inspector *inspect.Inspector
}

func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pageinspect",
		Short: "Inspect the physical memory backing of a process",
		Long: `pageinspect reads /proc/<pid>/maps and /proc/<pid>/pagemap of a running process
and reports which page frames or swap slots back its virtual pages.

Every invocation is a single point-in-time snapshot. Reading another process
pagemap requires root.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().IntVarP(&a.pid, "pid", "p", 0, "pid of the process to inspect")
	_ = root.MarkPersistentFlagRequired("pid")

	root.AddCommand(
		newListCommand(a),
		newStatsCommand(a),
		newRangesCommand(a),
	)
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("pageinspect version %s\n", root.Version))

	return root
}

func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	config, err := cfg.Parse()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := privilege.Check(config.RequireRoot); err != nil {
		return err
	}

	l, err := logger.NewLogger(ctx, logger.LoggerConfig{
		ServiceName:   serviceName,
		IsDevelopment: config.Debug,
		IsDebug:       config.Debug,
		InitialFields: []zap.Field{zap.Int("target_pid", a.pid)},
		Output:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	// gopsutil always looks at the host procfs.
	if config.ProcRoot == procfs.DefaultRoot {
		if err := privilege.CheckProcess(ctx, a.pid); err != nil {
			return err
		}
	}

	m, err := metrics.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	a.config = config
	a.logger = l
	a.inspector = inspect.New(inspect.Config{
		ProcRoot:   config.ProcRoot,
		PageSize:   config.PageSize,
		Workers:    config.Workers,
		BatchPages: config.BatchPages,
		Logger:     l,
		Metrics:    m,
	})

	l.Debug("starting",
		zap.String("proc_root", config.ProcRoot),
		zap.Uint64("page_size", config.PageSize),
		zap.Int("workers", config.Workers),
	)

	return nil
}
