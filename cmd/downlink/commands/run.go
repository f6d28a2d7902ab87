package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/downlink/internal/config"
	"github.com/dyluth/downlink/internal/distributor"
	"github.com/dyluth/downlink/internal/health"
	"github.com/dyluth/downlink/internal/logging"
	"github.com/dyluth/downlink/internal/metrics"
	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/processor"
	"github.com/dyluth/downlink/internal/store"
	"github.com/dyluth/downlink/pkg/status"
)

type runOptions struct {
	noRedis bool
	watch   []string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process input streams through the configured pipeline",
		Long: `Process every configured input stream through its own copy of the
configured pipeline until the inputs are exhausted or the process is
interrupted.

While running, status snapshots are published to Redis every status
interval and clear requests from clients are applied. The health server
exposes /healthz and /metrics.

Examples:
  # Run with Redis publishing and the health server
  downlink run --config downlink.yml

  # Run standalone, printing one counter as it changes
  downlink run -c downlink.yml --no-redis --watch "path.vc42.Missing VCDUs"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd, global, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noRedis, "no-redis", false, "Do not publish status to Redis")
	cmd.Flags().StringArrayVar(&opts.watch, "watch", nil, "Print an item id's value every status interval (repeatable)")
	return cmd
}

func runProcessor(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if global.configPath == "" {
		return printer.Error(cmd.ErrOrStderr(),
			"configuration required",
			"The run command needs a pipeline configuration.",
			[]string{"Pass one:\n  downlink run --config downlink.yml"},
		)
	}

	cfg, err := config.Load(global.configPath)
	if err != nil {
		return printer.ErrorWithContext(cmd.ErrOrStderr(),
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": global.configPath},
			nil,
		)
	}
	global.overrideRedis(cmd, cfg.Redis)

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer logger.Sync()

	collector := metrics.NewCollector("downlink", logger)
	procOpts := []processor.Option{
		processor.WithLogger(logger),
		processor.WithMetrics(collector),
	}

	var client *store.Client
	if !opts.noRedis {
		client, err = openStore(cmd, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		procOpts = append(procOpts, processor.WithStore(client))
	}

	proc, err := processor.New(cfg, procOpts...)
	if err != nil {
		return printer.ErrorWithContext(cmd.ErrOrStderr(),
			"pipeline assembly failed",
			err.Error(),
			map[string]string{"Config": global.configPath},
			nil,
		)
	}
	defer proc.Close()

	if !cfg.Health.Disabled {
		var pinger health.Pinger
		if client != nil {
			pinger = client
		}
		server := health.NewServer(cfg.Health.Addr, pinger, proc, collector, logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	if len(opts.watch) > 0 {
		d := distributor.New(proc.Registry(),
			distributor.WithInterval(cfg.Status.Interval),
			distributor.WithLogger(logger),
			distributor.WithMetrics(collector),
		)
		listener := distributor.NewFuncListener(func(item *status.Item, id string) {
			printer.Delivery(out, time.Now(), id, item.Value())
		})
		for _, id := range opts.watch {
			if err := d.RequestDelivery(listener, id); err != nil {
				return printer.Error(cmd.ErrOrStderr(),
					"invalid item id",
					err.Error(),
					[]string{"Item ids have the form {type}.{name}.{item}, e.g. path.vc42.Idle VCDUs"},
				)
			}
		}
		if err := d.Start(ctx); err != nil {
			return err
		}
		defer d.Stop()
	}

	printer.Step(out, "processing %d stream(s) with configuration '%s'\n", len(cfg.Streams), cfg.Name)

	if err := proc.Run(ctx); err != nil {
		logger.Error("processing failed", zap.Error(err))
		return printer.Error(cmd.ErrOrStderr(),
			"processing failed",
			err.Error(),
			nil,
		)
	}

	printer.Success(out, "processing of '%s' complete\n", cfg.Name)
	if client != nil {
		printer.Info(out, "Status remains available to clients:\n  downlink status --instance %s\n", client.InstanceName())
	}
	return nil
}
