package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/distributor"
	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/watch"
)

type watchOptions struct {
	interval     time.Duration
	count        int
	outputFormat string
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <item-id>...",
		Short: "Print status item values as they are published",
		Long: `Poll a processor's published status every interval and print the current
value of each requested item.

Item ids have the form {type}.{name}.{item}. Requesting the same id twice
delivers it once.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch idle and missing frame counts on virtual channel 42
  downlink watch "path.vc42.Idle VCDUs" "path.vc42.Missing VCDUs" -n aqua

  # Take ten readings two seconds apart as JSON
  downlink watch "sink.out.Frames Written" -n aqua --interval 2s --count 10 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, global, opts, args)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", distributor.DefaultInterval, "Polling interval (minimum 1s)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Stop after this many deliveries (0 = until interrupted)")
	cmd.Flags().StringVarP(&opts.outputFormat, "output", "o", "default", "Output format (default or json)")
	return cmd
}

func runWatch(cmd *cobra.Command, global *globalOptions, opts *watchOptions, ids []string) error {
	// Validate output format
	var outputFormat watch.OutputFormat
	switch opts.outputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(cmd.ErrOrStderr(),
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", opts.outputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	if opts.interval < distributor.MinInterval {
		return printer.Error(cmd.ErrOrStderr(),
			"invalid interval",
			"The polling interval must be at least 1s.",
			nil,
		)
	}

	client, err := global.connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	d := distributor.New(client, distributor.WithInterval(opts.interval))
	if err := watch.StreamDeliveries(cmd.Context(), d, ids, outputFormat, opts.count, cmd.OutOrStdout()); err != nil {
		return printer.Error(cmd.ErrOrStderr(),
			"watch failed",
			err.Error(),
			[]string{"Item ids have the form {type}.{name}.{item}, e.g. path.vc42.Idle VCDUs"},
		)
	}
	return nil
}
