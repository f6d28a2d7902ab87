package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/filter"
	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/store"
	"github.com/dyluth/downlink/internal/watch"
	"github.com/dyluth/downlink/pkg/status"
)

func newStatusCmd(global *globalOptions) *cobra.Command {
	var (
		outputFormat string
		wait         time.Duration
		criteria     filter.Criteria
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest published status of a processor",
		Long: `Show every status block and item from the latest snapshot a processor
published, with the processor's configuration name and processing state.

Output Formats:
  table - Human-readable table (default)
  jsonl - One JSON status block per line

Examples:
  downlink status --instance aqua
  downlink status --config downlink.yml --output jsonl

  # Only the virtual channel paths' missing frame counts
  downlink status --instance aqua --block 'path.*' --item 'Missing*'

  # Wait up to 30s for a freshly started processor to publish
  downlink status --instance aqua --wait 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFormat != "table" && outputFormat != "jsonl" {
				return printer.Error(cmd.ErrOrStderr(),
					"invalid output format",
					fmt.Sprintf("Unknown format: %s", outputFormat),
					[]string{"Valid formats: table, jsonl"},
				)
			}

			if err := criteria.Validate(); err != nil {
				return printer.Error(cmd.ErrOrStderr(),
					"invalid filter pattern",
					err.Error(),
					[]string{"Patterns use shell glob syntax, e.g. --block 'path.*'"},
				)
			}

			client, err := global.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			return showStatus(cmd, client, outputFormat, wait, &criteria)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table or jsonl)")
	cmd.Flags().StringVar(&criteria.BlockGlob, "block", "", "Only show blocks whose id matches this glob")
	cmd.Flags().StringVar(&criteria.ItemGlob, "item", "", "Only show items whose name matches this glob")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for a snapshot to be published")
	return cmd
}

func showStatus(cmd *cobra.Command, client *store.Client, outputFormat string, wait time.Duration, criteria *filter.Criteria) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var snap *store.Snapshot
	var err error
	if wait > 0 {
		snap, err = watch.PollForSnapshot(ctx, client, wait)
		if err != nil {
			return noSnapshotError(cmd, client.InstanceName())
		}
	} else {
		snap, err = client.GetSnapshot(ctx)
		if err != nil {
			if store.IsNotFound(err) {
				return noSnapshotError(cmd, client.InstanceName())
			}
			return err
		}
	}

	blocks := criteria.Apply(snap.Blocks)
	if outputFormat == "jsonl" {
		return status.FormatJSONL(out, blocks)
	}

	state, err := client.GetControlState(ctx)
	if err != nil && !store.IsNotFound(err) {
		return err
	}
	if state != nil {
		processing := "enabled"
		if !state.Enabled {
			processing = "disabled"
		}
		config := state.ConfigName
		if config == "" {
			config = "(unloaded)"
		}
		printer.Info(out, "Configuration: %s (%s)\n", config, processing)
	}
	printer.Info(out, "Session: %s, published %s ago\n\n",
		snap.Session, time.Since(snap.PublishedAt).Round(time.Second))

	status.FormatTable(out, blocks, client.InstanceName())
	return nil
}
