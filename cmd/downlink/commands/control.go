package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/store"
)

func newEnableCmd(global *globalOptions) *cobra.Command {
	return newControlCmd(global, store.ActionEnable,
		"Resume frame processing on a running processor",
		`Ask a running processor to resume passing frames through its pipelines.

Examples:
  downlink enable --instance aqua`)
}

func newDisableCmd(global *globalOptions) *cobra.Command {
	return newControlCmd(global, store.ActionDisable,
		"Pause frame processing on a running processor",
		`Ask a running processor to stop passing frames through its pipelines.
Frames arriving while disabled are dropped and counted in the processor's
"Dropped Frames" item.

Examples:
  downlink disable --instance aqua`)
}

func newUnloadCmd(global *globalOptions) *cobra.Command {
	return newControlCmd(global, store.ActionUnload,
		"Tear down the pipelines of a running processor",
		`Ask a running processor to close every pipeline and release their status
blocks. Input is still read but every frame is dropped until the processor
is restarted.

Examples:
  downlink unload --instance aqua`)
}

func newControlCmd(global *globalOptions, action, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := global.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			receivers, err := client.RequestControl(cmd.Context(), &store.ControlRequest{
				Action:      action,
				RequestedBy: requester(),
				RequestedAt: time.Now().UTC(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if receivers == 0 {
				printer.Warning(out, "no processor is running for instance '%s'; nothing changed\n", client.InstanceName())
				return nil
			}
			printer.Success(out, "%s requested for instance '%s'\n", action, client.InstanceName())
			return nil
		},
	}
}
