package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalOptions are the persistent flags shared by the client commands.
type globalOptions struct {
	configPath    string
	redisAddr     string
	redisPassword string
	redisDB       int
	instance      string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "downlink",
		Short: "downlink - Ground-station telemetry frame processor",
		Long: `downlink decodes, filters and routes fixed-format spacecraft downlink
frames (CADUs) through a configurable chain of stages.

Every stage publishes live status counters. A running processor writes
snapshots of them to Redis, where any number of clients can list, watch
and clear them without interrupting processing.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no subcommand is specified, show help
			return cmd.Help()
		},
		// Enable strict flag parsing - unknown flags will cause an error
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		// Silence Cobra's default error and usage printing
		// We print formatted colored errors directly in the printer package
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Processor configuration file (supplies Redis settings)")
	flags.StringVar(&opts.redisAddr, "redis", config.DefaultRedisAddr, "Redis address of the status store")
	flags.StringVar(&opts.redisPassword, "redis-password", "", "Redis password")
	flags.IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	flags.StringVarP(&opts.instance, "instance", "n", "", "Processor instance name (defaults to the config name)")

	rootCmd.AddCommand(
		newInitCmd(),
		newRunCmd(opts),
		newStatusCmd(opts),
		newBlocksCmd(opts),
		newItemsCmd(opts),
		newWatchCmd(opts),
		newClearCmd(opts),
		newEnableCmd(opts),
		newDisableCmd(opts),
		newUnloadCmd(opts),
	)
	return rootCmd
}

// Execute builds the root command and runs it until completion or until
// SIGINT/SIGTERM. This is called by main.main().
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
