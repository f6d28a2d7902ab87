package commands

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/downlink/internal/config"
	"github.com/dyluth/downlink/internal/printer"
	"github.com/dyluth/downlink/internal/store"
)

// redisConfig resolves the store settings: the config file first, when
// given, then any flags set explicitly on the command line.
func (o *globalOptions) redisConfig(cmd *cobra.Command) (*config.RedisConfig, error) {
	rc := &config.RedisConfig{
		Addr:     o.redisAddr,
		Password: o.redisPassword,
		DB:       o.redisDB,
		Instance: o.instance,
	}
	if o.configPath == "" {
		return rc, nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(cmd.ErrOrStderr(),
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": o.configPath},
			nil,
		)
	}

	resolved := *cfg.Redis
	o.overrideRedis(cmd, &resolved)
	return &resolved, nil
}

// overrideRedis applies the Redis flags set explicitly on the command line.
func (o *globalOptions) overrideRedis(cmd *cobra.Command, rc *config.RedisConfig) {
	flags := cmd.Flags()
	if flags.Changed("redis") {
		rc.Addr = o.redisAddr
	}
	if flags.Changed("redis-password") {
		rc.Password = o.redisPassword
	}
	if flags.Changed("redis-db") {
		rc.DB = o.redisDB
	}
	if flags.Changed("instance") {
		rc.Instance = o.instance
	}
}

// connect opens and verifies a store client for the client commands.
func (o *globalOptions) connect(cmd *cobra.Command) (*store.Client, error) {
	rc, err := o.redisConfig(cmd)
	if err != nil {
		return nil, err
	}
	if rc.Instance == "" {
		return nil, printer.Error(cmd.ErrOrStderr(),
			"instance name required",
			"No processor instance was named.",
			[]string{
				fmt.Sprintf("Name the instance:\n  downlink %s --instance <name>", cmd.Name()),
				fmt.Sprintf("Use the processor's configuration:\n  downlink %s --config downlink.yml", cmd.Name()),
			},
		)
	}
	return openStore(cmd, rc)
}

// openStore connects to Redis and verifies connectivity.
func openStore(cmd *cobra.Command, rc *config.RedisConfig) (*store.Client, error) {
	client, err := store.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	}, rc.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	if err := client.Ping(cmd.Context()); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(cmd.ErrOrStderr(),
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", rc.Addr),
			map[string]string{"Instance": rc.Instance, "Error": err.Error()},
			[]string{
				"Check that Redis is running and reachable",
				"Point at the right server:\n  --redis host:port",
			},
		)
	}
	return client, nil
}

// noSnapshotError reports an instance that has not published status.
func noSnapshotError(cmd *cobra.Command, instance string) error {
	return printer.Error(cmd.ErrOrStderr(),
		fmt.Sprintf("no status published for instance '%s'", instance),
		"The processor is not running, or its last snapshot expired.",
		[]string{"Start the processor:\n  downlink run --config downlink.yml"},
	)
}
