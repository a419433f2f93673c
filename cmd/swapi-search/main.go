// Command swapi-search searches Star Wars characters on SWAPI.
//
// Subcommands:
//
//	search  run one search through a browser session and print the list
//	browse  drive a browser session from stdin, one intent per line
//	export  fetch every page of a term and write it as JSON or CSV
//	serve   HTTP proxy with /people, /health, /ready and /metrics
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/swapi-search/pkg/client"
	"github.com/Sternrassler/swapi-search/pkg/config"
	"github.com/Sternrassler/swapi-search/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	configPath string
	cfg        config.Config
	redis      *redis.Client
	gateway    *client.Client
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "swapi-search",
		Short:        "Search Star Wars characters on SWAPI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (environment variables override it)")

	root.AddCommand(
		newSearchCmd(a),
		newBrowseCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root
}

// init loads configuration, sets up logging and builds the SWAPI client.
func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Logging()
	logCfg.Output = os.Stderr
	logging.Setup(logCfg)

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("Redis unreachable - cache and quota will log errors")
		} else {
			log.Debug().Str("redis_addr", cfg.RedisAddr).Msg("Connected to Redis")
		}
	}

	a.gateway, err = client.New(clientConfig(cfg, a.redis))
	if err != nil {
		return fmt.Errorf("create SWAPI client: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.gateway != nil {
		a.gateway.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func clientConfig(cfg config.Config, redisClient *redis.Client) client.Config {
	cc := client.DefaultConfig(redisClient, cfg.UserAgent)
	cc.BaseURL = cfg.BaseURL
	cc.Quota = cfg.Quota()
	cc.Timeout = cfg.HTTPTimeout
	cc.MaxRetries = cfg.MaxRetries
	cc.InitialBackoff = cfg.InitialBackoff
	return cc
}
