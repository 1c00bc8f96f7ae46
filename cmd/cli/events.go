package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glizzus/readaloud/internal/config"
	"github.com/glizzus/readaloud/internal/events"
	"github.com/glizzus/readaloud/internal/presenters"
	"github.com/urfave/cli/v2"
)

var eventsCommand = &cli.Command{
	Name:  "events",
	Usage: "Follow the bracket events published to Redis",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "group",
			Usage: "consumer group; each group sees every event once",
			Value: "readaloud_cli",
		},
		&cli.StringFlag{
			Name:  "consumer",
			Usage: "consumer name within the group",
			Value: "cli",
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		redisConfig, err := config.NewRedisConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load redis config: "+err.Error(), 1)
		}
		if redisConfig == nil {
			return cli.Exit("REDIS_ADDR is not set", 1)
		}

		client, err := events.NewRedisClientFromConfig(ctx, redisConfig)
		if err != nil {
			return cli.Exit("Failed to connect to redis: "+err.Error(), 1)
		}
		defer client.Close()

		consumer, err := events.NewRedisConsumer(ctx, client, redisConfig.Stream, c.String("group"), c.String("consumer"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		slog.Info("following bracket events", slog.String("stream", redisConfig.Stream), slog.String("group", c.String("group")))
		for {
			evts, err := consumer.Read(ctx, 32, 5*time.Second)
			var malformed *events.MalformedEventError
			switch {
			case errors.As(err, &malformed):
				slog.Warn("skipping malformed events", slog.Any("ids", malformed.IDs), slog.Any("error", malformed.Err))
			case err != nil:
				if ctx.Err() != nil {
					return nil
				}
				return cli.Exit("Failed to read events: "+err.Error(), 1)
			}
			for _, e := range evts {
				fmt.Println(presenters.EventLine(e))
			}
		}
	},
}
