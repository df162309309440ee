package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "winnow",
		Usage:   "bot classification daemon (separates wheat from chaff)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "base URL of the host platform's moderation API",
			Value:   "https://api.example.invalid",
			EnvVars: []string{"WINNOW_PLATFORM_HOST"},
		},
		&cli.StringFlag{
			Name:    "platform-token",
			Usage:   "bearer token for the platform API",
			EnvVars: []string{"WINNOW_PLATFORM_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "platform-rate-limit",
			Usage:   "max requests per second to the platform API",
			Value:   8,
			EnvVars: []string{"WINNOW_PLATFORM_RATE_LIMIT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; omit to run fully in-memory",
			EnvVars: []string{"WINNOW_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "config-url",
			Usage:   "URL of the externally edited variables page (YAML)",
			EnvVars: []string{"WINNOW_CONFIG_URL"},
		},
		&cli.StringFlag{
			Name:    "community",
			Usage:   "name of the community holding the tracking records",
			Value:   "botwatch",
			EnvVars: []string{"WINNOW_COMMUNITY"},
		},
		&cli.BoolFlag{
			Name:    "authoritative",
			Usage:   "this node owns counters, re-checks, and submitter feedback",
			EnvVars: []string{"WINNOW_AUTHORITATIVE"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"WINNOW_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "incoming webhook for moderation-team notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.DurationFlag{
			Name:    "job-budget",
			Usage:   "wall-clock budget for one chunked job invocation",
			Value:   defaultJobBudget,
			EnvVars: []string{"WINNOW_JOB_BUDGET"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "how often to poll the platform for new content",
			Value:   defaultPollInterval,
			EnvVars: []string{"WINNOW_POLL_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "config-poll-interval",
			Usage:   "how often to re-fetch the variables page",
			Value:   defaultConfigPollInterval,
			EnvVars: []string{"WINNOW_CONFIG_POLL_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "how often to offer each sweep a kickoff",
			Value:   defaultSweepInterval,
			EnvVars: []string{"WINNOW_SWEEP_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		srv, err := NewServer(Config{
			Logger:             logger,
			RedisURL:           cctx.String("redis-url"),
			ConfigURL:          cctx.String("config-url"),
			PlatformHost:       cctx.String("platform-host"),
			PlatformToken:      cctx.String("platform-token"),
			PlatformRateLimit:  cctx.Int("platform-rate-limit"),
			Community:          cctx.String("community"),
			Authoritative:      cctx.Bool("authoritative"),
			SlackWebhookURL:    cctx.String("slack-webhook-url"),
			JobBudget:          cctx.Duration("job-budget"),
			PollInterval:       cctx.Duration("poll-interval"),
			ConfigPollInterval: cctx.Duration("config-poll-interval"),
			SweepInterval:      cctx.Duration("sweep-interval"),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run winnow service: %w", err)
		}
		return nil
	},
}
