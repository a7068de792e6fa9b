package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grammargame/internal/app"
	"grammargame/internal/config"
	"grammargame/internal/services"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
)

func init() {
	config.LoadDotEnv()
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	container := app.NewContainer(cfg)
	defer app.Shutdown(container)

	cliApp := &cli.App{
		Name: "cronjob",
		Commands: []*cli.Command{
			commandCronjob(container),
			commandArchive(container),
		},
	}

	return cliApp.Run(os.Args)
}

func commandCronjob(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "run the scheduled jobs until interrupted",
		Action: func(c *cli.Context) error {
			cfg := do.MustInvoke[*config.Config](container)

			rs, err := do.Invoke[*redsync.Redsync](container)
			if err != nil {
				return err
			}

			serviceLeaderboard, err := do.Invoke[*services.ServiceLeaderboard](container)
			if err != nil {
				return err
			}

			cronRunner := cron.New(cron.WithLocation(time.UTC))

			leaderboardJob := NewLeaderboardJob(serviceLeaderboard, rs)
			if err := leaderboardJob.Start(c.Context, cronRunner, cfg.CronWeeklyLeaderboard); err != nil {
				return err
			}

			if cfg.Archive.Enabled() {
				serviceArchive, err := do.Invoke[*services.ServiceArchive](container)
				if err != nil {
					return err
				}

				archiveJob := NewArchiveJob(serviceArchive, rs)
				if err := archiveJob.Start(cronRunner, cfg.CronArchive); err != nil {
					return err
				}
			} else {
				log.Println("ARCHIVE_BUCKET not set, archive job disabled")
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Println("Start cronjob")
			cronRunner.Start()
			<-ctx.Done()

			log.Println("Stopping cronjob, waiting for running jobs")
			<-cronRunner.Stop().Done()
			return nil
		},
	}
}

func commandArchive(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "archive the completed sessions of one UTC day",
		Flags: []cli.Flag{
			&cli.TimestampFlag{
				Name:     "day",
				Layout:   time.DateOnly,
				Timezone: time.UTC,
				Usage:    "day to archive, defaults to yesterday",
			},
		},
		Action: func(c *cli.Context) error {
			serviceArchive, err := do.Invoke[*services.ServiceArchive](container)
			if err != nil {
				return err
			}

			day := time.Now().UTC().Add(-24 * time.Hour)
			if ts := c.Timestamp("day"); ts != nil {
				day = *ts
			}

			key, count, err := serviceArchive.ArchiveDay(context.Background(), day)
			if err != nil {
				return err
			}

			if count == 0 {
				log.Println("No completed sessions on", day.Format(time.DateOnly))
				return nil
			}
			log.Printf("Archived %d sessions to %s\n", count, key)
			return nil
		},
	}
}
