package main

import (
	"context"
	"log"
	"os"

	"grammargame/internal/config"
	"grammargame/internal/datastore"

	"github.com/urfave/cli/v2"
)

func init() {
	config.LoadDotEnv()
}

func main() {
	app := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create tables and indexes of the configured store",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			store, err := datastore.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Shutdown()

			if err := store.Migrate(ctx); err != nil {
				return err
			}

			log.Printf("Migration done (%s)\n", cfg.StoreDriver)
			return nil
		},
	}
}
