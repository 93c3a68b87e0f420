package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"lightfeed/db"
	"lightfeed/feeds"
)

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Seed the preset pages",
		Description: `Creates the preset pages from the embedded catalog.

Does nothing when the database already contains pages, so it is safe to run
more than once.`,
		Flags: []cli.Flag{databaseFlag()},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			return feeds.Seed(store)
		},
	}
}
