package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "lightfeed",
		Usage: "A self-hosted RSS reader with blended feed pages",
		Description: `Lightfeed aggregates RSS and Atom feeds into named pages.

		Each page holds a mix of feed URLs. On every request the page's feeds
		are fetched concurrently, parsed tolerantly, and blended into a single
		recency-sorted list. Pages and saved articles are stored in a local
		SQLite database and served over an HTTP API.

		Flags can generally be set via environment variables, e.g.:

		--database => LIGHTFEED_DATABASE=lightfeed.db
		--port => LIGHTFEED_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			seedCmd(),
			previewCmd(),
			addPageCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
