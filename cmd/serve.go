package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"lightfeed/db"
	"lightfeed/feeds"
	"lightfeed/rss"
	"lightfeed/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the lightfeed HTTP API",
		Description: `Starts the lightfeed HTTP server.

Runs pending database migrations, seeds the preset pages when the database
is empty, and serves the pages, preview, catalog and saved-articles API on
the configured port.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "lightfeed.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"LIGHTFEED_DATABASE"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"LIGHTFEED_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			port := ctx.Int("port")

			fmt.Println("Starting lightfeed...")

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			if err := feeds.Seed(store); err != nil {
				return fmt.Errorf("failed to seed preset pages: %w", err)
			}

			app := server.Server(&server.ServerConfig{
				Store:    store,
				Streamer: rss.NewStreamer(rss.NewFetcher()),
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			done := make(chan struct{})

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.Errorf("Error shutting down server: %v", err)
				}
				close(done)
			}()

			log.WithFields(log.Fields{
				"database": database,
				"port":     port,
			}).Info("Starting server")

			if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
				return err
			}

			<-done
			fmt.Println("Done!")
			return nil
		},
	}
}
