package cmd

import (
	"fmt"
	"strings"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/choose"
	"github.com/urfave/cli/v2"

	"lightfeed/db"
	"lightfeed/models"
	"lightfeed/rss"
)

func addPageCmd() *cli.Command {
	return &cli.Command{
		Name:  "add-page",
		Usage: "Interactively create a page",
		Description: `Creates a page in the local database.

Asks for the page name, whether it should be the homepage, and the feed
URLs for its mix. Feed titles are inferred from the URL hostname and can be
edited later via the API.`,
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

			name, err := prompt.New().Ask("Page name:").Input("My Feed")
			if err != nil {
				return err
			}

			homepage, err := prompt.New().Ask("Make this the homepage?").
				Choose([]string{"no", "yes"}, choose.WithTheme(choose.ThemeArrow))
			if err != nil {
				return err
			}

			urls, err := prompt.New().Ask("Feed URLs (space separated):").
				Input("https://feeds.bbci.co.uk/news/rss.xml")
			if err != nil {
				return err
			}

			var raw []models.NewFeed
			for _, feedURL := range strings.Fields(urls) {
				raw = append(raw, models.NewFeed{URL: feedURL})
			}

			normalized, err := rss.NormalizeRequestFeeds(raw, rss.MaxFeedsPerRequest)
			if err != nil {
				return err
			}

			created, err := store.CreatePage(db.CreatePageParams{
				Name:       name,
				IsHomepage: homepage == "yes",
				Feeds:      normalized,
			})
			if err != nil {
				return fmt.Errorf("could not create page: %w", err)
			}

			fmt.Println("Created page...", created.Page.Name)
			for _, feed := range created.FeedMix {
				fmt.Printf("  %s (%s)\n", feed.Title, feed.URL)
			}

			return nil
		},
	}
}
