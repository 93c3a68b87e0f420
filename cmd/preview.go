package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"lightfeed/models"
	"lightfeed/rss"
)

func previewCmd() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Blend ad hoc feed URLs and print the result",
		ArgsUsage: "URL [URL...]",
		Description: `Fetches the given feed URLs, blends them by recency and prints each
blended article as a JSON object on a single line. Use a tool like jq to
process the output.

Feed errors and all other log messages go to stderr.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   rss.DefaultBlendSize,
				Usage:   "Maximum number of blended articles",
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the JSON lines
			log.SetOutput(os.Stderr)

			raw := lo.Map(ctx.Args().Slice(), func(arg string, _ int) models.NewFeed {
				return models.NewFeed{URL: arg}
			})

			normalized, err := rss.NormalizeRequestFeeds(raw, rss.MaxFeedsPerRequest)
			if err != nil {
				return err
			}

			mix := rss.NormalizeFeedMix(lo.Map(normalized, func(feed models.NewFeed, _ int) models.FeedSource {
				return models.FeedSource{URL: feed.URL, Title: feed.Title}
			}))

			streamer := rss.NewStreamer(rss.NewFetcher())
			result := streamer.Stream(ctx.Context, mix, ctx.Int("limit"))

			for _, feedError := range result.FeedErrors {
				fmt.Fprintf(os.Stderr, "feed error: %s: %s\n", feedError.FeedURL, feedError.Message)
			}

			for _, item := range result.Items {
				printStdout(&item)
			}

			return nil
		},
	}
}

func printStdout(item *models.Article) {
	// Print as single JSON string on a single line
	itemJson, err := json.Marshal(item)
	if err == nil {
		fmt.Println(string(itemJson))
	}
}
