package rss

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"lightfeed/models"
)

// MaxFeedsPerRequest bounds the fan-out of a single aggregation.
const MaxFeedsPerRequest = 20

// InferFeedTitle derives a display title from a feed URL's hostname.
func InferFeedTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "Custom Feed"
	}

	hostname := strings.TrimPrefix(parsed.Hostname(), "www.")
	if hostname == "" {
		return "Custom Feed"
	}
	return hostname
}

// NormalizeFeedMix fills in default feed ids and titles and drops entries
// without a URL. The aggregator always operates on a normalized mix.
func NormalizeFeedMix(mix []models.FeedSource) []models.FeedSource {
	normalized := lo.Map(mix, func(source models.FeedSource, index int) models.FeedSource {
		if source.FeedID == "" {
			source.FeedID = fmt.Sprintf("custom-%d", index+1)
		}
		source.URL = strings.TrimSpace(source.URL)
		if strings.TrimSpace(source.Title) == "" {
			source.Title = InferFeedTitle(source.URL)
		} else {
			source.Title = strings.TrimSpace(source.Title)
		}
		return source
	})

	return lo.Filter(normalized, func(source models.FeedSource, _ int) bool {
		return source.URL != ""
	})
}

// NormalizeRequestFeeds validates a caller-supplied ad hoc feed list before
// any network activity. The whole request is rejected on the first problem.
func NormalizeRequestFeeds(raw []models.NewFeed, maxFeeds int) ([]models.NewFeed, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("Provide at least one RSS feed.")
	}

	if len(raw) > maxFeeds {
		return nil, fmt.Errorf("A maximum of %d feeds is allowed.", maxFeeds)
	}

	normalized := make([]models.NewFeed, 0, len(raw))
	for index, feed := range raw {
		feedURL := strings.TrimSpace(feed.URL)
		if feedURL == "" {
			return nil, fmt.Errorf("Feed %d is missing an RSS URL.", index+1)
		}

		parsed, err := url.Parse(feedURL)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("Feed %d must be a valid URL.", index+1)
		}

		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("Feed %d must use http or https.", index+1)
		}

		normalized = append(normalized, models.NewFeed{
			URL:   parsed.String(),
			Title: strings.TrimSpace(feed.Title),
		})
	}

	return normalized, nil
}

// dedupKey recognizes duplicate articles across feeds. The key deliberately
// includes title and publish time, not just the link: the same link
// republished with changed content or timestamp counts as a distinct item.
func dedupKey(item models.Article) string {
	return item.Link + "|" + item.Title + "|" + item.PublishedAt
}

// BlendByRecency merges the items of all fetch results into one recency
// ordered, deduplicated list bounded to limit entries. Each item is tagged
// with its originating feed.
func BlendByRecency(results []models.FetchResult, limit int) []models.Article {
	all := lo.FlatMap(results, func(result models.FetchResult, _ int) []models.Article {
		return lo.Map(result.Items, func(item models.Article, _ int) models.Article {
			item.SourceFeedID = result.FeedID
			item.SourceTitle = result.FeedTitle
			item.SourceURL = result.FeedURL
			item.SourceImage = result.FeedImage
			return item
		})
	})

	if len(all) == 0 {
		return []models.Article{}
	}

	sortByRecency(all)

	blended := make([]models.Article, 0, limit)
	seen := make(map[string]struct{}, len(all))

	for _, item := range all {
		if len(blended) >= limit {
			break
		}

		key := dedupKey(item)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		blended = append(blended, item)
	}

	return blended
}

// CollectFeedErrors reports one FeedError per failed fetch, in result order.
func CollectFeedErrors(results []models.FetchResult) []models.FeedError {
	return lo.FilterMap(results, func(result models.FetchResult, _ int) (models.FeedError, bool) {
		if result.Error == "" {
			return models.FeedError{}, false
		}
		return models.FeedError{
			FeedID:    result.FeedID,
			FeedTitle: result.FeedTitle,
			FeedURL:   result.FeedURL,
			Message:   result.Error,
		}, true
	})
}
