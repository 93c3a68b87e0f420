package rss

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"lightfeed/models"
)

// DefaultBlendSize bounds the blended item list when the caller does not ask
// for a specific limit.
const DefaultBlendSize = 24

// Streamer runs the full aggregation for a feed mix: concurrent fetch of
// every feed, then blend. It holds no per-call state and is safe for
// concurrent use.
type Streamer struct {
	fetcher *Fetcher
}

func NewStreamer(fetcher *Fetcher) *Streamer {
	return &Streamer{fetcher: fetcher}
}

// FetchAll fans out one fetch per feed and waits for all of them. Results
// match the input order, exactly one per source. There is no short-circuit on
// first failure or first success; each fetch owns its own timeout.
func (s *Streamer) FetchAll(ctx context.Context, mix []models.FeedSource) []models.FetchResult {
	results := make([]models.FetchResult, len(mix))

	var wg sync.WaitGroup
	for index, source := range mix {
		wg.Add(1)
		go func(index int, source models.FeedSource) {
			defer wg.Done()
			results[index] = s.fetcher.Fetch(ctx, source)
		}(index, source)
	}
	wg.Wait()

	return results
}

// Stream aggregates a feed mix into a single blended result. An empty mix
// resolves immediately without any network activity. Failed feeds surface in
// FeedErrors; the call itself always succeeds with best-effort data.
func (s *Streamer) Stream(ctx context.Context, mix []models.FeedSource, limit int) models.BlendResult {
	normalized := NormalizeFeedMix(mix)

	if limit <= 0 {
		limit = DefaultBlendSize
	}

	if len(normalized) == 0 {
		return models.BlendResult{
			Items:      []models.Article{},
			FeedErrors: []models.FeedError{},
			FetchedAt:  nowISO(),
		}
	}

	start := time.Now()
	results := s.FetchAll(ctx, normalized)
	items := BlendByRecency(results, limit)
	feedErrors := CollectFeedErrors(results)

	log.WithFields(log.Fields{
		"feeds":   len(normalized),
		"items":   len(items),
		"errors":  len(feedErrors),
		"latency": time.Since(start),
	}).Info("Blended feed mix")

	return models.BlendResult{
		Items:      items,
		FeedErrors: feedErrors,
		FetchedAt:  nowISO(),
	}
}

func sortByRecency(items []models.Article) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAtMs > items[j].PublishedAtMs
	})
}

func nowISO() string {
	return time.Now().UTC().Format(isoMillis)
}
