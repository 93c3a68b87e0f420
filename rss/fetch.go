package rss

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"lightfeed/models"
)

// Hard wall-clock budget for a single feed fetch. A slow upstream burns its
// own budget, never the rest of the mix.
const fetchTimeout = 9 * time.Second

const (
	userAgent    = "lightfeed/0.1 (+self-hosted)"
	acceptHeader = "application/rss+xml, application/xml, text/xml;q=0.9, */*;q=0.8"
)

var (
	fetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lightfeed_feed_fetch_attempts_total",
		Help: "Number of feed fetch attempts",
	})
	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lightfeed_feed_fetch_failures_total",
		Help: "Number of failed feed fetches",
	}, []string{"reason"})
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lightfeed_feed_fetch_duration_seconds",
		Help:    "Feed fetch duration",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms up past the 9s timeout
	})
)

// Fetcher downloads and parses a single feed. It is stateless per call and
// safe to share across concurrent aggregations.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// Fetch downloads one feed and parses the body. It never returns an error:
// any transport, HTTP or read failure is recorded on the FetchResult so a bad
// feed cannot fail the rest of the aggregation.
func (f *Fetcher) Fetch(ctx context.Context, source models.FeedSource) models.FetchResult {
	fetchAttempts.Inc()
	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return f.failure(source, "request", fetchErrorMessage(err))
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		reason := "transport"
		message := fetchErrorMessage(err)
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
			message = "timeout after " + fetchTimeout.String()
		}
		return f.failure(source, reason, message)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return f.failure(source, "status", "HTTP "+resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return f.failure(source, "read", fetchErrorMessage(err))
	}

	parsed := ParseFeed(string(body), source)

	feedTitle := parsed.FeedTitle
	if feedTitle == "" {
		feedTitle = source.Title
	}

	log.WithFields(log.Fields{
		"feed":  source.FeedID,
		"url":   source.URL,
		"items": len(parsed.Items),
	}).Debug("Fetched feed")

	return models.FetchResult{
		FeedID:    source.FeedID,
		FeedTitle: feedTitle,
		FeedImage: parsed.FeedImage,
		FeedURL:   source.URL,
		Items:     parsed.Items,
	}
}

func (f *Fetcher) failure(source models.FeedSource, reason, message string) models.FetchResult {
	fetchFailures.WithLabelValues(reason).Inc()

	log.WithFields(log.Fields{
		"feed":   source.FeedID,
		"url":    source.URL,
		"reason": reason,
		"error":  message,
	}).Warn("Feed fetch failed")

	return models.FetchResult{
		FeedID:    source.FeedID,
		FeedTitle: source.Title,
		FeedURL:   source.URL,
		Items:     []models.Article{},
		Error:     message,
	}
}

// fetchErrorMessage unwraps the noisy url.Error prefix and guarantees a
// non-empty message.
func fetchErrorMessage(err error) string {
	if err == nil {
		return "Unknown feed fetch error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}

	if message := err.Error(); message != "" {
		return message
	}
	return "Unknown feed fetch error"
}
