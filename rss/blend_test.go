package rss_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightfeed/models"
	"lightfeed/rss"
)

func TestInferFeedTitle(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "plain hostname",
			url:      "https://feeds.bbci.co.uk/news/rss.xml",
			expected: "feeds.bbci.co.uk",
		},
		{
			name:     "www stripped",
			url:      "https://www.theverge.com/rss/index.xml",
			expected: "theverge.com",
		},
		{
			name:     "empty url",
			url:      "",
			expected: "Custom Feed",
		},
		{
			name:     "not a url",
			url:      "::::",
			expected: "Custom Feed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rss.InferFeedTitle(tt.url))
		})
	}
}

func TestNormalizeFeedMix(t *testing.T) {
	mix := rss.NormalizeFeedMix([]models.FeedSource{
		{URL: " https://example.com/a.xml ", Title: " Named "},
		{URL: "https://example.com/b.xml"},
		{URL: "   "},
	})

	require.Len(t, mix, 2)
	assert.Equal(t, "custom-1", mix[0].FeedID)
	assert.Equal(t, "Named", mix[0].Title)
	assert.Equal(t, "https://example.com/a.xml", mix[0].URL)
	assert.Equal(t, "custom-2", mix[1].FeedID)
	assert.Equal(t, "example.com", mix[1].Title)
}

func TestNormalizeRequestFeeds(t *testing.T) {
	many := make([]models.NewFeed, 21)
	for i := range many {
		many[i] = models.NewFeed{URL: "https://example.com/feed.xml"}
	}

	tests := []struct {
		name        string
		feeds       []models.NewFeed
		expectedErr string
	}{
		{
			name:        "empty list",
			feeds:       nil,
			expectedErr: "Provide at least one RSS feed.",
		},
		{
			name:        "too many feeds",
			feeds:       many,
			expectedErr: "A maximum of 20 feeds is allowed.",
		},
		{
			name:        "blank url",
			feeds:       []models.NewFeed{{URL: "https://ok.example.com/f.xml"}, {URL: "  "}},
			expectedErr: "Feed 2 is missing an RSS URL.",
		},
		{
			name:        "unparsable url",
			feeds:       []models.NewFeed{{URL: "not a url"}},
			expectedErr: "Feed 1 must be a valid URL.",
		},
		{
			name:        "wrong scheme",
			feeds:       []models.NewFeed{{URL: "ftp://example.com/feed.xml"}},
			expectedErr: "Feed 1 must use http or https.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rss.NormalizeRequestFeeds(tt.feeds, rss.MaxFeedsPerRequest)
			require.Error(t, err)
			assert.Equal(t, tt.expectedErr, err.Error())
		})
	}

	t.Run("valid feeds normalized", func(t *testing.T) {
		normalized, err := rss.NormalizeRequestFeeds([]models.NewFeed{
			{URL: "  https://example.com/a.xml  ", Title: "  A  "},
		}, rss.MaxFeedsPerRequest)
		require.NoError(t, err)
		require.Len(t, normalized, 1)
		assert.Equal(t, "https://example.com/a.xml", normalized[0].URL)
		assert.Equal(t, "A", normalized[0].Title)
	})
}

func article(title, link, publishedAt string, ms int64) models.Article {
	return models.Article{
		ID:            "id-" + title,
		Title:         title,
		Link:          link,
		PublishedAt:   publishedAt,
		PublishedAtMs: ms,
	}
}

func TestBlendByRecency(t *testing.T) {
	results := []models.FetchResult{
		{
			FeedID:    "feed-a",
			FeedTitle: "Feed A",
			FeedURL:   "https://a.example.com/rss",
			Items: []models.Article{
				article("a1", "https://a.example.com/1", "2024-05-01T10:00:00.000Z", 300),
				article("a2", "https://a.example.com/2", "2024-05-01T08:00:00.000Z", 100),
			},
		},
		{
			FeedID:    "feed-b",
			FeedTitle: "Feed B",
			FeedURL:   "https://b.example.com/rss",
			Items: []models.Article{
				article("b1", "https://b.example.com/1", "2024-05-01T09:00:00.000Z", 200),
				// Same link, title and publish time as a1: a duplicate.
				article("a1", "https://a.example.com/1", "2024-05-01T10:00:00.000Z", 300),
			},
		},
	}

	blended := rss.BlendByRecency(results, 10)

	require.Len(t, blended, 3, "duplicate dropped")
	assert.Equal(t, []string{"a1", "b1", "a2"}, []string{blended[0].Title, blended[1].Title, blended[2].Title})
	assert.Equal(t, "feed-a", blended[0].SourceFeedID)
	assert.Equal(t, "Feed A", blended[0].SourceTitle)
	assert.Equal(t, "feed-b", blended[1].SourceFeedID)

	for i := 1; i < len(blended); i++ {
		assert.GreaterOrEqual(t, blended[i-1].PublishedAtMs, blended[i].PublishedAtMs)
	}
}

func TestBlendByRecencyRespectsLimit(t *testing.T) {
	results := []models.FetchResult{{
		FeedID: "feed-a",
		Items: []models.Article{
			article("a1", "https://a.example.com/1", "", 300),
			article("a2", "https://a.example.com/2", "", 200),
			article("a3", "https://a.example.com/3", "", 100),
		},
	}}

	blended := rss.BlendByRecency(results, 2)
	assert.Len(t, blended, 2)
}

func TestBlendByRecencyKeepsChangedRepublish(t *testing.T) {
	// Same link but a different publish time is not a duplicate.
	results := []models.FetchResult{{
		FeedID: "feed-a",
		Items: []models.Article{
			article("story", "https://a.example.com/1", "2024-05-01T10:00:00.000Z", 300),
			article("story", "https://a.example.com/1", "2024-05-01T08:00:00.000Z", 100),
		},
	}}

	blended := rss.BlendByRecency(results, 10)
	assert.Len(t, blended, 2)
}

func TestBlendByRecencyEmpty(t *testing.T) {
	blended := rss.BlendByRecency(nil, 10)
	assert.NotNil(t, blended)
	assert.Empty(t, blended)
}

func TestCollectFeedErrors(t *testing.T) {
	results := []models.FetchResult{
		{FeedID: "feed-a", FeedTitle: "A", FeedURL: "https://a.example.com/rss"},
		{FeedID: "feed-b", FeedTitle: "B", FeedURL: "https://b.example.com/rss", Error: "timeout after 9s"},
	}

	feedErrors := rss.CollectFeedErrors(results)
	require.Len(t, feedErrors, 1)
	assert.Equal(t, "feed-b", feedErrors[0].FeedID)
	assert.Equal(t, "timeout after 9s", feedErrors[0].Message)
}
