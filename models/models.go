package models

// FeedSource is one feed inside a page's mix. Immutable input to a single fetch.
type FeedSource struct {
	FeedID string `json:"feedId"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// Article is a single normalized feed item. PublishedAt is the ISO-8601
// publish time, empty when the feed carried no parsable date (PublishedAtMs
// is 0 in that case and the item sorts last).
type Article struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	Summary        string `json:"summary"`
	ImageURL       string `json:"imageUrl,omitempty"`
	PublishedAt    string `json:"publishedAt,omitempty"`
	PublishedAtMs  int64  `json:"publishedAtMs"`
	PublishedLabel string `json:"publishedLabel"`

	// Set by the blend step, empty on freshly parsed items.
	SourceFeedID string `json:"sourceFeedId,omitempty"`
	SourceTitle  string `json:"sourceTitle,omitempty"`
	SourceURL    string `json:"sourceUrl,omitempty"`
	SourceImage  string `json:"sourceImage,omitempty"`

	// True when the user has bookmarked this link. Set per request by the
	// server, never persisted with the article.
	Saved bool `json:"saved,omitempty"`
}

// FetchResult is the fetch+parse outcome for exactly one feed source within
// one aggregation call. Error and non-empty Items are mutually exclusive.
type FetchResult struct {
	FeedID    string    `json:"feedId"`
	FeedTitle string    `json:"feedTitle"`
	FeedImage string    `json:"feedImage,omitempty"`
	FeedURL   string    `json:"feedUrl"`
	Items     []Article `json:"items"`
	Error     string    `json:"error,omitempty"`
}

// FeedError reports one failed feed inside an otherwise successful blend.
type FeedError struct {
	FeedID    string `json:"feedId"`
	FeedTitle string `json:"feedTitle"`
	FeedURL   string `json:"feedUrl"`
	Message   string `json:"message"`
}

// BlendResult is the merged, deduplicated, recency-sorted output for a feed mix.
type BlendResult struct {
	Items      []Article   `json:"items"`
	FeedErrors []FeedError `json:"feedErrors"`
	FetchedAt  string      `json:"fetchedAt"`
}

// Page is a named collection of feeds.
type Page struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsHomepage bool   `json:"isHomepage"`
	SortOrder  int    `json:"sortOrder"`
	CreatedAt  string `json:"createdAt"`
}

// PageStats is a page plus the number of feeds in its mix.
type PageStats struct {
	Page
	FeedCount int `json:"feedCount"`
}

// NewFeed is the caller-supplied shape when creating or updating a page mix.
type NewFeed struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SavedArticle is a bookmarked article snapshot. The article fields are copied
// at save time; they are not refreshed when the source feed changes.
type SavedArticle struct {
	ID             string `json:"id"`
	ArticleID      string `json:"articleId,omitempty"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	Summary        string `json:"summary,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
	SourceFeedID   string `json:"sourceFeedId,omitempty"`
	SourceTitle    string `json:"sourceTitle,omitempty"`
	SourceURL      string `json:"sourceUrl,omitempty"`
	PublishedAt    string `json:"publishedAt,omitempty"`
	PublishedLabel string `json:"publishedLabel,omitempty"`
	PageID         string `json:"pageId,omitempty"`
	PageName       string `json:"pageName,omitempty"`
	SavedAt        string `json:"savedAt"`
}
