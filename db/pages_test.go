package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightfeed/db"
	"lightfeed/models"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(dbPath))

	store, err := db.NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func newsPage() db.CreatePageParams {
	return db.CreatePageParams{
		Name:       "Morning News",
		IsHomepage: true,
		Feeds: []models.NewFeed{
			{URL: "https://feeds.bbci.co.uk/news/rss.xml", Title: "BBC News"},
			{URL: "https://www.theguardian.com/world/rss"},
		},
	}
}

func TestCreatePageRoundTrip(t *testing.T) {
	store := newTestStore(t)

	created, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	assert.Equal(t, "morning-news", created.Page.ID)
	assert.Equal(t, "Morning News", created.Page.Name)
	assert.True(t, created.Page.IsHomepage)
	assert.Equal(t, 1, created.Page.SortOrder)
	assert.NotEmpty(t, created.Page.CreatedAt)

	require.Len(t, created.FeedMix, 2)
	// Mix comes back ordered by title, case insensitive.
	assert.Equal(t, "BBC News", created.FeedMix[0].Title)
	assert.Equal(t, "theguardian.com", created.FeedMix[1].Title, "missing titles fall back to the hostname")

	fetched, err := store.GetPage("morning-news")
	require.NoError(t, err)
	assert.Equal(t, created.Page, fetched)
}

func TestCreatePageSlugCollision(t *testing.T) {
	store := newTestStore(t)

	first, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	params := newsPage()
	params.IsHomepage = false
	second, err := store.CreatePage(params)
	require.NoError(t, err)

	assert.Equal(t, "morning-news", first.Page.ID)
	assert.Equal(t, "morning-news-2", second.Page.ID)
	assert.Equal(t, 2, second.Page.SortOrder)
}

func TestCreatePageValidation(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name        string
		params      db.CreatePageParams
		expectedErr string
	}{
		{
			name:        "missing name",
			params:      db.CreatePageParams{Feeds: []models.NewFeed{{URL: "https://a.example.com/rss"}}},
			expectedErr: "Feed name is required.",
		},
		{
			name:        "no feeds",
			params:      db.CreatePageParams{Name: "Empty"},
			expectedErr: "At least one feed is required.",
		},
		{
			name: "duplicate urls",
			params: db.CreatePageParams{
				Name: "Dupes",
				Feeds: []models.NewFeed{
					{URL: "https://a.example.com/rss"},
					{URL: "https://a.example.com/rss"},
				},
			},
			expectedErr: "Duplicate feed URLs are not allowed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreatePage(tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.expectedErr, err.Error())
		})
	}
}

func TestHomepageSingleFlag(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	_, err = store.CreatePage(db.CreatePageParams{
		Name:       "Tech",
		IsHomepage: true,
		Feeds:      []models.NewFeed{{URL: "https://arstechnica.com/feed/"}},
	})
	require.NoError(t, err)

	home, err := store.Homepage()
	require.NoError(t, err)
	assert.Equal(t, "tech", home.ID)

	previous, err := store.GetPage("morning-news")
	require.NoError(t, err)
	assert.False(t, previous.IsHomepage, "only one page can be the homepage")
}

func TestHomepageFallsBackToFirstPage(t *testing.T) {
	store := newTestStore(t)

	params := newsPage()
	params.IsHomepage = false
	_, err := store.CreatePage(params)
	require.NoError(t, err)

	home, err := store.Homepage()
	require.NoError(t, err)
	assert.Equal(t, "morning-news", home.ID)
}

func TestHomepageEmptyDatabase(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Homepage()
	assert.ErrorIs(t, err, db.ErrPageNotFound)
}

func TestListPagesWithStats(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	stats, err := store.ListPagesWithStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "morning-news", stats[0].ID)
	assert.Equal(t, 2, stats[0].FeedCount)
}

func TestUpdatePagePartial(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	name := "Evening News"
	updated, err := store.UpdatePage("morning-news", db.UpdatePageParams{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Evening News", updated.Page.Name)
	assert.True(t, updated.Page.IsHomepage, "homepage flag untouched")
	assert.Len(t, updated.FeedMix, 2, "feed mix untouched")
}

func TestUpdatePageReplacesFeeds(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	feeds := []models.NewFeed{{URL: "https://www.npr.org/rss/rss.php", Title: "NPR"}}
	updated, err := store.UpdatePage("morning-news", db.UpdatePageParams{Feeds: &feeds})
	require.NoError(t, err)

	require.Len(t, updated.FeedMix, 1)
	assert.Equal(t, "NPR", updated.FeedMix[0].Title)
}

func TestUpdatePageErrors(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	_, err = store.UpdatePage("morning-news", db.UpdatePageParams{})
	require.Error(t, err)
	assert.Equal(t, "No updates were provided.", err.Error())

	name := "Whatever"
	_, err = store.UpdatePage("missing", db.UpdatePageParams{Name: &name})
	assert.ErrorIs(t, err, db.ErrPageNotFound)
}

func TestDeletePage(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	removed, err := store.DeletePage("morning-news")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = store.GetPage("morning-news")
	assert.ErrorIs(t, err, db.ErrPageNotFound)

	removed, err = store.DeletePage("morning-news")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReorderPages(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)
	_, err = store.CreatePage(db.CreatePageParams{
		Name:  "Tech",
		Feeds: []models.NewFeed{{URL: "https://arstechnica.com/feed/"}},
	})
	require.NoError(t, err)

	reordered, err := store.ReorderPages([]string{"tech", "morning-news"})
	require.NoError(t, err)
	require.Len(t, reordered, 2)
	assert.Equal(t, "tech", reordered[0].ID)
	assert.Equal(t, "morning-news", reordered[1].ID)
}

func TestReorderPagesValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreatePage(newsPage())
	require.NoError(t, err)

	tests := []struct {
		name        string
		pageIDs     []string
		expectedErr string
	}{
		{
			name:        "empty order",
			pageIDs:     nil,
			expectedErr: "Feed order is required.",
		},
		{
			name:        "duplicates",
			pageIDs:     []string{"morning-news", "morning-news"},
			expectedErr: "Feed order contains duplicate entries.",
		},
		{
			name:        "incomplete order",
			pageIDs:     []string{"morning-news", "extra"},
			expectedErr: "Feed order must include all feeds.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ReorderPages(tt.pageIDs)
			require.Error(t, err)
			assert.Equal(t, tt.expectedErr, err.Error())
		})
	}

	t.Run("unknown page id", func(t *testing.T) {
		_, err := store.ReorderPages([]string{"nope"})
		require.Error(t, err)
		assert.Equal(t, `Feed "nope" was not found.`, err.Error())
	})
}
