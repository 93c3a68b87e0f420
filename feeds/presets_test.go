package feeds_test

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightfeed/db"
	"lightfeed/feeds"
)

func TestLoadCatalog(t *testing.T) {
	catalog, err := feeds.LoadCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, catalog.Categories)

	homepages := 0
	for _, category := range catalog.Categories {
		assert.NotEmpty(t, category.ID)
		assert.NotEmpty(t, category.Name)
		assert.NotEmpty(t, category.Feeds)

		if category.Homepage {
			homepages++
		}

		for _, feed := range category.Feeds {
			assert.NotEmpty(t, feed.Title)

			parsed, err := url.Parse(feed.URL)
			require.NoError(t, err, "catalog url: %s", feed.URL)
			assert.Equal(t, "https", parsed.Scheme)
			assert.NotEmpty(t, parsed.Host)
		}
	}

	assert.Equal(t, 1, homepages, "exactly one preset category is the homepage")
}

func TestSeed(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	require.NoError(t, db.Migrate(dbPath))

	store, err := db.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, feeds.Seed(store))

	catalog, err := feeds.LoadCatalog()
	require.NoError(t, err)

	pages, err := store.ListPagesWithStats()
	require.NoError(t, err)
	require.Len(t, pages, len(catalog.Categories))

	for i, category := range catalog.Categories {
		assert.Equal(t, category.ID, pages[i].ID)
		assert.Equal(t, category.Name, pages[i].Name)
		assert.Equal(t, len(category.Feeds), pages[i].FeedCount)
	}

	home, err := store.Homepage()
	require.NoError(t, err)
	assert.True(t, home.IsHomepage)

	// Seeding again must not duplicate the pages.
	require.NoError(t, feeds.Seed(store))
	again, err := store.ListPages()
	require.NoError(t, err)
	assert.Len(t, again, len(catalog.Categories))
}
