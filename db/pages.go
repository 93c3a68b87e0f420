package db

import (
	"database/sql"
	"errors"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"lightfeed/models"
	"lightfeed/rss"
)

// ErrPageNotFound is returned when a page id does not exist. The user-facing
// name for a page is "feed", hence the message.
var ErrPageNotFound = errors.New("Feed not found.")

// PageWithMix is the creation/update result: the page plus its feed mix.
type PageWithMix struct {
	Page    models.Page         `json:"page"`
	FeedMix []models.FeedSource `json:"feedMix"`
}

// CreatePageParams describes a new page. ID is an optional preferred slug;
// the stored id gets a numeric suffix when it is already taken.
type CreatePageParams struct {
	ID         string
	Name       string
	IsHomepage bool
	CreatedAt  string
	Feeds      []models.NewFeed
}

// UpdatePageParams carries partial updates; nil fields are left untouched.
type UpdatePageParams struct {
	Name       *string
	IsHomepage *bool
	Feeds      *[]models.NewFeed
}

const pageColumns = "id, name, is_homepage, sort_order, created_at"

func scanPage(row interface{ Scan(...any) error }) (models.Page, error) {
	var page models.Page
	var isHomepage int
	if err := row.Scan(&page.ID, &page.Name, &isHomepage, &page.SortOrder, &page.CreatedAt); err != nil {
		return models.Page{}, err
	}
	page.IsHomepage = isHomepage != 0
	return page, nil
}

// ListPages returns all pages in display order.
func (s *Store) ListPages() ([]models.Page, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(pageColumns).From("pages")
	sb.OrderBy("sort_order ASC", "created_at ASC", "id ASC")

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// ListPagesWithStats returns all pages plus the number of feeds in each mix.
func (s *Store) ListPagesWithStats() ([]models.PageStats, error) {
	rows, err := s.db.Query(`
		SELECT
			p.id,
			p.name,
			p.is_homepage,
			p.sort_order,
			p.created_at,
			COUNT(pf.feed_id) AS feed_count
		FROM pages p
		LEFT JOIN page_feeds pf ON pf.page_id = p.id
		GROUP BY p.id
		ORDER BY p.sort_order ASC, p.created_at ASC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	pages := []models.PageStats{}
	for rows.Next() {
		var stats models.PageStats
		var isHomepage int
		if err := rows.Scan(&stats.ID, &stats.Name, &isHomepage, &stats.SortOrder, &stats.CreatedAt, &stats.FeedCount); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		stats.IsHomepage = isHomepage != 0
		pages = append(pages, stats)
	}

	return pages, rows.Err()
}

// GetPage looks up one page by id.
func (s *Store) GetPage(pageID string) (models.Page, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(pageColumns).From("pages")
	sb.Where(sb.Equal("id", pageID))
	sb.Limit(1)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)
	page, err := scanPage(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Page{}, ErrPageNotFound
	}
	if err != nil {
		return models.Page{}, fmt.Errorf("query error: %w", err)
	}

	return page, nil
}

// Homepage returns the page marked as homepage, falling back to the first
// page in display order.
func (s *Store) Homepage() (models.Page, error) {
	row := s.db.QueryRow(`
		SELECT ` + pageColumns + `
		FROM pages
		ORDER BY is_homepage DESC, sort_order ASC, created_at ASC
		LIMIT 1`)

	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Page{}, ErrPageNotFound
	}
	if err != nil {
		return models.Page{}, fmt.Errorf("query error: %w", err)
	}

	return page, nil
}

// ListPageFeedMix returns the ordered feed mix for one page.
func (s *Store) ListPageFeedMix(pageID string) ([]models.FeedSource, error) {
	rows, err := s.db.Query(`
		SELECT pf.feed_id, f.title, f.url
		FROM page_feeds pf
		JOIN feeds f ON f.id = pf.feed_id
		WHERE pf.page_id = ?
		ORDER BY f.title COLLATE NOCASE ASC, pf.feed_id ASC`, pageID)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	mix := []models.FeedSource{}
	for rows.Next() {
		var source models.FeedSource
		var title sql.NullString
		if err := rows.Scan(&source.FeedID, &title, &source.URL); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		source.Title = title.String
		if source.Title == "" {
			source.Title = "Unknown Feed"
		}
		mix = append(mix, source)
	}

	return mix, rows.Err()
}

// makePageID turns the requested id or page name into a unique slug,
// suffixing -2, -3, ... on collision.
func (s *Store) makePageID(requestedID, pageName string) (string, error) {
	base := slugify(requestedID)
	if base == "" {
		base = slugify(pageName)
	}
	if base == "" {
		base = "feed"
	}

	candidate := base
	for suffix := 2; ; suffix++ {
		var exists int
		err := s.db.QueryRow("SELECT 1 FROM pages WHERE id = ? LIMIT 1", candidate).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("query error: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func normalizeNewFeeds(feeds []models.NewFeed) ([]models.NewFeed, error) {
	if len(feeds) == 0 {
		return nil, errors.New("At least one feed is required.")
	}

	normalized := make([]models.NewFeed, 0, len(feeds))
	seen := make(map[string]struct{}, len(feeds))
	for _, feed := range feeds {
		if _, ok := seen[feed.URL]; ok {
			return nil, errors.New("Duplicate feed URLs are not allowed.")
		}
		seen[feed.URL] = struct{}{}

		if feed.Title == "" {
			feed.Title = rss.InferFeedTitle(feed.URL)
		}
		normalized = append(normalized, feed)
	}

	return normalized, nil
}

func cleanupOrphanFeeds(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DELETE FROM feeds
		WHERE id NOT IN (SELECT DISTINCT feed_id FROM page_feeds)`)
	return err
}

// writePageFeedMix upserts the feed rows and links them to the page. With
// replaceExisting the previous mix is dropped first and orphans cleaned up.
func writePageFeedMix(tx *sql.Tx, pageID string, feeds []models.NewFeed, createdAt string, replaceExisting bool) error {
	if replaceExisting {
		if _, err := tx.Exec("DELETE FROM page_feeds WHERE page_id = ?", pageID); err != nil {
			return err
		}
	}

	for _, feed := range feeds {
		feedID := makeFeedID(feed.URL)

		_, err := tx.Exec(`
			INSERT INTO feeds (id, url, title, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = COALESCE(excluded.title, feeds.title)`,
			feedID, feed.URL, nullableText(feed.Title), createdAt)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO page_feeds (page_id, feed_id)
			VALUES (?, ?)`, pageID, feedID); err != nil {
			return err
		}
	}

	if replaceExisting {
		return cleanupOrphanFeeds(tx)
	}
	return nil
}

// CreatePage stores a new page and its feed mix. Validation failures surface
// before any write.
func (s *Store) CreatePage(params CreatePageParams) (PageWithMix, error) {
	if params.Name == "" {
		return PageWithMix{}, errors.New("Feed name is required.")
	}

	feeds, err := normalizeNewFeeds(params.Feeds)
	if err != nil {
		return PageWithMix{}, err
	}

	pageID, err := s.makePageID(params.ID, params.Name)
	if err != nil {
		return PageWithMix{}, err
	}

	createdAt := params.CreatedAt
	if createdAt == "" {
		createdAt = nowISO()
	}

	var nextSortOrder int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(sort_order), 0) + 1 FROM pages").Scan(&nextSortOrder); err != nil {
		return PageWithMix{}, fmt.Errorf("query error: %w", err)
	}

	err = s.withWriteTx(func(tx *sql.Tx) error {
		if params.IsHomepage {
			if _, err := tx.Exec("UPDATE pages SET is_homepage = 0 WHERE is_homepage = 1"); err != nil {
				return err
			}
		}

		isHomepage := 0
		if params.IsHomepage {
			isHomepage = 1
		}

		if _, err := tx.Exec(`
			INSERT INTO pages (id, name, is_homepage, sort_order, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			pageID, params.Name, isHomepage, nextSortOrder, createdAt); err != nil {
			return err
		}

		return writePageFeedMix(tx, pageID, feeds, createdAt, false)
	})
	if err != nil {
		return PageWithMix{}, err
	}

	log.WithFields(log.Fields{
		"page":  pageID,
		"feeds": len(feeds),
	}).Info("Created page")

	return s.pageWithMix(pageID)
}

// UpdatePage applies a partial update to a page and optionally replaces its
// feed mix.
func (s *Store) UpdatePage(pageID string, params UpdatePageParams) (PageWithMix, error) {
	existing, err := s.GetPage(pageID)
	if err != nil {
		return PageWithMix{}, err
	}

	if params.Name == nil && params.IsHomepage == nil && params.Feeds == nil {
		return PageWithMix{}, errors.New("No updates were provided.")
	}

	nextName := existing.Name
	if params.Name != nil {
		if *params.Name == "" {
			return PageWithMix{}, errors.New("Feed name is required.")
		}
		nextName = *params.Name
	}

	nextIsHomepage := existing.IsHomepage
	if params.IsHomepage != nil {
		nextIsHomepage = *params.IsHomepage
	}

	var feeds []models.NewFeed
	if params.Feeds != nil {
		feeds, err = normalizeNewFeeds(*params.Feeds)
		if err != nil {
			return PageWithMix{}, err
		}
	}

	err = s.withWriteTx(func(tx *sql.Tx) error {
		if nextIsHomepage {
			if _, err := tx.Exec("UPDATE pages SET is_homepage = 0 WHERE id != ? AND is_homepage = 1", pageID); err != nil {
				return err
			}
		}

		isHomepage := 0
		if nextIsHomepage {
			isHomepage = 1
		}

		if _, err := tx.Exec(`
			UPDATE pages SET name = ?, is_homepage = ? WHERE id = ?`,
			nextName, isHomepage, pageID); err != nil {
			return err
		}

		if feeds != nil {
			return writePageFeedMix(tx, pageID, feeds, nowISO(), true)
		}
		return nil
	})
	if err != nil {
		return PageWithMix{}, err
	}

	return s.pageWithMix(pageID)
}

// DeletePage removes a page, its mix links and any feeds left orphaned.
func (s *Store) DeletePage(pageID string) (bool, error) {
	if _, err := s.GetPage(pageID); errors.Is(err, ErrPageNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	err := s.withWriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM pages WHERE id = ?", pageID); err != nil {
			return err
		}
		return cleanupOrphanFeeds(tx)
	})
	if err != nil {
		return false, err
	}

	log.WithFields(log.Fields{"page": pageID}).Info("Deleted page")
	return true, nil
}

// ReorderPages rewrites the sort order from a complete permutation of page ids.
func (s *Store) ReorderPages(pageIDs []string) ([]models.Page, error) {
	if len(pageIDs) == 0 {
		return nil, errors.New("Feed order is required.")
	}

	unique := make(map[string]struct{}, len(pageIDs))
	for _, pageID := range pageIDs {
		if _, ok := unique[pageID]; ok {
			return nil, errors.New("Feed order contains duplicate entries.")
		}
		unique[pageID] = struct{}{}
	}

	existing, err := s.ListPages()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return []models.Page{}, nil
	}
	if len(pageIDs) != len(existing) {
		return nil, errors.New("Feed order must include all feeds.")
	}

	existingIDs := make(map[string]struct{}, len(existing))
	for _, page := range existing {
		existingIDs[page.ID] = struct{}{}
	}
	for _, pageID := range pageIDs {
		if _, ok := existingIDs[pageID]; !ok {
			return nil, fmt.Errorf("Feed %q was not found.", pageID)
		}
	}

	err = s.withWriteTx(func(tx *sql.Tx) error {
		for index, pageID := range pageIDs {
			if _, err := tx.Exec("UPDATE pages SET sort_order = ? WHERE id = ?", index+1, pageID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.ListPages()
}

func (s *Store) pageWithMix(pageID string) (PageWithMix, error) {
	page, err := s.GetPage(pageID)
	if err != nil {
		return PageWithMix{}, err
	}

	mix, err := s.ListPageFeedMix(pageID)
	if err != nil {
		return PageWithMix{}, err
	}

	return PageWithMix{Page: page, FeedMix: mix}, nil
}
