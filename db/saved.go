package db

import (
	"database/sql"
	"errors"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"

	"lightfeed/models"
)

const savedArticleColumns = `id, article_id, title, link, summary, image_url,
	source_feed_id, source_title, source_url, published_at, published_label,
	page_id, page_name, saved_at`

func scanSavedArticle(row interface{ Scan(...any) error }) (models.SavedArticle, error) {
	var article models.SavedArticle
	var articleID, summary, imageURL, sourceFeedID, sourceTitle, sourceURL,
		publishedAt, publishedLabel, pageID, pageName sql.NullString

	err := row.Scan(
		&article.ID, &articleID, &article.Title, &article.Link, &summary,
		&imageURL, &sourceFeedID, &sourceTitle, &sourceURL, &publishedAt,
		&publishedLabel, &pageID, &pageName, &article.SavedAt)
	if err != nil {
		return models.SavedArticle{}, err
	}

	article.ArticleID = articleID.String
	article.Summary = summary.String
	article.ImageURL = imageURL.String
	article.SourceFeedID = sourceFeedID.String
	article.SourceTitle = sourceTitle.String
	article.SourceURL = sourceURL.String
	article.PublishedAt = publishedAt.String
	article.PublishedLabel = publishedLabel.String
	article.PageID = pageID.String
	article.PageName = pageName.String

	return article, nil
}

// ListSavedArticles returns bookmarks, newest save first.
func (s *Store) ListSavedArticles(limit int) ([]models.SavedArticle, error) {
	if limit <= 0 {
		limit = 500
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(savedArticleColumns).From("saved_articles")
	sb.OrderBy("saved_at").Desc()
	sb.Limit(limit)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	articles := []models.SavedArticle{}
	for rows.Next() {
		article, err := scanSavedArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		articles = append(articles, article)
	}

	return articles, rows.Err()
}

// SavedLinks reports which of the given article links are already saved, so
// the blend view can mark bookmarked items.
func (s *Store) SavedLinks(links []string) (map[string]bool, error) {
	saved := map[string]bool{}
	if len(links) == 0 {
		return saved, nil
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("link").From("saved_articles")
	sb.Where(sb.In("link", sqlbuilder.Flatten(links)...))

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		saved[link] = true
	}

	return saved, rows.Err()
}

// SaveArticle bookmarks an article snapshot. Saving the same link again
// replaces the stored snapshot and bumps it to the top of the list.
func (s *Store) SaveArticle(article models.Article, pageID, pageName string) (models.SavedArticle, error) {
	if article.Link == "" {
		return models.SavedArticle{}, errors.New("Article link is required.")
	}
	if article.Title == "" {
		return models.SavedArticle{}, errors.New("Article title is required.")
	}

	savedAt := nowISO()

	err := s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO saved_articles (
				id, article_id, title, link, summary, image_url,
				source_feed_id, source_title, source_url, published_at,
				published_label, page_id, page_name, saved_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(link) DO UPDATE SET
				article_id = excluded.article_id,
				title = excluded.title,
				summary = excluded.summary,
				image_url = excluded.image_url,
				source_feed_id = excluded.source_feed_id,
				source_title = excluded.source_title,
				source_url = excluded.source_url,
				published_at = excluded.published_at,
				published_label = excluded.published_label,
				page_id = excluded.page_id,
				page_name = excluded.page_name,
				saved_at = excluded.saved_at`,
			makeSavedArticleID(article.Link),
			nullableText(article.ID),
			article.Title,
			article.Link,
			nullableText(article.Summary),
			nullableText(article.ImageURL),
			nullableText(article.SourceFeedID),
			nullableText(article.SourceTitle),
			nullableText(article.SourceURL),
			nullableText(article.PublishedAt),
			nullableText(article.PublishedLabel),
			nullableText(pageID),
			nullableText(pageName),
			savedAt)
		return err
	})
	if err != nil {
		return models.SavedArticle{}, err
	}

	row := s.db.QueryRow(`
		SELECT `+savedArticleColumns+`
		FROM saved_articles
		WHERE link = ?
		LIMIT 1`, article.Link)

	return scanSavedArticle(row)
}

// RemoveSavedArticle deletes a bookmark by link. Returns false when nothing
// was saved under that link.
func (s *Store) RemoveSavedArticle(link string) (bool, error) {
	if link == "" {
		return false, errors.New("Article link is required.")
	}

	var removed bool
	err := s.withWriteTx(func(tx *sql.Tx) error {
		result, err := tx.Exec("DELETE FROM saved_articles WHERE link = ?", link)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		removed = affected > 0
		return nil
	})

	return removed, err
}
