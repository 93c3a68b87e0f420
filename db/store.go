package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Store handles all database operations with a shared connection pool.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := connection(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var busyRe = regexp.MustCompile(`(?i)database is locked|database is busy|SQLITE_BUSY`)

func isBusyError(err error) bool {
	return err != nil && busyRe.MatchString(err.Error())
}

// withWriteTx runs fn inside a transaction, retrying a few times when another
// writer holds the database.
func (s *Store) withWriteTx(fn func(tx *sql.Tx) error) error {
	operation := func() error {
		tx, err := s.db.Begin()
		if err != nil {
			if isBusyError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if err := fn(tx); err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.WithFields(log.Fields{"error": rollbackErr}).Warn("Rollback failed")
			}
			if isBusyError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if err := tx.Commit(); err != nil {
			if isBusyError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 3)
	return backoff.Retry(operation, policy)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(value string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(value), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	return slug
}

// makeFeedID derives a stable feed id from its URL, so the same URL shared by
// several pages maps to a single feeds row.
func makeFeedID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "feed-" + hex.EncodeToString(sum[:])[:24]
}

func makeSavedArticleID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])[:24]
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func nullableText(value string) sql.NullString {
	trimmed := strings.TrimSpace(value)
	return sql.NullString{String: trimmed, Valid: trimmed != ""}
}
