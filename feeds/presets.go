// Package feeds holds the preset feed catalog used to seed a fresh database
// and to back the feed picker.
package feeds

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"lightfeed/db"
	"lightfeed/models"
)

//go:embed catalog.toml
var catalogToml []byte

type CatalogFeed struct {
	Title string `toml:"title" json:"title"`
	URL   string `toml:"url" json:"url"`
}

type CatalogCategory struct {
	ID       string        `toml:"id" json:"id"`
	Name     string        `toml:"name" json:"name"`
	Homepage bool          `toml:"homepage" json:"homepage"`
	Feeds    []CatalogFeed `toml:"feeds" json:"feeds"`
}

type Catalog struct {
	Categories []CatalogCategory `toml:"categories" json:"categories"`
}

// LoadCatalog parses the embedded preset catalog.
func LoadCatalog() (*Catalog, error) {
	var catalog Catalog
	if err := toml.Unmarshal(catalogToml, &catalog); err != nil {
		return nil, fmt.Errorf("error parsing preset catalog: %w", err)
	}

	return &catalog, nil
}

// Seed creates one page per catalog category. A database that already has
// pages is left alone, so seeding is safe to run on every start.
func Seed(store *db.Store) error {
	existing, err := store.ListPages()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	catalog, err := LoadCatalog()
	if err != nil {
		return err
	}

	for _, category := range catalog.Categories {
		newFeeds := make([]models.NewFeed, 0, len(category.Feeds))
		for _, feed := range category.Feeds {
			newFeeds = append(newFeeds, models.NewFeed{
				URL:   feed.URL,
				Title: feed.Title,
			})
		}

		if _, err := store.CreatePage(db.CreatePageParams{
			ID:         category.ID,
			Name:       category.Name,
			IsHomepage: category.Homepage,
			Feeds:      newFeeds,
		}); err != nil {
			return fmt.Errorf("error seeding page %s: %w", category.ID, err)
		}

		log.WithFields(log.Fields{
			"page":  category.ID,
			"feeds": len(newFeeds),
		}).Info("Seeded preset page")
	}

	return nil
}
