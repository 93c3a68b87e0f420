package server

import (
	"errors"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"lightfeed/db"
	"lightfeed/feeds"
	"lightfeed/models"
	"lightfeed/rss"
)

// Blend sizes for the different views. A named page shows a tighter list than
// the home and preview surfaces.
const (
	pageBlendSize    = 24
	previewBlendSize = 28
)

type ServerConfig struct {
	// The store backing pages and saved articles
	Store *db.Store

	// The streamer running fetch+blend for feed mixes
	Streamer *rss.Streamer
}

func dataResponse(c *fiber.Ctx, status int, data any, meta fiber.Map) error {
	return c.Status(status).JSON(fiber.Map{"data": data, "meta": meta})
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	if errors.Is(err, db.ErrPageNotFound) {
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Returns a fiber.App instance serving the lightfeed HTTP API.
func Server(config *ServerConfig) *fiber.App {
	store := config.Store
	streamer := config.Streamer

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Cache-Control, Content-Type",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/pages", func(c *fiber.Ctx) error {
		pages, err := store.ListPagesWithStats()
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Error listing pages")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list feeds."})
		}

		return dataResponse(c, fiber.StatusOK, pages, fiber.Map{
			"source": "sqlite",
			"note":   "Feeds are persisted locally in SQLite storage.",
		})
	})

	app.Post("/api/pages", func(c *fiber.Ctx) error {
		var payload struct {
			Name       string           `json:"name"`
			IsHomepage bool             `json:"isHomepage"`
			Feeds      []models.NewFeed `json:"feeds"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request payload."})
		}

		normalized, err := rss.NormalizeRequestFeeds(payload.Feeds, rss.MaxFeedsPerRequest)
		if err != nil {
			return errorResponse(c, err)
		}

		created, err := store.CreatePage(db.CreatePageParams{
			Name:       payload.Name,
			IsHomepage: payload.IsHomepage,
			Feeds:      normalized,
		})
		if err != nil {
			return errorResponse(c, err)
		}

		return dataResponse(c, fiber.StatusCreated, created, fiber.Map{"source": "sqlite"})
	})

	app.Patch("/api/pages", func(c *fiber.Ctx) error {
		var payload struct {
			PageIDs []string `json:"pageIds"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request payload."})
		}

		reordered, err := store.ReorderPages(payload.PageIDs)
		if err != nil {
			return errorResponse(c, err)
		}

		return dataResponse(c, fiber.StatusOK, reordered, fiber.Map{"source": "sqlite"})
	})

	app.Get("/api/pages/:pageId", func(c *fiber.Ctx) error {
		page, err := store.GetPage(c.Params("pageId"))
		if err != nil {
			return errorResponse(c, err)
		}

		mix, err := store.ListPageFeedMix(page.ID)
		if err != nil {
			return errorResponse(c, err)
		}

		stream := streamer.Stream(c.Context(), mix, pageBlendSize)
		markSavedItems(store, stream.Items)

		return dataResponse(c, fiber.StatusOK, fiber.Map{
			"id":         page.ID,
			"name":       page.Name,
			"isHomepage": page.IsHomepage,
			"sortOrder":  page.SortOrder,
			"createdAt":  page.CreatedAt,
			"feedMix":    mix,
			"items":      stream.Items,
			"feedErrors": stream.FeedErrors,
			"fetchedAt":  stream.FetchedAt,
		}, fiber.Map{
			"source": "rss",
			"note":   "Live RSS results are sorted by publish date (newest first).",
		})
	})

	app.Patch("/api/pages/:pageId", func(c *fiber.Ctx) error {
		var payload struct {
			Name       *string           `json:"name"`
			IsHomepage *bool             `json:"isHomepage"`
			Feeds      *[]models.NewFeed `json:"feeds"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request payload."})
		}

		params := db.UpdatePageParams{
			Name:       payload.Name,
			IsHomepage: payload.IsHomepage,
		}

		if payload.Feeds != nil {
			normalized, err := rss.NormalizeRequestFeeds(*payload.Feeds, rss.MaxFeedsPerRequest)
			if err != nil {
				return errorResponse(c, err)
			}
			params.Feeds = &normalized
		}

		updated, err := store.UpdatePage(c.Params("pageId"), params)
		if err != nil {
			return errorResponse(c, err)
		}

		return dataResponse(c, fiber.StatusOK, updated, fiber.Map{"source": "sqlite"})
	})

	app.Delete("/api/pages/:pageId", func(c *fiber.Ctx) error {
		removed, err := store.DeletePage(c.Params("pageId"))
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Error deleting page")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete feed."})
		}
		if !removed {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Feed not found."})
		}

		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/api/home", func(c *fiber.Ctx) error {
		page, err := store.Homepage()
		if errors.Is(err, db.ErrPageNotFound) {
			// Fresh install with no pages yet: an empty blend, not an error.
			return dataResponse(c, fiber.StatusOK, fiber.Map{
				"page":       nil,
				"items":      []models.Article{},
				"feedErrors": []models.FeedError{},
			}, fiber.Map{"source": "rss"})
		}
		if err != nil {
			return errorResponse(c, err)
		}

		mix, err := store.ListPageFeedMix(page.ID)
		if err != nil {
			return errorResponse(c, err)
		}

		stream := streamer.Stream(c.Context(), mix, previewBlendSize)
		markSavedItems(store, stream.Items)

		return dataResponse(c, fiber.StatusOK, fiber.Map{
			"page":       page,
			"feedMix":    mix,
			"items":      stream.Items,
			"feedErrors": stream.FeedErrors,
			"fetchedAt":  stream.FetchedAt,
		}, fiber.Map{"source": "rss"})
	})

	app.Post("/api/preview", func(c *fiber.Ctx) error {
		var payload struct {
			Feeds []models.NewFeed `json:"feeds"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request payload."})
		}

		normalized, err := rss.NormalizeRequestFeeds(payload.Feeds, rss.MaxFeedsPerRequest)
		if err != nil {
			return errorResponse(c, err)
		}

		mix := rss.NormalizeFeedMix(lo.Map(normalized, func(feed models.NewFeed, _ int) models.FeedSource {
			return models.FeedSource{Title: feed.Title, URL: feed.URL}
		}))

		stream := streamer.Stream(c.Context(), mix, previewBlendSize)

		return dataResponse(c, fiber.StatusOK, fiber.Map{
			"feedMix":    mix,
			"items":      stream.Items,
			"feedErrors": stream.FeedErrors,
			"fetchedAt":  stream.FetchedAt,
		}, fiber.Map{"source": "rss-preview"})
	})

	app.Get("/api/catalog", func(c *fiber.Ctx) error {
		catalog, err := feeds.LoadCatalog()
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Error loading preset catalog")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load catalog."})
		}

		return dataResponse(c, fiber.StatusOK, catalog.Categories, fiber.Map{"source": "catalog"})
	})

	app.Get("/api/saved-articles", func(c *fiber.Ctx) error {
		articles, err := store.ListSavedArticles(c.QueryInt("limit"))
		if err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Error listing saved articles")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list saved articles."})
		}

		return dataResponse(c, fiber.StatusOK, articles, fiber.Map{
			"source": "sqlite",
			"note":   "Saved articles are persisted locally for this instance.",
		})
	})

	app.Post("/api/saved-articles", func(c *fiber.Ctx) error {
		var payload struct {
			Article models.Article `json:"article"`
			Page    struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"page"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request payload."})
		}

		saved, err := store.SaveArticle(payload.Article, payload.Page.ID, payload.Page.Name)
		if err != nil {
			return errorResponse(c, err)
		}

		return dataResponse(c, fiber.StatusCreated, saved, fiber.Map{"source": "sqlite"})
	})

	app.Delete("/api/saved-articles", func(c *fiber.Ctx) error {
		var payload struct {
			Link string `json:"link"`
		}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request payload."})
		}

		removed, err := store.RemoveSavedArticle(payload.Link)
		if err != nil {
			return errorResponse(c, err)
		}
		if !removed {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Article not found."})
		}

		return c.JSON(fiber.Map{"ok": true})
	})

	return app
}

// markSavedItems flags blended items the user has already bookmarked. A
// lookup failure only loses the flags, never the blend.
func markSavedItems(store *db.Store, items []models.Article) {
	links := lo.Map(items, func(item models.Article, _ int) string {
		return item.Link
	})

	saved, err := store.SavedLinks(links)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Error looking up saved links")
		return
	}

	for index := range items {
		items[index].Saved = saved[items[index].Link]
	}
}
