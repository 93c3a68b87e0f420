package rss

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"time"

	"lightfeed/models"
)

// Feeds routinely lie about their size; never process more than this many
// item/entry blocks from a single document.
const maxItemsPerFeed = 30

// Block and field patterns. Real-world feeds are frequently non-conformant,
// so every field is extracted with an ordered first-match-wins pattern list
// instead of a strict XML decode.
var (
	itemBlockRe  = regexp.MustCompile(`(?is)<item\b.*?</item>`)
	entryBlockRe = regexp.MustCompile(`(?is)<entry\b.*?</entry>`)
	channelRe    = regexp.MustCompile(`(?is)<channel\b.*?</channel>`)
	feedTagRe    = regexp.MustCompile(`(?is)<feed\b.*?</feed>`)

	titleRe          = regexp.MustCompile(`(?is)<title(?:\s[^>]*)?>(.*?)</title>`)
	linkTextRe       = regexp.MustCompile(`(?is)<link(?:\s[^>]*)?>(.*?)</link>`)
	guidRe           = regexp.MustCompile(`(?is)<guid(?:\s[^>]*)?>(.*?)</guid>`)
	descriptionRe    = regexp.MustCompile(`(?is)<description(?:\s[^>]*)?>(.*?)</description>`)
	contentEncodedRe = regexp.MustCompile(`(?is)<content:encoded(?:\s[^>]*)?>(.*?)</content:encoded>`)
	contentRe        = regexp.MustCompile(`(?is)<content(?:\s[^>]*)?>(.*?)</content>`)
	summaryRe        = regexp.MustCompile(`(?is)<summary(?:\s[^>]*)?>(.*?)</summary>`)
	pubDateRe        = regexp.MustCompile(`(?is)<pubDate(?:\s[^>]*)?>(.*?)</pubDate>`)
	dcDateRe         = regexp.MustCompile(`(?is)<dc:date(?:\s[^>]*)?>(.*?)</dc:date>`)
	publishedRe      = regexp.MustCompile(`(?is)<published(?:\s[^>]*)?>(.*?)</published>`)
	updatedRe        = regexp.MustCompile(`(?is)<updated(?:\s[^>]*)?>(.*?)</updated>`)
	idTagRe          = regexp.MustCompile(`(?is)<id(?:\s[^>]*)?>(.*?)</id>`)
	urlTagRe         = regexp.MustCompile(`(?is)<url(?:\s[^>]*)?>(.*?)</url>`)
	logoRe           = regexp.MustCompile(`(?is)<logo(?:\s[^>]*)?>(.*?)</logo>`)
	iconRe           = regexp.MustCompile(`(?is)<icon(?:\s[^>]*)?>(.*?)</icon>`)
	imageBlockRe     = regexp.MustCompile(`(?is)<image\b.*?</image>`)

	mediaContentRe      = regexp.MustCompile(`(?i)<media:content\b[^>]*\burl=["']([^"']+)["'][^>]*>`)
	mediaThumbnailRe    = regexp.MustCompile(`(?i)<media:thumbnail\b[^>]*\burl=["']([^"']+)["'][^>]*>`)
	enclosureURLFirstRe = regexp.MustCompile(`(?i)<enclosure\b[^>]*\burl=["']([^"']+)["'][^>]*\btype=["']image/[^"']*["'][^>]*>`)
	enclosureURLLastRe  = regexp.MustCompile(`(?i)<enclosure\b[^>]*\btype=["']image/[^"']*["'][^>]*\burl=["']([^"']+)["'][^>]*>`)
	itunesImageRe       = regexp.MustCompile(`(?i)<itunes:image\b[^>]*\bhref=["']([^"']+)["'][^>]*>`)
	googleplayImageRe   = regexp.MustCompile(`(?i)<googleplay:image\b[^>]*\bhref=["']([^"']+)["'][^>]*>`)

	atomEnclosureHrefLastRe  = regexp.MustCompile(`(?i)<link\b[^>]*\brel=["']enclosure["'][^>]*\bhref=["']([^"']+)["'][^>]*\btype=["']image/[^"']*["'][^>]*/?>`)
	atomEnclosureHrefFirstRe = regexp.MustCompile(`(?i)<link\b[^>]*\btype=["']image/[^"']*["'][^>]*\bhref=["']([^"']+)["'][^>]*\brel=["']enclosure["'][^>]*/?>`)
	atomAlternateLinkTagRe   = regexp.MustCompile(`(?i)<link\b[^>]*\brel=["']alternate["'][^>]*>`)
	atomAnyLinkTagRe         = regexp.MustCompile(`(?i)<link\b[^>]*>`)
	hrefAttrRe               = regexp.MustCompile(`(?i)\bhref=["']([^"']+)["']`)

	imgSrcRe = regexp.MustCompile(`(?i)<img[^>]*\bsrc=["']([^"']+)["'][^>]*>`)
)

// ParsedFeed is the outcome of parsing one feed document.
type ParsedFeed struct {
	FeedTitle string
	FeedImage string
	Items     []models.Article
}

// firstMatch returns the first capture group of the first pattern that matches.
func firstMatch(input string, patterns ...*regexp.Regexp) string {
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(input); m != nil && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

func firstDecodedMatch(input string, patterns ...*regexp.Regexp) string {
	return DecodeEntities(firstMatch(input, patterns...))
}

// resolveURL resolves raw against base, falling back when raw is empty or
// unresolvable.
func resolveURL(raw, base, fallback string) string {
	if raw == "" {
		return fallback
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return fallback
	}

	resolved, err := baseURL.Parse(raw)
	if err != nil {
		return fallback
	}

	return resolved.String()
}

// resolveArticleURL resolves an item link against the feed URL; an empty
// result means the item has no usable link and gets dropped.
func resolveArticleURL(raw, base string) string {
	return resolveURL(raw, base, "")
}

func extractImageFromHTML(raw, baseURL string) string {
	src := firstDecodedMatch(raw, imgSrcRe)
	return resolveURL(src, baseURL, baseURL)
}

// extractItemImage tries the tag patterns first, then falls back to scanning
// the raw summary/content HTML for an <img src>. An image that resolves to the
// feed's own URL means extraction fell through to the base, i.e. no image.
func extractItemImage(block, feedURL string, htmlCandidates []string, tagPatterns ...*regexp.Regexp) string {
	if tagImage := firstDecodedMatch(block, tagPatterns...); tagImage != "" {
		resolved := resolveURL(tagImage, feedURL, feedURL)
		if resolved == feedURL {
			return ""
		}
		return resolved
	}

	for _, candidate := range htmlCandidates {
		if image := extractImageFromHTML(candidate, feedURL); image != feedURL {
			return image
		}
	}

	return ""
}

func extractRSSItemImage(block, feedURL string, htmlCandidates []string) string {
	return extractItemImage(block, feedURL, htmlCandidates,
		mediaContentRe,
		mediaThumbnailRe,
		enclosureURLFirstRe,
		enclosureURLLastRe,
		itunesImageRe,
	)
}

func extractAtomItemImage(block, feedURL string, htmlCandidates []string) string {
	return extractItemImage(block, feedURL, htmlCandidates,
		mediaContentRe,
		mediaThumbnailRe,
		atomEnclosureHrefLastRe,
		atomEnclosureHrefFirstRe,
	)
}

func extractRSSFeedTitle(xml string) string {
	channel := channelRe.FindString(xml)
	if channel == "" {
		return ""
	}
	return ToPlainText(firstMatch(channel, titleRe))
}

func extractAtomFeedTitle(xml string) string {
	feed := feedTagRe.FindString(xml)
	if feed == "" {
		return ""
	}
	return ToPlainText(firstMatch(feed, titleRe))
}

func extractRSSFeedImage(xml, feedURL string) string {
	channel := channelRe.FindString(xml)
	if channel == "" {
		return ""
	}

	// Standard RSS <image><url> first.
	if imageBlock := imageBlockRe.FindString(channel); imageBlock != "" {
		if rawURL := firstMatch(imageBlock, urlTagRe); rawURL != "" {
			return resolveURL(ToPlainText(rawURL), feedURL, feedURL)
		}
	}

	if podcastImage := firstMatch(channel, itunesImageRe, googleplayImageRe); podcastImage != "" {
		return resolveURL(podcastImage, feedURL, feedURL)
	}

	if thumbnail := firstMatch(channel, mediaThumbnailRe); thumbnail != "" {
		return resolveURL(thumbnail, feedURL, feedURL)
	}

	if logo := ToPlainText(firstMatch(channel, logoRe)); logo != "" {
		return resolveURL(logo, feedURL, feedURL)
	}

	return ""
}

func extractAtomFeedImage(xml, feedURL string) string {
	feed := feedTagRe.FindString(xml)
	if feed == "" {
		return ""
	}

	if icon := ToPlainText(firstMatch(feed, iconRe)); icon != "" {
		return resolveURL(icon, feedURL, feedURL)
	}

	if logo := ToPlainText(firstMatch(feed, logoRe)); logo != "" {
		return resolveURL(logo, feedURL, feedURL)
	}

	return ""
}

// extractAtomLink prefers rel="alternate" over the first <link> of any kind,
// then falls back to the entry <id>.
func extractAtomLink(block, feedURL string) string {
	linkTag := atomAlternateLinkTagRe.FindString(block)
	if linkTag == "" {
		linkTag = atomAnyLinkTagRe.FindString(block)
	}

	if linkTag != "" {
		if href := hrefAttrRe.FindStringSubmatch(linkTag); href != nil && href[1] != "" {
			return resolveArticleURL(DecodeEntities(href[1]), feedURL)
		}
	}

	entryID := ToPlainText(firstMatch(block, idTagRe))
	return resolveArticleURL(entryID, feedURL)
}

func buildArticle(source models.FeedSource, index int, title, link, summary, image, idSeed, rawPublished string, now time.Time) models.Article {
	publishedAt, publishedAtMs := ParsePublishedAt(rawPublished)

	seed := idSeed
	if seed == "" {
		seed = fmt.Sprintf("%d", index)
	}

	if title == "" {
		title = "Untitled article"
	}

	return models.Article{
		ID:             fmt.Sprintf("%s-%s", source.FeedID, seed),
		Title:          title,
		Link:           link,
		Summary:        summary,
		ImageURL:       image,
		PublishedAt:    publishedAt,
		PublishedAtMs:  publishedAtMs,
		PublishedLabel: FormatPublishedLabel(publishedAtMs, now),
	}
}

func parseRSSItem(block string, source models.FeedSource, index int, now time.Time) models.Article {
	title := ToPlainText(firstMatch(block, titleRe))

	descriptionRaw := firstMatch(block, descriptionRe)
	contentRaw := firstMatch(block, contentEncodedRe, contentRe)

	link := resolveArticleURL(ToPlainText(firstMatch(block, linkTextRe, guidRe)), source.URL)

	summaryRaw := descriptionRaw
	if summaryRaw == "" {
		summaryRaw = contentRaw
	}
	summary := Truncate(ToPlainText(summaryRaw), summaryMaxLength)

	image := extractRSSItemImage(block, source.URL, []string{contentRaw, descriptionRaw})

	rawPublished := ToPlainText(firstMatch(block, pubDateRe, dcDateRe, publishedRe, updatedRe))
	idSeed := ToPlainText(firstMatch(block, guidRe, linkTextRe, titleRe))

	return buildArticle(source, index, title, link, summary, image, idSeed, rawPublished, now)
}

func parseAtomEntry(block string, source models.FeedSource, index int, now time.Time) models.Article {
	title := ToPlainText(firstMatch(block, titleRe))

	summaryRaw := firstMatch(block, summaryRe)
	contentRaw := firstMatch(block, contentRe)

	link := extractAtomLink(block, source.URL)

	rawSummary := summaryRaw
	if rawSummary == "" {
		rawSummary = contentRaw
	}
	summary := Truncate(ToPlainText(rawSummary), summaryMaxLength)

	image := extractAtomItemImage(block, source.URL, []string{contentRaw, summaryRaw})

	rawPublished := ToPlainText(firstMatch(block, updatedRe, publishedRe))
	idSeed := ToPlainText(firstMatch(block, idTagRe, titleRe))

	return buildArticle(source, index, title, link, summary, image, idSeed, rawPublished, now)
}

// ParseFeed parses one RSS or Atom document into normalized articles. A
// document with <item> blocks is treated as RSS; otherwise <entry> blocks are
// parsed as Atom. Neither is an error: an empty feed is valid and yields no
// items. Items missing a title AND items whose link cannot be resolved are
// dropped; kept items are sorted newest first.
func ParseFeed(xml string, source models.FeedSource) ParsedFeed {
	now := time.Now()

	if blocks := itemBlockRe.FindAllString(xml, -1); len(blocks) > 0 {
		items := parseBlocks(blocks, source, now, parseRSSItem)

		feedTitle := extractRSSFeedTitle(xml)
		if feedTitle == "" {
			feedTitle = source.Title
		}

		return ParsedFeed{
			FeedTitle: feedTitle,
			FeedImage: extractRSSFeedImage(xml, source.URL),
			Items:     items,
		}
	}

	blocks := entryBlockRe.FindAllString(xml, -1)
	items := parseBlocks(blocks, source, now, parseAtomEntry)

	feedTitle := extractAtomFeedTitle(xml)
	if feedTitle == "" {
		feedTitle = source.Title
	}

	return ParsedFeed{
		FeedTitle: feedTitle,
		FeedImage: extractAtomFeedImage(xml, source.URL),
		Items:     items,
	}
}

func parseBlocks(blocks []string, source models.FeedSource, now time.Time, parse func(string, models.FeedSource, int, time.Time) models.Article) []models.Article {
	if len(blocks) > maxItemsPerFeed {
		blocks = blocks[:maxItemsPerFeed]
	}

	items := make([]models.Article, 0, len(blocks))
	for index, block := range blocks {
		item := parse(block, source, index, now)
		// Title defaults to "Untitled article" when a link is present, so in
		// practice this drops items whose link did not resolve.
		if item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAtMs > items[j].PublishedAtMs
	})

	return items
}
