package rss

import (
	"fmt"
	"math"
	"time"

	"github.com/araddon/dateparse"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// ParsePublishedAt parses a feed timestamp in whatever format the feed uses.
// Returns the normalized ISO-8601 string and epoch milliseconds, or ("", 0)
// when the value is missing or unparsable. Items without a parsable date are
// kept and sort last.
func ParsePublishedAt(raw string) (string, int64) {
	if raw == "" {
		return "", 0
	}

	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return "", 0
	}

	return parsed.UTC().Format(isoMillis), parsed.UnixMilli()
}

// FormatPublishedLabel renders a human readable publish time relative to now.
// Anything further than two weeks out gets an absolute timestamp instead.
func FormatPublishedLabel(publishedAtMs int64, now time.Time) string {
	if publishedAtMs == 0 {
		return "Unknown publish time"
	}

	deltaSeconds := int(math.Round(float64(publishedAtMs-now.UnixMilli()) / 1000))
	absSeconds := deltaSeconds
	if absSeconds < 0 {
		absSeconds = -absSeconds
	}

	switch {
	case absSeconds > 60*60*24*14:
		return time.UnixMilli(publishedAtMs).Format("Jan 2, 3:04 PM")
	case absSeconds < 60:
		return relativeLabel(deltaSeconds, "second")
	case absSeconds < 60*60:
		return relativeLabel(roundDiv(deltaSeconds, 60), "minute")
	case absSeconds < 60*60*24:
		return relativeLabel(roundDiv(deltaSeconds, 3600), "hour")
	default:
		return relativeLabel(roundDiv(deltaSeconds, 60*60*24), "day")
	}
}

func roundDiv(value, divisor int) int {
	return int(math.Round(float64(value) / float64(divisor)))
}

func relativeLabel(count int, unit string) string {
	if count == 0 {
		return "now"
	}

	magnitude := count
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude != 1 {
		unit += "s"
	}

	if count < 0 {
		return fmt.Sprintf("%d %s ago", magnitude, unit)
	}
	return fmt.Sprintf("in %d %s", magnitude, unit)
}
