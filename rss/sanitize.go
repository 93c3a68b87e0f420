package rss

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Display summaries are cut to this many characters, ellipsis included.
const summaryMaxLength = 220

var (
	cdataRe      = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	entityRe     = regexp.MustCompile(`(?i)&(#x[0-9a-f]+|#[0-9]+|amp|lt|gt|quot|apos);`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// RemoveCData replaces every <![CDATA[...]]> span with its inner content.
func RemoveCData(value string) string {
	return cdataRe.ReplaceAllString(value, "$1")
}

// DecodeEntities strips CDATA wrappers and decodes the named XML entities plus
// numeric (&#NNN;) and hex (&#xHHHH;) references. Unrecognized entities pass
// through unchanged.
func DecodeEntities(value string) string {
	text := RemoveCData(value)

	return entityRe.ReplaceAllStringFunc(text, func(entity string) string {
		token := strings.ToLower(entity[1 : len(entity)-1])

		switch token {
		case "amp":
			return "&"
		case "lt":
			return "<"
		case "gt":
			return ">"
		case "quot":
			return `"`
		case "apos":
			return "'"
		}

		if strings.HasPrefix(token, "#x") {
			codePoint, err := strconv.ParseInt(token[2:], 16, 32)
			if err != nil || !utf8Valid(codePoint) {
				return entity
			}
			return string(rune(codePoint))
		}

		codePoint, err := strconv.ParseInt(token[1:], 10, 32)
		if err != nil || !utf8Valid(codePoint) {
			return entity
		}
		return string(rune(codePoint))
	})
}

func utf8Valid(codePoint int64) bool {
	return codePoint >= 0 && codePoint <= unicode.MaxRune
}

// ToPlainText decodes entities, strips all tags and collapses whitespace runs
// to single spaces.
func ToPlainText(value string) string {
	text := DecodeEntities(value)
	text = tagRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text exceeding maxLength down to maxLength-1 characters plus a
// single ellipsis. Text at exactly maxLength passes through unmodified.
func Truncate(value string, maxLength int) string {
	clean := strings.TrimSpace(value)
	runes := []rune(clean)
	if len(runes) <= maxLength {
		return clean
	}

	cut := strings.TrimRightFunc(string(runes[:maxLength-1]), unicode.IsSpace)
	return cut + "…"
}
