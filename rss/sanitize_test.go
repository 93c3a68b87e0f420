package rss_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"lightfeed/rss"
)

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "named and numeric entities",
			input:    "&lt;b&gt;Bold&lt;/b&gt; &amp; &#169;",
			expected: "<b>Bold</b> & ©",
		},
		{
			name:     "quote and apostrophe",
			input:    "&quot;it&apos;s&quot;",
			expected: `"it's"`,
		},
		{
			name:     "decimal reference",
			input:    "copyright &#169; 2024",
			expected: "copyright © 2024",
		},
		{
			name:     "hex reference",
			input:    "&#x41;&#x6d;p",
			expected: "Amp",
		},
		{
			name:     "unknown entity passes through",
			input:    "fish &chips; &nbsp;",
			expected: "fish &chips; &nbsp;",
		},
		{
			name:     "cdata wrapper removed first",
			input:    "<![CDATA[Tom &amp; Jerry]]>",
			expected: "Tom & Jerry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rss.DecodeEntities(tt.input))
		})
	}
}

func TestRemoveCData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single span",
			input:    "<![CDATA[Breaking news]]>",
			expected: "Breaking news",
		},
		{
			name:     "multiple spans",
			input:    "<![CDATA[one]]> and <![CDATA[two]]>",
			expected: "one and two",
		},
		{
			name:     "span with newlines",
			input:    "<![CDATA[line\nbreak]]>",
			expected: "line\nbreak",
		},
		{
			name:     "no cdata",
			input:    "plain text",
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rss.RemoveCData(tt.input))
		})
	}
}

func TestToPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "strips markup",
			input:    "<p>Hello <strong>world</strong></p>",
			expected: "Hello world",
		},
		{
			name:     "collapses whitespace",
			input:    "  too \n\t many    spaces  ",
			expected: "too many spaces",
		},
		{
			name:     "decodes before stripping",
			input:    "<![CDATA[<p>Tom &amp; Jerry</p>]]>",
			expected: "Tom & Jerry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rss.ToPlainText(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "short", rss.Truncate("short", 220))
	})

	t.Run("exactly max length unchanged", func(t *testing.T) {
		text := strings.Repeat("a", 220)
		assert.Equal(t, text, rss.Truncate(text, 220))
	})

	t.Run("one over max gets ellipsis", func(t *testing.T) {
		text := strings.Repeat("a", 221)
		result := rss.Truncate(text, 220)
		assert.Equal(t, strings.Repeat("a", 219)+"…", result)
		assert.Equal(t, 220, len([]rune(result)))
	})

	t.Run("cut point trims trailing space", func(t *testing.T) {
		text := strings.Repeat("a", 217) + "  bbbb"
		result := rss.Truncate(text, 220)
		assert.Equal(t, strings.Repeat("a", 217)+"…", result)
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		text := strings.Repeat("ø", 221)
		result := rss.Truncate(text, 220)
		assert.Equal(t, strings.Repeat("ø", 219)+"…", result)
	})
}
