// Package htmltext recovers plain text from HTML fragments.
package htmltext

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// stripPolicy allows no tags at all.
	stripPolicy = bluemonday.StrictPolicy()
	// wordPolicy separates block contents so words do not run together.
	wordPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

	entityPattern = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|amp|lt|gt|quot|apos);`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// ExtractCleanText strips every tag from html and decodes the entities
// the stripper leaves behind. Decoding runs after stripping so that
// decoded text can never reintroduce markup.
func ExtractCleanText(html string) string {
	if html == "" {
		return ""
	}
	return strings.TrimSpace(DecodeEntities(stripPolicy.Sanitize(html)))
}

// NormalizeText collapses whitespace runs to single spaces and trims.
func NormalizeText(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// DecodeEntities decodes numeric, hex and the basic named entities in a
// single pass. Code points that are surrogates or beyond U+10FFFF decode
// to U+FFFD.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityPattern.ReplaceAllStringFunc(s, func(ent string) string {
		switch ent {
		case "&amp;":
			return "&"
		case "&lt;":
			return "<"
		case "&gt;":
			return ">"
		case "&quot;":
			return `"`
		case "&apos;":
			return "'"
		}
		body := ent[2 : len(ent)-1]
		base := 10
		if body[0] == 'x' || body[0] == 'X' {
			body, base = body[1:], 16
		}
		n, err := strconv.ParseUint(body, base, 64)
		if err != nil || n > utf8.MaxRune {
			return string(utf8.RuneError)
		}
		r := rune(n)
		if !utf8.ValidRune(r) {
			return string(utf8.RuneError)
		}
		return string(r)
	})
}

// WordText is the text content of html with a space wherever a tag was,
// so words in adjacent blocks stay apart.
func WordText(html string) string {
	return DecodeEntities(wordPolicy.Sanitize(html))
}

// WordCount counts whitespace-separated words in the text content of html.
func WordCount(html string) int {
	return len(strings.Fields(WordText(html)))
}

// ReadingTime estimates minutes to read html at wpm words per minute,
// never less than one.
func ReadingTime(html string, wpm int) int {
	if wpm <= 0 {
		wpm = 200
	}
	minutes := int(math.Ceil(float64(WordCount(html)) / float64(wpm)))
	if minutes < 1 {
		return 1
	}
	return minutes
}
