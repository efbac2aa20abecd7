package slug

import (
	"strconv"
	"unicode/utf16"
)

// GenerateFallbackID returns "heading-{level}-{hash}" for headings with no
// sluggable text. The hash is a 32-bit rolling multiplicative hash of
// "{level}-{hint}" over UTF-16 code units, rendered in base 36, so the
// server and browser compute the same id for the same heading.
func GenerateFallbackID(level int, hint string) string {
	return "heading-" + strconv.Itoa(level) + "-" + hash36(strconv.Itoa(level)+"-"+hint)
}

func hash36(s string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return strconv.FormatInt(n, 36)
}
