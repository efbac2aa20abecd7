// Package slug turns heading text into URL-safe, deterministic identifiers.
//
// Non-strict mode keeps a wider set of punctuation than most slug
// libraries, so "Best Practices & Guidelines" becomes
// "best-practices-&-guidelines" and "What's Next?" becomes "what's-next?".
// Anchor links on existing posts depend on that, so it must not be
// normalized away.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/viscalyx/viscalyx.se-sub001/htmltext"
)

// Options controls slug generation.
type Options struct {
	Lower  bool   // lowercase the result (default true)
	Strict bool   // keep only ASCII letters and digits (default false)
	Locale string // locale used for lowercasing (default "en")
	Trim   bool   // trim surrounding whitespace before joining (default true)
}

// DefaultOptions returns the options used by the content pipeline.
func DefaultOptions() Options {
	return Options{Lower: true, Strict: false, Locale: "en", Trim: true}
}

// delimiter joins the words of a slug.
const delimiter = "-"

// punctuation kept verbatim in non-strict mode.
const punctuation = "$*_+~.()'\"!:@&?,;"

var whitespaceRun = regexp.MustCompile(`\s+`)

// Create converts text into a slug. It is a pure function of its inputs.
func Create(text string, opts Options) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsSpace(r), r == '-':
			// the delimiter is folded into whitespace so runs collapse
			b.WriteByte(' ')
		case opts.Strict:
			if isASCIIAlnum(r) {
				b.WriteRune(r)
			}
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			b.WriteRune(r)
		case strings.ContainsRune(punctuation, r):
			b.WriteRune(r)
		}
	}

	s := b.String()
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	s = whitespaceRun.ReplaceAllString(s, delimiter)
	if opts.Lower {
		s = cases.Lower(localeTag(opts.Locale)).String(s)
	}
	return s
}

// CreateID slugs already-clean heading text, falling back to a
// hash-derived id when nothing sluggable remains.
func CreateID(cleanText string, level int, opts Options) string {
	if s := Create(cleanText, opts); s != "" {
		return s
	}
	return GenerateFallbackID(level, cleanText)
}

// CreateSlugID strips markup from raw heading HTML and slugs the result.
// The fallback hash uses the original raw text so two different
// unsluggable headings at the same level still get distinct ids.
func CreateSlugID(raw string, level int, opts Options) string {
	if s := Create(htmltext.ExtractCleanText(raw), opts); s != "" {
		return s
	}
	return GenerateFallbackID(level, raw)
}

var validSlug = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// maxSlugLen bounds artifact slugs.
const maxSlugLen = 200

// Valid reports whether s is safe to use as an artifact key: letters,
// digits, hyphen and underscore only.
func Valid(s string) bool {
	return len(s) <= maxSlugLen && validSlug.MatchString(s)
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func localeTag(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return tag
}
