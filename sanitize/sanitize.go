// Package sanitize holds the allow-list applied to rendered post HTML
// before it is stored.
package sanitize

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	policy *bluemonday.Policy
)

// Policy returns the shared content policy. It starts from nothing and
// allows prose, lists, tables and code markup. Scripts, styles, frames,
// embeds, event handlers and javascript: URLs are never allowed. Images
// are deliberately excluded; post images are rendered by the page
// template from front matter, not from the body.
func Policy() *bluemonday.Policy {
	once.Do(func() { policy = newPolicy() })
	return policy
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"b", "i", "strong", "em", "u", "s", "del", "ins", "sub", "sup", "small", "mark",
		"abbr", "cite", "q", "time", "blockquote",
		"pre", "code", "kbd", "samp", "var",
		"figure", "figcaption", "details", "summary",
	)
	p.AllowTables()
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("th", "td")
	p.AllowAttrs("align").Matching(bluemonday.CellAlign).OnElements("th", "td")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("open").OnElements("details")
	p.AllowAttrs("datetime").Matching(bluemonday.ISO8601).OnElements("time")
	p.AllowAttrs("cite").OnElements("blockquote", "q")

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("title").OnElements("a", "abbr")
	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoReferrerOnFullyQualifiedLinks(true)

	// anchors and syntax highlighting
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").OnElements("code", "pre", "span", "div")
	p.AllowAttrs("data-language").OnElements("pre")
	p.AllowDataAttributes()

	return p
}

// HTML sanitizes rendered post markup. Malformed input is balanced on a
// best-effort basis; empty input yields "".
func HTML(s string) string {
	if s == "" {
		return ""
	}
	return Policy().Sanitize(s)
}
