package toc

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"

	"github.com/viscalyx/viscalyx.se-sub001/htmltext"
)

// Heading is one h2-h4 element found in a document.
type Heading struct {
	Level int
	Text  string // plain, decoded, whitespace-normalized
	ID    string // existing id attribute, decoded; empty when absent
	Class string // existing class attribute, decoded
}

// HeadingSource lists the h2-h4 headings of an HTML document in document order.
type HeadingSource interface {
	Headings(doc string) ([]Heading, error)
}

// headingPattern matches an h2..h4 start tag and its body. The body
// stops at the first heading start or end tag of any level, which is
// where an HTML parser closes the heading, so nested or mismatched
// headings split the same way in both sources. The end tag is optional.
var headingPattern = regexp.MustCompile(`(?i)<h([2-4])(\s[^>]*)?>((?:[^<]|<[^/h]|</[^h]|</h[^1-6]|<h[^1-6])*)(?:</h[1-6]\s*>)?`)

// headingMatch is a regex match with byte offsets into the document.
type headingMatch struct {
	start, end int
	level      int
	attrs      string
	inner      string
}

func findHeadings(doc string) []headingMatch {
	locs := headingPattern.FindAllStringSubmatchIndex(doc, -1)
	out := make([]headingMatch, 0, len(locs))
	for _, loc := range locs {
		m := headingMatch{
			start: loc[0],
			end:   loc[1],
			level: int(doc[loc[2]] - '0'),
			inner: doc[loc[6]:loc[7]],
		}
		if loc[4] >= 0 {
			m.attrs = doc[loc[4]:loc[5]]
		}
		out = append(out, m)
	}
	return out
}

// RegexSource scans markup with a regular expression. It needs no DOM and
// is what the build uses.
type RegexSource struct{}

// Headings implements HeadingSource.
func (RegexSource) Headings(doc string) ([]Heading, error) {
	matches := findHeadings(doc)
	headings := make([]Heading, 0, len(matches))
	for _, m := range matches {
		attrs := parseAttrs(m.level, m.attrs)
		headings = append(headings, Heading{
			Level: m.level,
			Text:  normalizedText(m.inner),
			ID:    attrValue(attrs, "id"),
			Class: attrValue(attrs, "class"),
		})
	}
	return headings, nil
}

func normalizedText(inner string) string {
	return htmltext.NormalizeText(htmltext.ExtractCleanText(inner))
}

// DOMSource parses the document and queries it, reading text content
// directly instead of stripping tags.
type DOMSource struct{}

// Headings implements HeadingSource.
func (DOMSource) Headings(doc string) ([]Heading, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	var headings []Heading
	d.Find("h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		class, _ := s.Attr("class")
		headings = append(headings, Heading{
			Level: int(goquery.NodeName(s)[1] - '0'),
			Text:  htmltext.NormalizeText(s.Text()),
			ID:    id,
			Class: class,
		})
	})
	return headings, nil
}

// parseAttrs tokenizes a start tag so quoting and entities in attribute
// values are handled the way a browser would.
func parseAttrs(level int, attrs string) []nethtml.Attribute {
	if strings.TrimSpace(attrs) == "" {
		return nil
	}
	z := nethtml.NewTokenizer(strings.NewReader("<h" + string(rune('0'+level)) + attrs + ">"))
	if z.Next() != nethtml.StartTagToken {
		return nil
	}
	return z.Token().Attr
}

func attrValue(attrs []nethtml.Attribute, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#39;",
	"<", "&lt;",
	">", "&gt;",
)

// escapeAttr escapes s for use inside a double-quoted attribute value.
func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
