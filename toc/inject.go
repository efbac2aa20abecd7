package toc

import (
	"strconv"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/viscalyx/viscalyx.se-sub001/slug"
)

// Translator looks up a message by key, interpolating values.
type Translator func(key string, values map[string]string) string

const (
	// HeadingClass marks headings that carry an anchor link.
	HeadingClass = "heading-with-anchor"
	// AnchorClass is the class of the injected link.
	AnchorClass = "heading-anchor"

	ariaLabelKey = "accessibility.anchorLink.ariaLabel"
	titleKey     = "accessibility.anchorLink.title"

	fallbackAriaLabel = "Link to section: {heading}"
	fallbackTitle     = "Link to this section"
)

const anchorIcon = `<svg aria-hidden="true" focusable="false" width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M10 13a5 5 0 0 0 7.54.54l3-3a5 5 0 0 0-7.07-7.07l-1.72 1.71"></path><path d="M14 11a5 5 0 0 0-7.54-.54l-3 3a5 5 0 0 0 7.07 7.07l1.71-1.71"></path></svg>`

// AddHeadingIDs gives every h2-h4 in doc an id, the heading-with-anchor
// class and a trailing anchor link. Existing ids are kept and win over
// generated ones; existing classes are merged. Headings that already
// carry the anchor class are left untouched, so running it twice is a
// no-op. tr may be nil.
func AddHeadingIDs(doc string, opts slug.Options, tr Translator) string {
	matches := findHeadings(doc)
	if len(matches) == 0 {
		return doc
	}

	headings := make([]Heading, len(matches))
	parsed := make([][]nethtml.Attribute, len(matches))
	for i, m := range matches {
		attrs := parseAttrs(m.level, m.attrs)
		parsed[i] = attrs
		headings[i] = Heading{
			Level: m.level,
			Text:  normalizedText(m.inner),
			ID:    attrValue(attrs, "id"),
			Class: attrValue(attrs, "class"),
		}
	}
	ids := assignIDs(headings, opts)

	var b strings.Builder
	b.Grow(len(doc) + len(matches)*(len(anchorIcon)+160))
	last := 0
	for i, m := range matches {
		h := headings[i]
		if hasClass(h.Class, HeadingClass) {
			continue
		}
		tag := "h" + strconv.Itoa(m.level)
		b.WriteString(doc[last:m.start])
		b.WriteString("<" + tag)
		writeAttrs(&b, parsed[i], ids[i], h.ID == "")
		b.WriteByte('>')
		b.WriteString(m.inner)
		writeAnchor(&b, ids[i], h.Text, tr)
		b.WriteString("</" + tag + ">")
		last = m.end
	}
	b.WriteString(doc[last:])
	return b.String()
}

// writeAttrs re-emits the heading's attributes, escaped, adding the id
// when it was generated and merging the anchor class.
func writeAttrs(b *strings.Builder, attrs []nethtml.Attribute, id string, addID bool) {
	if addID {
		b.WriteString(` id="` + escapeAttr(id) + `"`)
	}
	classDone := false
	for _, a := range attrs {
		if a.Key == "id" && addID {
			continue
		}
		val := a.Val
		if a.Key == "class" && !classDone {
			val = strings.TrimSpace(val + " " + HeadingClass)
			classDone = true
		}
		b.WriteString(" " + a.Key + `="` + escapeAttr(val) + `"`)
	}
	if !classDone {
		b.WriteString(` class="` + HeadingClass + `"`)
	}
}

func writeAnchor(b *strings.Builder, id, heading string, tr Translator) {
	label := translate(tr, ariaLabelKey, fallbackAriaLabel, heading)
	title := translate(tr, titleKey, fallbackTitle, heading)
	b.WriteString(`<a href="#` + escapeAttr(id) + `" class="` + AnchorClass + `"`)
	b.WriteString(` aria-label="` + escapeAttr(label) + `"`)
	b.WriteString(` title="` + escapeAttr(title) + `">`)
	b.WriteString(anchorIcon)
	b.WriteString("</a>")
}

func translate(tr Translator, key, fallback, heading string) string {
	values := map[string]string{"heading": heading}
	if tr != nil {
		if s := tr(key, values); s != "" && s != key {
			return s
		}
	}
	return strings.ReplaceAll(fallback, "{heading}", heading)
}

func hasClass(classes, name string) bool {
	for _, c := range strings.Fields(classes) {
		if c == name {
			return true
		}
	}
	return false
}
