// Package toc derives tables of contents from rendered post HTML and
// rewrites headings so every section can be linked to.
//
// The build extracts headings with RegexSource, pages re-derive them with
// DOMSource. Both feed the same id assignment, so for the same document
// and options they produce the same outline; anchor navigation depends
// on that.
package toc

import (
	"github.com/viscalyx/viscalyx.se-sub001/slug"
)

// Item is one entry of a table of contents.
type Item struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Env describes the capabilities of the calling environment.
type Env struct {
	DOM bool // a DOM parser is available
}

// SourceFor picks the DOM source when the environment has one.
func SourceFor(env Env) HeadingSource {
	if env.DOM {
		return DOMSource{}
	}
	return RegexSource{}
}

// Extract returns the outline of doc using the source suited to env.
// A DOM parse failure falls back to the regex source.
func Extract(doc string, opts slug.Options, env Env) []Item {
	items, err := ExtractWith(SourceFor(env), doc, opts)
	if err != nil {
		items, _ = ExtractWith(RegexSource{}, doc, opts)
	}
	return items
}

// ExtractWith returns the outline of doc as listed by src.
func ExtractWith(src HeadingSource, doc string, opts slug.Options) ([]Item, error) {
	headings, err := src.Headings(doc)
	if err != nil {
		return nil, err
	}
	ids := assignIDs(headings, opts)
	items := make([]Item, len(headings))
	for i, h := range headings {
		items[i] = Item{ID: ids[i], Text: h.Text, Level: h.Level}
	}
	return items, nil
}

// assignIDs gives every heading its final id. Existing ids are kept as-is
// and reserved before anything is generated, so a generated id can never
// collide with an explicit one. Generated ids are deduplicated in
// document order.
func assignIDs(headings []Heading, opts slug.Options) []string {
	used := slug.NewRegistry()
	for _, h := range headings {
		if h.ID != "" {
			used.Reserve(h.ID)
		}
	}
	ids := make([]string, len(headings))
	for i, h := range headings {
		if h.ID != "" {
			ids[i] = h.ID
			continue
		}
		ids[i] = used.Unique(slug.CreateID(h.Text, h.Level, opts))
	}
	return ids
}
