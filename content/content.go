// Package content builds blog posts into JSON artifacts and loads them
// back by slug.
//
// One artifact per post lives at blog-content/{slug}.json under the
// output root, next to blog-content/index.json which lists every post's
// metadata, newest first.
package content

import (
	"errors"
	"path"
	"strings"

	"github.com/viscalyx/viscalyx.se-sub001/slug"
	"github.com/viscalyx/viscalyx.se-sub001/toc"
)

// Dir is the artifact directory under the output root.
const Dir = "blog-content"

// IndexFile is the name of the metadata listing inside Dir.
const IndexFile = "index.json"

var (
	// ErrNotFound is returned when an artifact does not exist.
	ErrNotFound = errors.New("content: not found")
	// ErrInvalidSlug is returned for slugs that may not name an artifact.
	ErrInvalidSlug = errors.New("content: invalid slug")
)

// Meta is a post's front matter plus derived fields.
type Meta struct {
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Author   string   `json:"author"`
	Excerpt  string   `json:"excerpt"`
	Image    string   `json:"image"`
	Tags     []string `json:"tags"`
	ReadTime int      `json:"readTime"`
	Category string   `json:"category"`
}

// Post is one built artifact. Content is sanitized HTML with heading
// anchors already injected.
type Post struct {
	Meta
	Content string     `json:"content"`
	TOC     []toc.Item `json:"toc,omitempty"`
}

// validSlug reports whether postSlug may name a post artifact. The
// index file shares the artifact directory, so its name is reserved.
func validSlug(postSlug string) bool {
	return slug.Valid(postSlug) && postSlug != strings.TrimSuffix(IndexFile, ".json")
}

// artifactPath returns the slash-separated path of a post artifact.
// Callers must have validated postSlug.
func artifactPath(postSlug string) string {
	return path.Join(Dir, postSlug+".json")
}

func indexPath() string {
	return path.Join(Dir, IndexFile)
}
