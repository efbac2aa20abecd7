package views

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/viscalyx/viscalyx.se-sub001/content"
	"github.com/viscalyx/viscalyx.se-sub001/toc"
)

// htmlWriter keeps the first write error so templates can write
// unconditionally and check once.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) component(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Layout wraps body in the site chrome.
func Layout(p Page, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		locale := p.Locale
		if locale == "" {
			locale = "en"
		}
		title := p.Site.Name
		if p.Meta.Title != "" && p.Meta.Title != p.Site.Name {
			title = p.Meta.Title + " | " + p.Site.Name
		}
		desc := p.Meta.Description
		if desc == "" {
			desc = p.Site.Description
		}
		ogType := p.Meta.OGType
		if ogType == "" {
			ogType = "website"
		}

		h.raw(`<!DOCTYPE html><html lang="`)
		h.text(locale)
		h.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(`</title><meta name="description" content="`)
		h.text(desc)
		h.raw(`"><meta property="og:title" content="`)
		h.text(title)
		h.raw(`"><meta property="og:type" content="`)
		h.text(ogType)
		h.raw(`">`)
		if p.Meta.URL != "" {
			h.raw(`<link rel="canonical" href="`)
			h.text(p.Meta.URL)
			h.raw(`"><meta property="og:url" content="`)
			h.text(p.Meta.URL)
			h.raw(`">`)
		}
		h.raw(`<link rel="alternate" type="application/rss+xml" href="/feed.xml"><link rel="stylesheet" href="/public/styles.css">`)
		if p.Meta.JSONLD != "" {
			// JSON-LD is produced by encoding/json, which escapes <, > and &.
			h.raw(`<script type="application/ld+json">`)
			h.raw(p.Meta.JSONLD)
			h.raw(`</script>`)
		}
		h.raw(`</head><body><header><a href="/">`)
		h.text(p.Site.Name)
		h.raw(`</a></header><main>`)
		h.component(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// Home lists posts, optionally filtered by activeTag.
func Home(p Page, posts []content.Meta, activeTag string, tags []string) templ.Component {
	return Layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<section id="blog"><h1>`)
		h.text(p.t("blog.title", nil))
		h.raw(`</h1>`)
		if len(tags) > 0 {
			h.raw(`<nav class="tags">`)
			for _, tag := range tags {
				h.raw(`<a class="`)
				h.text(TagClass(tag == activeTag))
				h.raw(`" href="/?tag=`)
				h.text(url.QueryEscape(tag))
				h.raw(`">`)
				h.text(tag)
				h.raw(`</a>`)
			}
			h.raw(`</nav>`)
		}
		h.raw(`<ul class="posts">`)
		for _, post := range posts {
			writeSummary(h, p, post)
		}
		h.raw(`</ul></section>`)
		return h.err
	}))
}

func writeSummary(h *htmlWriter, p Page, post content.Meta) {
	h.raw(`<li><article><h2><a href="/blog/`)
	h.text(url.PathEscape(post.Slug))
	h.raw(`/">`)
	h.text(post.Title)
	h.raw(`</a></h2><p class="meta"><time datetime="`)
	h.text(post.Date)
	h.raw(`">`)
	h.text(post.Date)
	h.raw(`</time>`)
	if post.ReadTime > 0 {
		h.raw(` · `)
		h.text(p.t("blog.readTime", map[string]string{"minutes": strconv.Itoa(post.ReadTime)}))
	}
	h.raw(`</p><p>`)
	h.text(post.Excerpt)
	h.raw(`</p></article></li>`)
}

// TOC renders a table of contents.
func TOC(p Page, items []toc.Item) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(items) == 0 {
			return nil
		}
		h := &htmlWriter{w: w}
		h.raw(`<nav class="toc" aria-label="`)
		h.text(p.t("blog.toc", nil))
		h.raw(`"><ol>`)
		for _, item := range items {
			h.raw(`<li class="toc-level-`)
			h.raw(strconv.Itoa(item.Level))
			h.raw(`"><a href="#`)
			h.text(item.ID)
			h.raw(`">`)
			h.text(item.Text)
			h.raw(`</a></li>`)
		}
		h.raw(`</ol></nav>`)
		return h.err
	})
}

// Post renders one post. post.Content must already be sanitized.
func Post(p Page, post *content.Post, related []content.Meta) templ.Component {
	return Layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<article class="post" data-slug="`)
		h.text(post.Slug)
		h.raw(`" data-category="`)
		h.text(post.Category)
		h.raw(`"><h1>`)
		h.text(post.Title)
		h.raw(`</h1><p class="meta"><time datetime="`)
		h.text(post.Date)
		h.raw(`">`)
		h.text(post.Date)
		h.raw(`</time>`)
		if post.Author != "" {
			h.raw(` · `)
			h.text(post.Author)
		}
		if post.ReadTime > 0 {
			h.raw(` · `)
			h.text(p.t("blog.readTime", map[string]string{"minutes": strconv.Itoa(post.ReadTime)}))
		}
		h.raw(`</p>`)
		h.component(ctx, TOC(p, post.TOC))
		h.raw(`<div class="content">`)
		h.raw(post.Content)
		h.raw(`</div></article>`)
		if len(related) > 0 {
			h.raw(`<aside class="related"><ul>`)
			for _, r := range related {
				writeSummary(h, p, r)
			}
			h.raw(`</ul></aside>`)
		}
		h.raw(`<p><a href="/">`)
		h.text(p.t("blog.backToBlog", nil))
		h.raw(`</a></p>`)
		return h.err
	}))
}

// NotFound is the 404 page.
func NotFound(p Page) templ.Component {
	return Layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<section class="error"><h1>404</h1><p>`)
		h.text(p.t("blog.notFound", nil))
		h.raw(`</p><p><a href="/">`)
		h.text(p.t("blog.backToBlog", nil))
		h.raw(`</a></p></section>`)
		return h.err
	}))
}

// ServerError is the 5xx page.
func ServerError(p Page) templ.Component {
	return Layout(p, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<section class="error"><h1>500</h1><p>Something went wrong.</p></section>`)
		return h.err
	}))
}
