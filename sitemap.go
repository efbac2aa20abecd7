package viscalyx

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/viscalyx/viscalyx.se-sub001/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) buildSitemap(posts []content.Meta) sitemapURLSet {
	base := a.Config.URL
	urls := []sitemapURL{{Loc: BuildURL(base)}}
	if len(posts) > 0 {
		urls[0].LastMod = posts[0].Date
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "blog", p.Slug),
			LastMod: p.Date,
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, posts []content.Meta) error {
	return renderXML(c, "application/xml; charset=utf-8", a.buildSitemap(posts))
}
