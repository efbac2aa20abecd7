package viscalyx

import (
	"encoding/xml"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/viscalyx/viscalyx.se-sub001/content"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
}

// maxFeedItems caps the feed at the newest posts.
const maxFeedItems = 20

func rssDate(date string) string {
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Format(time.RFC1123Z)
	}
	return ""
}

func (a *App) buildFeed(posts []content.Meta) rssXML {
	base := a.Config.URL
	if len(posts) > maxFeedItems {
		posts = posts[:maxFeedItems]
	}
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		postURL := BuildURL(base, "blog", p.Slug)
		var cats []string
		if p.Category != "" {
			cats = append(cats, p.Category)
		}
		cats = append(cats, p.Tags...)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Excerpt,
			Author:      p.Author,
			Categories:  cats,
			PubDate:     rssDate(p.Date),
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Language:    a.Config.Locale,
			Items:       items,
		},
	}
	if len(posts) > 0 {
		feed.Channel.LastBuildDate = rssDate(posts[0].Date)
	}
	return feed
}

func (a *App) renderRSS(c echo.Context, posts []content.Meta) error {
	return renderXML(c, "application/rss+xml; charset=utf-8", a.buildFeed(posts))
}
