package viscalyx

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/viscalyx/viscalyx.se-sub001/analytics"
	"github.com/viscalyx/viscalyx.se-sub001/content"
	"github.com/viscalyx/viscalyx.se-sub001/toc"
	"github.com/viscalyx/viscalyx.se-sub001/views"
)

const defaultCategory = "uncategorized"

// page builds the template context for the current request.
func (a *App) page(c echo.Context, meta views.PageMeta) views.Page {
	locale := Locale(c)
	return views.Page{
		Site:   a.Config.Site(),
		Meta:   meta,
		Locale: locale,
		T:      a.Catalog.Translator(locale),
	}
}

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	tag := c.QueryParam("tag")
	posts, err := a.Index.ListPosts(ctx, tag)
	if err != nil {
		return err
	}
	tags, err := a.Index.ListTags(ctx)
	if err != nil {
		return err
	}
	site := a.Config.Site()
	p := a.page(c, views.PageMeta{
		Title:  a.Config.Name,
		URL:    BuildURL(a.Config.URL),
		OGType: "website",
		JSONLD: views.WebsiteJsonLD(site),
	})
	return Render(c, a.Views.Home(p, posts, tag, tags))
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Loader.LoadPost(ctx, c.Param("slug"))
	if err != nil {
		if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrInvalidSlug) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, views.PageMeta{})))
		}
		return err
	}

	if a.Config.CompareTOC || len(post.TOC) == 0 {
		a.checkTOC(c, post)
	}

	posts, err := a.Index.ListPosts(ctx, "")
	if err != nil {
		c.Logger().Warnf("load index for related posts: %v", err)
	}
	related := views.FilterRelatedPosts(post.Meta, posts)
	if len(related) > 3 {
		related = related[:3]
	}

	a.trackView(c, post.Meta)

	site := a.Config.Site()
	p := a.page(c, views.PageMeta{
		Title:       post.Title,
		Description: post.Excerpt,
		URL:         views.PostURL(site, post.Slug),
		OGType:      "article",
		JSONLD:      views.BlogPostingJsonLD(site, post.Meta),
	})
	return Render(c, a.Views.Post(p, post, related))
}

// checkTOC re-derives the outline from the served HTML with the DOM
// source. The build-time outline is kept; a mismatch means the
// artifact was built by an incompatible pipeline and is logged. Posts
// built without an outline get the derived one.
func (a *App) checkTOC(c echo.Context, post *content.Post) {
	derived := toc.Extract(post.Content, a.slugOpts, toc.Env{DOM: true})
	if len(post.TOC) == 0 {
		post.TOC = derived
		return
	}
	if !slices.Equal(post.TOC, derived) {
		a.Logger.Warn("table of contents differs from page headings",
			"slug", post.Slug, "built", len(post.TOC), "derived", len(derived))
	}
}

// trackView records a page view for visitors who allowed analytics and
// did not ask not to be tracked. It never delays the response.
func (a *App) trackView(c echo.Context, meta content.Meta) {
	if a.tracker == nil {
		return
	}
	req := c.Request()
	if req.Header.Get("DNT") == "1" || req.Header.Get("Sec-GPC") == "1" {
		return
	}
	if analytics.IsBot(req.UserAgent()) || !a.analyticsConsented(c) {
		return
	}
	category := meta.Category
	if category == "" {
		category = defaultCategory
	}
	visitor := analytics.VisitorKey(c.RealIP(), req.UserAgent())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.tracker.TrackVisit(ctx, visitor, meta.Slug, category)
	}()
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Index.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Index.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleRobots(c echo.Context) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\nSitemap: ")
	b.WriteString(strings.TrimRight(a.Config.URL, "/"))
	b.WriteString("/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound && !strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, views.PageMeta{})))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			_ = c.JSON(code, map[string]string{"error": "Internal server error"})
			return
		}
		_ = RenderStatus(c, code, a.Views.ServerError(a.page(c, views.PageMeta{})))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
