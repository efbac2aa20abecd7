package viscalyx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscalyx/viscalyx.se-sub001/consent"
	"github.com/viscalyx/viscalyx.se-sub001/content"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

const helloPost = `---
title: Hello World
date: 2026-01-15
author: Ada
category: automation
tags: [Go, DSC]
excerpt: The first post.
---
Intro.

## Getting Started

Some text.

### Details

More text.
`

const secondPost = `---
title: Second Post
date: 2026-02-01
category: automation
tags: [dsc]
---
Nothing to see.
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "posts")
	root := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "hello-world.md"), []byte(helloPost), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "second-post.md"), []byte(secondPost), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := content.NewBuilder(src, root, content.WithBuildLogger(logger)).Build(context.Background())
	require.NoError(t, err)

	cfg := SiteConfig{
		Name:                  "Viscalyx",
		URL:                   "https://viscalyx.se",
		ContentRoot:           root,
		DatabasePath:          filepath.Join(dir, "consent.db"),
		AnalyticsEnabled:      true,
		AnalyticsDatabasePath: filepath.Join(dir, "analytics.db"),
		AdminPassword:         "secret-password",
		SessionSecret:         "0123456789abcdef0123456789abcdef",
		CompareTOC:            true,
	}
	app := New(cfg, WithStaticDir(root), WithLogger(logger))
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { app.Close() })
	return app
}

// client replays cookies between requests like a browser would.
type client struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, app *App) *client {
	return &client{t: t, app: app, cookies: make(map[string]*http.Cookie)}
}

func (cl *client) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	cl.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("User-Agent", browserUA)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range cl.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	cl.app.Echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(cl.cookies, c.Name)
			continue
		}
		cl.cookies[c.Name] = c
	}
	return rec
}

func (cl *client) csrf() string {
	cl.t.Helper()
	rec := cl.do(http.MethodGet, "/api/consent", "", nil)
	require.Equal(cl.t, http.StatusOK, rec.Code)
	token := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(cl.t, token)
	return token
}

func decodeConsent(t *testing.T, rec *httptest.ResponseRecorder) ConsentResponse {
	t.Helper()
	var resp ConsentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHome(t *testing.T) {
	app := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Hello World")
	assert.Contains(t, body, "Second Post")
	assert.Less(t, strings.Index(body, "Second Post"), strings.Index(body, "Hello World"), "newest first")
	assert.Contains(t, body, `href="/blog/hello-world/"`)
}

func TestHomeTagFilter(t *testing.T) {
	app := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/?tag=go", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello World")
	assert.NotContains(t, rec.Body.String(), `href="/blog/second-post/"`)
}

func TestPostPage(t *testing.T) {
	app := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/blog/hello-world/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<h2 id="getting-started" class="heading-with-anchor">`)
	assert.Contains(t, body, `<a href="#getting-started">Getting Started</a>`)
	assert.Contains(t, body, `<a href="#details">Details</a>`)
	assert.Contains(t, body, `"@type":"BlogPosting"`)
	assert.Contains(t, body, `href="/blog/second-post/"`, "related post by category")
}

func TestPostPageRedirectsAndMissing(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)

	rec := cl.do(http.MethodGet, "/blog/hello-world", "", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)

	rec = cl.do(http.MethodGet, "/blog", "", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	for _, target := range []string{"/blog/missing/", "/blog/bad.slug/"} {
		rec = cl.do(http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "404")
	}
}

func TestAPIPost(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)

	rec := cl.do(http.MethodGet, "/api/blog/hello-world", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var post content.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "Hello World", post.Title)
	assert.Equal(t, []string{"getting-started", "details"}, []string{post.TOC[0].ID, post.TOC[1].ID})

	rec = cl.do(http.MethodGet, "/api/blog/..%2F..%2Fetc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = cl.do(http.MethodGet, "/api/blog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var metas []content.Meta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	assert.Len(t, metas, 2)
}

func TestConsentDefaults(t *testing.T) {
	app := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/api/consent", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeConsent(t, rec)
	assert.False(t, resp.HasChoice)
	assert.Equal(t, consent.RejectAll(), resp.Settings)
	assert.Equal(t, consent.Version, resp.Version)
}

func TestConsentRequiresCSRF(t *testing.T) {
	app := newTestApp(t)
	rec := newClient(t, app).do(http.MethodPut, "/api/consent", `{"analytics":true}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConsentSaveAndReset(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)
	token := cl.csrf()

	cl.cookies["_ga"] = &http.Cookie{Name: "_ga", Value: "GA1.1"}
	cl.cookies["theme"] = &http.Cookie{Name: "theme", Value: "dark"}

	rec := cl.do(http.MethodPut, "/api/consent",
		`{"strictly-necessary":false,"analytics":false,"preferences":true}`,
		map[string]string{"X-CSRF-Token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeConsent(t, rec)
	assert.True(t, resp.HasChoice)
	assert.True(t, resp.Settings.StrictlyNecessary)
	assert.False(t, resp.Settings.Analytics)
	assert.True(t, resp.Settings.Preferences)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, []string{"_ga"}, resp.Removed)
	assert.NotContains(t, cl.cookies, "_ga")
	assert.Contains(t, cl.cookies, "theme")
	assert.Contains(t, cl.cookies, "viscalyx-cookie-consent")

	rec = cl.do(http.MethodGet, "/api/consent", "", nil)
	resp = decodeConsent(t, rec)
	assert.True(t, resp.HasChoice)
	assert.True(t, resp.Settings.Preferences)

	rec = cl.do(http.MethodDelete, "/api/consent", "", map[string]string{"X-CSRF-Token": token})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeConsent(t, rec)
	assert.False(t, resp.HasChoice)
	assert.NotContains(t, cl.cookies, "theme")
	assert.NotContains(t, cl.cookies, "viscalyx-cookie-consent")

	records, err := app.Store.ListConsent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, consent.EventReset, records[0].Action)
	assert.Equal(t, consent.EventChanged, records[1].Action)
	assert.True(t, records[1].Preferences)
	assert.Equal(t, records[0].Subject, records[1].Subject)
	assert.Len(t, records[0].Subject, 16)
}

func TestPageViewTrackedOnlyWithConsent(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)
	ctx := context.Background()

	cl.do(http.MethodGet, "/blog/hello-world/", "", nil)
	time.Sleep(50 * time.Millisecond)
	top, err := app.analyticsStore.TopPosts(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	token := cl.csrf()
	rec := cl.do(http.MethodPut, "/api/consent", `{"analytics":true}`, map[string]string{"X-CSRF-Token": token})
	require.Equal(t, http.StatusOK, rec.Code)

	cl.do(http.MethodGet, "/blog/hello-world/", "", map[string]string{"DNT": "1"})
	cl.do(http.MethodGet, "/blog/hello-world/", "", nil)
	require.Eventually(t, func() bool {
		top, err := app.analyticsStore.TopPosts(ctx, time.Now().Add(-time.Hour), 10)
		return err == nil && len(top) == 1 && top[0].Views == 1
	}, 2*time.Second, 20*time.Millisecond)

	top, err = app.analyticsStore.TopPosts(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", top[0].Slug)
	assert.Equal(t, "automation", top[0].Category)
}

func TestPageViewAndCollectorCountOnce(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)
	ctx := context.Background()

	token := cl.csrf()
	rec := cl.do(http.MethodPut, "/api/consent", `{"analytics":true}`, map[string]string{"X-CSRF-Token": token})
	require.Equal(t, http.StatusOK, rec.Code)

	cl.do(http.MethodGet, "/blog/hello-world/", "", nil)
	require.Eventually(t, func() bool {
		top, err := app.analyticsStore.TopPosts(ctx, time.Now().Add(-time.Hour), 10)
		return err == nil && len(top) == 1
	}, 2*time.Second, 20*time.Millisecond)

	rec = cl.do(http.MethodPost, "/api/analytics/track", `{"slug":"hello-world","category":"automation"}`, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	top, err := app.analyticsStore.TopPosts(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 1, top[0].Views)
}

func TestCookiesEndpoint(t *testing.T) {
	app := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/api/cookies", "", map[string]string{"Accept-Language": "sv-SE,sv;q=0.9"})
	require.Equal(t, http.StatusOK, rec.Code)

	var cats []CookieCategory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
	require.Len(t, cats, 3)
	assert.Equal(t, "strictly-necessary", cats[0].ID)
	assert.Equal(t, "Strikt nödvändiga", cats[0].Label)
	assert.True(t, cats[0].Allowed)
	assert.False(t, cats[1].Allowed)
	assert.Equal(t, "viscalyx-cookie-consent", cats[0].Cookies[0].Name)
	assert.Equal(t, "1 år", cats[0].Cookies[0].Duration)
}

func TestAdminRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)

	rec := cl.do(http.MethodGet, "/admin/consent/api/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/consent/api/stats", nil)
	req.SetBasicAuth("admin", "secret-password")
	out := httptest.NewRecorder()
	app.Echo.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Body.String(), `"stats"`)

	req = httptest.NewRequest(http.MethodGet, "/admin/analytics/api/top", nil)
	req.SetBasicAuth("admin", "secret-password")
	out = httptest.NewRecorder()
	app.Echo.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestAdminLoginLimited(t *testing.T) {
	app := newTestApp(t)
	var code int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/consent/api/stats", nil)
		req.SetBasicAuth("admin", "wrong")
		rec := httptest.NewRecorder()
		app.Echo.ServeHTTP(rec, req)
		code = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestFeedsAndRobots(t *testing.T) {
	app := newTestApp(t)
	cl := newClient(t, app)

	rec := cl.do(http.MethodGet, "/feed.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<link>https://viscalyx.se/blog/hello-world/</link>")
	assert.Contains(t, rec.Body.String(), "<category>automation</category>")

	rec = cl.do(http.MethodGet, "/sitemap.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<loc>https://viscalyx.se/blog/second-post/</loc>")
	assert.Contains(t, rec.Body.String(), "<lastmod>2026-02-01</lastmod>")

	rec = cl.do(http.MethodGet, "/robots.txt", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://viscalyx.se/sitemap.xml")
}

func TestInitRequiresSessionSecret(t *testing.T) {
	app := New(SiteConfig{DatabasePath: filepath.Join(t.TempDir(), "c.db")})
	err := app.Init(context.Background())
	assert.ErrorContains(t, err, "session secret")
}
