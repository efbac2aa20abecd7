package viscalyx

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/viscalyx/viscalyx.se-sub001/consent"
	"github.com/viscalyx/viscalyx.se-sub001/content"
)

const visitorKey = "visitor"

// consentManager returns a consent manager for the current request. The
// session is the storage, the request and response are the cookie jar.
func (a *App) consentManager(c echo.Context) (*consent.Manager, error) {
	sess, err := visitorSession(c)
	if err != nil {
		return nil, err
	}
	visitor, _ := sess.Values[visitorKey].(string)
	if visitor == "" {
		visitor = newVisitorID()
		sess.Values[visitorKey] = visitor
	}
	return consent.New(
		consent.NewSessionStorage(sess, c.Request(), c.Response()),
		consent.NewHTTPJar(c.Request(), c.Response()),
		consent.WithSiteID(a.Config.SiteID),
		consent.WithSecure(a.Config.CookieSecure),
		consent.WithBus(a.consentBus),
		consent.WithLogger(a.Logger),
		consent.WithSubject(visitor),
	), nil
}

func newVisitorID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// analyticsConsented reports whether the visitor allowed analytics.
func (a *App) analyticsConsented(c echo.Context) bool {
	m, err := a.consentManager(c)
	if err != nil {
		return false
	}
	return m.HasConsent(consent.Analytics)
}

func consentResponse(m *consent.Manager) ConsentResponse {
	resp := ConsentResponse{Version: consent.Version}
	if s := m.GetConsentSettings(); s != nil {
		resp.Settings = *s
		resp.HasChoice = true
	} else {
		resp.Settings = consent.RejectAll()
	}
	if ts := m.GetConsentTimestamp(); ts != nil {
		resp.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func (a *App) handleConsentGet(c echo.Context) error {
	m, err := a.consentManager(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-CSRF-Token", CsrfToken(c))
	return c.JSON(http.StatusOK, consentResponse(m))
}

func (a *App) handleConsentPut(c echo.Context) error {
	var s consent.Settings
	if err := c.Bind(&s); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	m, err := a.consentManager(c)
	if err != nil {
		return err
	}
	if err := m.SaveConsentSettings(s); err != nil {
		c.Logger().Errorf("save consent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": a.Catalog.T(Locale(c), "cookies.saveFailed", nil),
		})
	}
	resp := consentResponse(m)
	resp.Removed = m.CleanupCookies(resp.Settings)
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handleConsentDelete(c echo.Context) error {
	m, err := a.consentManager(c)
	if err != nil {
		return err
	}
	m.ResetConsent()
	return c.JSON(http.StatusOK, consentResponse(m))
}

// handleCookies lists the cookie registry in the visitor's language,
// grouped by category, with the visitor's current choice.
func (a *App) handleCookies(c echo.Context) error {
	locale := Locale(c)
	var settings consent.Settings
	if m, err := a.consentManager(c); err == nil {
		if s := m.GetConsentSettings(); s != nil {
			settings = *s
		}
	}
	settings = settings.Normalize()

	cats := make([]CookieCategory, 0, len(consent.Categories))
	for _, cat := range consent.Categories {
		group := CookieCategory{
			ID:      string(cat),
			Label:   a.Catalog.T(locale, "cookies.categories."+string(cat), nil),
			Allowed: settings.Allows(cat),
			Cookies: []CookieInfo{},
		}
		for _, e := range consent.ByCategory(cat) {
			group.Cookies = append(group.Cookies, CookieInfo{
				Name:     cookieDisplayName(a.Config.SiteID, e.Name),
				Category: string(e.Category),
				Provider: e.Provider,
				Purpose:  a.Catalog.T(locale, e.PurposeKey, nil),
				Duration: a.Catalog.T(locale, e.DurationKey, nil),
			})
		}
		cats = append(cats, group)
	}
	return c.JSON(http.StatusOK, cats)
}

// cookieDisplayName resolves the consent cookie pattern to this site's
// cookie name.
func cookieDisplayName(siteID, name string) string {
	if name == "*-cookie-consent" {
		return siteID + "-cookie-consent"
	}
	return name
}

// handleAPIPost serves a post artifact as JSON.
func (a *App) handleAPIPost(c echo.Context) error {
	post, err := a.Loader.LoadPost(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrInvalidSlug) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// handleAPIIndex serves the post index as JSON.
func (a *App) handleAPIIndex(c echo.Context) error {
	posts, err := a.Index.ListPosts(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []content.Meta{}
	}
	return c.JSON(http.StatusOK, posts)
}

// handleConsentStats serves the consent audit summary to admins.
func (a *App) handleConsentStats(c echo.Context) error {
	days := 30
	from := time.Now().UTC().AddDate(0, 0, -days)
	st, err := a.Store.Stats(c.Request().Context(), from)
	if err != nil {
		c.Logger().Errorf("consent stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]any{"period_days": days, "stats": st})
}
