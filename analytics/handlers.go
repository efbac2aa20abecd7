package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/viscalyx/viscalyx.se-sub001/internal/ratelimit"
)

// ConsentFunc reports whether the visitor behind c agreed to analytics.
type ConsentFunc func(c echo.Context) bool

// Handler serves the page view endpoint and the admin statistics API.
type Handler struct {
	store          *Store
	tracker        *Tracker
	consented      ConsentFunc
	collectLimiter *ratelimit.Limiter
}

// NewHandler returns a Handler. The track endpoint is rate-limited to 60
// requests per IP per minute and only records visitors for whom
// consented returns true.
func NewHandler(store *Store, tracker *Tracker, consented ConsentFunc) *Handler {
	return &Handler{
		store:          store,
		tracker:        tracker,
		consented:      consented,
		collectLimiter: ratelimit.New(60, time.Minute),
	}
}

// Close stops the handler's background work.
func (h *Handler) Close() {
	h.collectLimiter.Stop()
}

// TrackRequest is the body of the track endpoint.
type TrackRequest struct {
	Slug     string `json:"slug"`
	Category string `json:"category"`
}

const maxFieldLen = 256

// Track records a page view sent by the page script. It always answers
// 204 unless the caller is over the rate limit or sent garbage.
func (h *Handler) Track(c echo.Context) error {
	if !h.collectLimiter.Allow(c.RealIP()) {
		return c.NoContent(http.StatusTooManyRequests)
	}
	if c.Request().Header.Get("DNT") == "1" || c.Request().Header.Get("Sec-GPC") == "1" {
		return c.NoContent(http.StatusNoContent)
	}
	if IsBot(c.Request().UserAgent()) {
		return c.NoContent(http.StatusNoContent)
	}
	if h.consented == nil || !h.consented(c) {
		return c.NoContent(http.StatusNoContent)
	}

	var req TrackRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	if len(req.Slug) > maxFieldLen || len(req.Category) > maxFieldLen {
		return c.String(http.StatusBadRequest, "Invalid request")
	}

	visitor := VisitorKey(c.RealIP(), c.Request().UserAgent())
	h.tracker.TrackVisit(c.Request().Context(), visitor, req.Slug, req.Category)
	return c.NoContent(http.StatusNoContent)
}

// TopResponse is the JSON response of the top posts endpoint.
type TopResponse struct {
	Period     string      `json:"period"`
	PeriodDays int         `json:"period_days"`
	Posts      []PostStat  `json:"posts"`
	Daily      []DailyView `json:"daily"`
}

// TopPosts returns the most viewed posts for a period as JSON.
func (h *Handler) TopPosts(c echo.Context) error {
	period, days := parsePeriod(c.QueryParam("period"))
	limit := 10
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	from := time.Now().UTC().AddDate(0, 0, -days)

	ctx := c.Request().Context()
	posts, err := h.store.TopPosts(ctx, from, limit)
	if err != nil {
		c.Logger().Errorf("Failed to get top posts: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	daily, err := h.store.DailyViews(ctx, from)
	if err != nil {
		c.Logger().Errorf("Failed to get daily views: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, TopResponse{
		Period:     period,
		PeriodDays: days,
		Posts:      posts,
		Daily:      daily,
	})
}

func parsePeriod(period string) (string, int) {
	switch period {
	case "today":
		return period, 1
	case "week":
		return period, 7
	case "month":
		return period, 30
	case "year":
		return period, 365
	}
	return "month", 30
}

// RegisterRoutes registers analytics routes. authMiddleware guards the
// admin API.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	e.POST("/api/analytics/track", h.Track)

	admin := e.Group("/admin/analytics")
	admin.Use(authMiddleware)
	admin.GET("/api/top", h.TopPosts)
}
