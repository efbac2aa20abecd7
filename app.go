// Package viscalyx serves the viscalyx.se blog: post pages and the index
// read from built content artifacts, the consent and cookie APIs, feeds,
// and the page view collector.
//
// Posts are built ahead of time by the content package and read through
// a content.Loader, from an edge bucket when one is configured and from
// the local filesystem otherwise.
package viscalyx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/labstack/echo/v4"

	"github.com/viscalyx/viscalyx.se-sub001/analytics"
	"github.com/viscalyx/viscalyx.se-sub001/consent"
	"github.com/viscalyx/viscalyx.se-sub001/content"
	"github.com/viscalyx/viscalyx.se-sub001/i18n"
	"github.com/viscalyx/viscalyx.se-sub001/internal/ratelimit"
	"github.com/viscalyx/viscalyx.se-sub001/slug"
)

// App is the site server. It wires together the content loader, caches,
// stores, handlers, middleware and templates.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Logger  *slog.Logger
	Loader  *content.Loader
	Index   *IndexCache
	Store   *Store
	Catalog *i18n.Catalog
	Views   ViewFuncs

	edge             content.EdgeFetcher
	gcs              *storage.Client
	slugOpts         slug.Options
	consentBus       *consent.Bus
	unsubscribeAudit func()
	loginLimiter     *ratelimit.Limiter
	analyticsStore   *analytics.Store
	analyticsHandler *analytics.Handler
	tracker          *analytics.Tracker
	stopCleanup      func()
	customRoutes     []func(*App)
	staticDir        string
	initialized      bool
}

// New creates an App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:     cfg,
		Echo:       echo.New(),
		Logger:     slog.Default(),
		Catalog:    i18n.Default(),
		Views:      DefaultViews(),
		consentBus: consent.NewBus(),
		staticDir:  "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	a.Views = a.Views.withDefaults()
	a.slugOpts = slug.DefaultOptions()
	a.slugOpts.Locale = cfg.Locale
	return a
}

// Init opens the stores, connects the edge backend and registers
// middleware and routes. Start calls it when needed; tests call it to
// serve requests without listening.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return fmt.Errorf("viscalyx: invalid config: %w", err)
	}

	if err := a.initEdge(ctx); err != nil {
		return err
	}
	loaderOpts := []content.LoaderOption{content.WithLogger(a.Logger)}
	if a.edge != nil {
		loaderOpts = append(loaderOpts, content.WithEdge(a.edge))
	}
	a.Loader = content.NewLoader(a.Config.ContentRoot, loaderOpts...)
	a.Index = NewIndexCache(a.Loader, a.Config.IndexCacheTTL)

	store, err := NewStore(a.Config.DatabasePath, a.Logger)
	if err != nil {
		return fmt.Errorf("viscalyx: init store: %w", err)
	}
	a.Store = store
	a.unsubscribeAudit = a.consentBus.Subscribe(store.Listener())

	a.loginLimiter = ratelimit.New(5, time.Minute)

	if a.Config.AnalyticsEnabled {
		if err := a.initAnalytics(); err != nil {
			return err
		}
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) initEdge(ctx context.Context) error {
	if a.edge != nil {
		return nil
	}
	switch {
	case a.Config.EdgeBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("viscalyx: init storage client: %w", err)
		}
		a.gcs = client
		a.edge = content.NewGCSFetcher(client, a.Config.EdgeBucket, a.Config.EdgePrefix, a.Logger)
	case a.Config.EdgeBaseURL != "":
		f, err := content.NewHTTPFetcher(a.Config.EdgeBaseURL, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			return fmt.Errorf("viscalyx: init edge: %w", err)
		}
		a.edge = f
	}
	return nil
}

func (a *App) initAnalytics() error {
	st, err := analytics.NewStore(a.Config.AnalyticsDatabasePath, a.Logger)
	if err != nil {
		return fmt.Errorf("viscalyx: init analytics: %w", err)
	}
	a.analyticsStore = st
	if err := analytics.InitSalt(st); err != nil {
		return fmt.Errorf("viscalyx: init analytics salt: %w", err)
	}
	a.stopCleanup = st.StartCleanupScheduler(a.Config.AnalyticsRetention, 24*time.Hour)
	a.tracker = analytics.NewTracker(st, a.Logger)
	a.analyticsHandler = analytics.NewHandler(st, a.tracker, a.analyticsConsented)
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	a.Logger.Info("starting server", "addr", a.Config.Addr, "site", a.Config.URL)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/blog/:slug/", a.handlePost)

	api := e.Group("/api")
	api.GET("/blog", a.handleAPIIndex)
	api.GET("/blog/:slug", a.handleAPIPost)
	api.GET("/consent", a.handleConsentGet)
	api.PUT("/consent", a.handleConsentPut)
	api.DELETE("/consent", a.handleConsentDelete)
	api.GET("/cookies", a.handleCookies)

	auth := a.adminAuth()
	e.GET("/admin/consent/api/stats", a.handleConsentStats, auth)

	if a.analyticsHandler != nil {
		a.analyticsHandler.RegisterRoutes(e, auth)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.unsubscribeAudit != nil {
		a.unsubscribeAudit()
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.analyticsHandler != nil {
		a.analyticsHandler.Close()
	}
	a.tracker.Close()
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.analyticsStore != nil {
		errs = append(errs, a.analyticsStore.Close())
	}
	if a.gcs != nil {
		errs = append(errs, a.gcs.Close())
	}
	return errors.Join(errs...)
}
