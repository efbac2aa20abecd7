package viscalyx

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/viscalyx/viscalyx.se-sub001/consent"
	"github.com/viscalyx/viscalyx.se-sub001/content"
	"github.com/viscalyx/viscalyx.se-sub001/views"
)

// SiteConfig holds all configuration for the site server and the content
// pipeline.
type SiteConfig struct {
	Name        string `mapstructure:"name"`        // Site name (default "Viscalyx")
	URL         string `mapstructure:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"description"` // Site description for RSS and meta tags
	Author      string `mapstructure:"author"`      // Author name for JSON-LD
	SiteID      string `mapstructure:"site_id"`     // Prefix of the consent key (default "viscalyx")
	Locale      string `mapstructure:"locale"`      // Default locale (default "en")

	Addr         string `mapstructure:"addr"`          // Listen address (default ":3000")
	ContentRoot  string `mapstructure:"content_root"`  // Directory holding blog-content/ (default "public")
	SourceDir    string `mapstructure:"source_dir"`    // Markdown sources (default "posts")
	DatabasePath string `mapstructure:"database_path"` // Consent audit log (default "data/consent.db")

	EdgeBucket  string `mapstructure:"edge_bucket"`   // GCS bucket serving artifacts; empty reads the filesystem
	EdgePrefix  string `mapstructure:"edge_prefix"`   // Object prefix inside EdgeBucket
	EdgeBaseURL string `mapstructure:"edge_base_url"` // Alternative HTTP origin serving artifacts

	AnalyticsEnabled      bool   `mapstructure:"analytics_enabled"`       // Enable analytics (default true)
	AnalyticsDatabasePath string `mapstructure:"analytics_database_path"` // Analytics SQLite path (default "data/analytics.db")
	AnalyticsRetention    int    `mapstructure:"analytics_retention"`     // Days of page views kept (default 365)

	AdminUser     string `mapstructure:"admin_user"`     // Basic auth user for /admin (default "admin")
	AdminPassword string `mapstructure:"admin_password"` // Required for the admin API
	SessionSecret string `mapstructure:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `mapstructure:"cookie_secure"`  // Set true for HTTPS

	IndexCacheTTL time.Duration `mapstructure:"index_cache_ttl"` // Post index cache TTL (default 5min)
	CompareTOC    bool          `mapstructure:"compare_toc"`     // Re-derive post TOCs with the DOM source and log divergence
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Viscalyx"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.SiteID == "" {
		c.SiteID = consent.DefaultSiteID
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ContentRoot == "" {
		c.ContentRoot = "public"
	}
	if c.SourceDir == "" {
		c.SourceDir = "posts"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/consent.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.AnalyticsRetention == 0 {
		c.AnalyticsRetention = 365
	}
	if c.AdminUser == "" {
		c.AdminUser = "admin"
	}
	if c.IndexCacheTTL == 0 {
		c.IndexCacheTTL = 5 * time.Minute
	}
}

// Site returns the subset of the configuration templates need.
func (c SiteConfig) Site() views.SiteConfig {
	return views.SiteConfig{
		Name:        c.Name,
		URL:         c.URL,
		Description: c.Description,
		Author:      c.Author,
	}
}

// LoadConfig reads an optional YAML file at path and VISCALYX_*
// environment variables, which take precedence. An empty path reads the
// environment only.
func LoadConfig(path string) (SiteConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("viscalyx")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("analytics_enabled", true)
	v.SetDefault("compare_toc", true)
	// Unmarshal only sees environment keys viper was told about.
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return SiteConfig{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		if err := v.ReadConfig(f); err != nil {
			return SiteConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

var configKeys = []string{
	"name", "url", "description", "author", "site_id", "locale",
	"addr", "content_root", "source_dir", "database_path",
	"edge_bucket", "edge_prefix", "edge_base_url",
	"analytics_enabled", "analytics_database_path", "analytics_retention",
	"admin_user", "admin_password", "session_secret", "cookie_secure",
	"index_cache_ttl", "compare_toc",
}

func (c SiteConfig) validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is required"))
	}
	if c.EdgeBucket != "" && c.EdgeBaseURL != "" {
		errs = append(errs, errors.New("edge bucket and edge base URL are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the logger used outside request handling.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithEdge serves artifacts through f before falling back to the
// filesystem. It overrides EdgeBucket and EdgeBaseURL.
func WithEdge(f content.EdgeFetcher) Option {
	return func(a *App) {
		a.edge = f
	}
}

// WithViews replaces the page templates.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("viscalyx: required environment variable %s is not set", key)
	}
	return v
}
