package views

// SiteConfig holds site-wide settings every page needs.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      string
}

// Translate looks up a message for the page's locale.
type Translate func(key string, values map[string]string) string

// Page is what every template receives besides its own data.
type Page struct {
	Site   SiteConfig
	Meta   PageMeta
	Locale string
	T      Translate
}

func (p Page) t(key string, values map[string]string) string {
	if p.T == nil {
		return key
	}
	return p.T(key, values)
}
