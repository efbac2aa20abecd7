// Package i18n holds the site's message catalogs.
//
// Catalogs are YAML files embedded from locales/. Nested keys are
// flattened to dotted paths, so
//
//	accessibility:
//	  anchorLink:
//	    title: Link to this section
//
// is looked up as "accessibility.anchorLink.title". Messages may contain
// {name} placeholders filled from the values passed to T.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when a request matches no catalog and as the
// fallback for keys missing from another locale.
const DefaultLocale = "en"

// ErrUnknownLocale is returned when a locale has no catalog.
var ErrUnknownLocale = errors.New("unknown locale")

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog maps locales to flattened messages.
type Catalog struct {
	messages map[string]map[string]string
	names    []string
	matcher  language.Matcher
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog built from the embedded locale files.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(localeFS)
		if err != nil {
			panic(fmt.Sprintf("i18n: embedded catalogs: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads every locales/*.yaml file in fsys. The file name without
// extension is the locale. The DefaultLocale catalog must be present.
func Load(fsys fs.FS) (*Catalog, error) {
	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	c := &Catalog{messages: make(map[string]map[string]string)}
	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		msgs := make(map[string]string)
		if err := flatten("", tree, msgs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		locale := strings.TrimSuffix(path.Base(f), ".yaml")
		c.messages[locale] = msgs
	}
	if _, ok := c.messages[DefaultLocale]; !ok {
		return nil, fmt.Errorf("%w: %s catalog missing", ErrUnknownLocale, DefaultLocale)
	}

	c.names = append(c.names, DefaultLocale)
	for locale := range c.messages {
		if locale != DefaultLocale {
			c.names = append(c.names, locale)
		}
	}
	sort.Strings(c.names[1:])

	tags := make([]language.Tag, 0, len(c.names))
	for _, n := range c.names {
		tag, err := language.Parse(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLocale, n)
		}
		tags = append(tags, tag)
	}
	c.matcher = language.NewMatcher(tags)
	return c, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			if err := flatten(key, v, out); err != nil {
				return err
			}
		case string:
			out[key] = v
		case int, int64, float64, bool:
			out[key] = fmt.Sprint(v)
		case nil:
			out[key] = ""
		default:
			return fmt.Errorf("key %q: unsupported value %T", key, v)
		}
	}
	return nil
}

// Locales returns the available locales, DefaultLocale first.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.names...)
}

// Has reports whether locale has a catalog.
func (c *Catalog) Has(locale string) bool {
	_, ok := c.messages[locale]
	return ok
}

// Match picks the best catalog for an Accept-Language header value.
func (c *Catalog) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return DefaultLocale
	}
	return c.names[idx]
}

// T returns the message for key in locale with placeholders filled from
// values. Keys missing from locale fall back to DefaultLocale; keys
// missing everywhere are returned unchanged.
func (c *Catalog) T(locale, key string, values map[string]string) string {
	msg, ok := c.messages[locale][key]
	if !ok {
		msg, ok = c.messages[DefaultLocale][key]
	}
	if !ok {
		return key
	}
	return Interpolate(msg, values)
}

// Translator binds T to one locale. The result has the signature the
// heading anchor injector expects.
func (c *Catalog) Translator(locale string) func(key string, values map[string]string) string {
	return func(key string, values map[string]string) string {
		return c.T(locale, key, values)
	}
}

// Interpolate replaces each {name} in msg with values[name]. Unknown
// placeholders are left in place.
func Interpolate(msg string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
