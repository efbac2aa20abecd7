package consent

import "strings"

// SessionCookieName is the site's own session cookie.
const SessionCookieName = "viscalyx_session"

// Entry describes a known cookie, or a family of cookies when Name
// starts or ends with '*'.
type Entry struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	PurposeKey  string   `json:"purposeKey"`
	DurationKey string   `json:"durationKey"`
	Provider    string   `json:"provider,omitempty"`
}

// Matches reports whether a cookie called name belongs to e.
func (e Entry) Matches(name string) bool {
	switch {
	case strings.HasPrefix(e.Name, "*"):
		return strings.HasSuffix(name, e.Name[1:])
	case strings.HasSuffix(e.Name, "*"):
		return strings.HasPrefix(name, e.Name[:len(e.Name)-1])
	}
	return name == e.Name
}

// Pattern reports whether e names a family rather than one cookie.
func (e Entry) Pattern() bool {
	return strings.HasPrefix(e.Name, "*") || strings.HasSuffix(e.Name, "*")
}

var registry = []Entry{
	{Name: "*-cookie-consent", Category: StrictlyNecessary, PurposeKey: "cookies.registry.consent.purpose", DurationKey: "cookies.duration.oneYear"},
	{Name: SessionCookieName, Category: StrictlyNecessary, PurposeKey: "cookies.registry.session.purpose", DurationKey: "cookies.duration.twelveHours"},
	{Name: "_csrf", Category: StrictlyNecessary, PurposeKey: "cookies.registry.csrf.purpose", DurationKey: "cookies.duration.session"},
	{Name: "cf-analytics", Category: Analytics, PurposeKey: "cookies.registry.cfAnalytics.purpose", DurationKey: "cookies.duration.oneYear", Provider: "Cloudflare"},
	{Name: "_ga", Category: Analytics, PurposeKey: "cookies.registry.ga.purpose", DurationKey: "cookies.duration.twoYears", Provider: "Google"},
	{Name: "_ga_*", Category: Analytics, PurposeKey: "cookies.registry.ga.purpose", DurationKey: "cookies.duration.twoYears", Provider: "Google"},
	{Name: "_gid", Category: Analytics, PurposeKey: "cookies.registry.gid.purpose", DurationKey: "cookies.duration.oneDay", Provider: "Google"},
	{Name: "theme", Category: Preferences, PurposeKey: "cookies.registry.theme.purpose", DurationKey: "cookies.duration.oneYear"},
	{Name: "language", Category: Preferences, PurposeKey: "cookies.registry.language.purpose", DurationKey: "cookies.duration.oneYear"},
}

// Registry returns a copy of the cookie catalog.
func Registry() []Entry {
	out := make([]Entry, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds the entry governing a cookie. Exact names win over
// patterns.
func Lookup(name string) (Entry, bool) {
	for _, e := range registry {
		if !e.Pattern() && e.Name == name {
			return e, true
		}
	}
	for _, e := range registry {
		if e.Pattern() && e.Matches(name) {
			return e, true
		}
	}
	return Entry{}, false
}

// ByCategory returns the entries of cat in catalog order.
func ByCategory(cat Category) []Entry {
	var out []Entry
	for _, e := range registry {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}
