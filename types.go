package viscalyx

import (
	"github.com/a-h/templ"

	"github.com/viscalyx/viscalyx.se-sub001/consent"
	"github.com/viscalyx/viscalyx.se-sub001/content"
	"github.com/viscalyx/viscalyx.se-sub001/views"
)

// ViewFuncs holds the templ components the handlers render. Replace them
// with WithViews to restyle the site without touching handler logic.
type ViewFuncs struct {
	Home        func(p views.Page, posts []content.Meta, activeTag string, tags []string) templ.Component
	Post        func(p views.Page, post *content.Post, related []content.Meta) templ.Component
	NotFound    func(p views.Page) templ.Component
	ServerError func(p views.Page) templ.Component
}

// DefaultViews returns the built-in templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:        views.Home,
		Post:        views.Post,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

func (v ViewFuncs) withDefaults() ViewFuncs {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
	return v
}

// ConsentResponse is the body of the consent API.
type ConsentResponse struct {
	Settings  consent.Settings `json:"settings"`
	HasChoice bool             `json:"hasChoice"`
	Timestamp string           `json:"timestamp,omitempty"`
	Version   string           `json:"version"`
	Removed   []string         `json:"removed,omitempty"`
}

// CookieInfo describes one registry entry in the visitor's locale.
type CookieInfo struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Provider string `json:"provider,omitempty"`
	Purpose  string `json:"purpose"`
	Duration string `json:"duration"`
}

// CookieCategory groups the registry by consent category.
type CookieCategory struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Allowed bool         `json:"allowed"`
	Cookies []CookieInfo `json:"cookies"`
}
