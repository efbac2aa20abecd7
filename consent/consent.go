// Package consent keeps track of which cookie categories a visitor has
// agreed to. A visitor is either undecided or has a recorded choice;
// saving records one, resetting returns to undecided.
package consent

import (
	"encoding/json"
	"errors"
	"time"
)

// Version is the only envelope version accepted when reading.
const Version = "1.0"

// Category groups cookies under one consent decision.
type Category string

const (
	StrictlyNecessary Category = "strictly-necessary"
	Analytics         Category = "analytics"
	Preferences       Category = "preferences"
)

// Categories lists every category in display order.
var Categories = []Category{StrictlyNecessary, Analytics, Preferences}

// ErrNoStorage is returned when saving without a storage backend.
var ErrNoStorage = errors.New("consent: no storage available")

// Settings is a visitor's choice per category. StrictlyNecessary is
// always true; Normalize enforces it on every path in and out.
type Settings struct {
	StrictlyNecessary bool `json:"strictly-necessary"`
	Analytics         bool `json:"analytics"`
	Preferences       bool `json:"preferences"`
}

// Normalize returns s with StrictlyNecessary forced on.
func (s Settings) Normalize() Settings {
	s.StrictlyNecessary = true
	return s
}

// Allows reports whether cookies of cat may be set under s.
func (s Settings) Allows(cat Category) bool {
	switch cat {
	case StrictlyNecessary:
		return true
	case Analytics:
		return s.Analytics
	case Preferences:
		return s.Preferences
	}
	return false
}

// AcceptAll grants every category.
func AcceptAll() Settings {
	return Settings{StrictlyNecessary: true, Analytics: true, Preferences: true}
}

// RejectAll grants only strictly necessary cookies.
func RejectAll() Settings {
	return Settings{StrictlyNecessary: true}
}

// Envelope is the persisted form of a choice.
type Envelope struct {
	Version   string   `json:"version"`
	Settings  Settings `json:"settings"`
	Timestamp string   `json:"timestamp"`
}

// timestampLayout matches the millisecond UTC form browsers emit.
const timestampLayout = "2006-01-02T15:04:05.000Z"

func newEnvelope(s Settings, now time.Time) Envelope {
	return Envelope{
		Version:   Version,
		Settings:  s.Normalize(),
		Timestamp: now.UTC().Format(timestampLayout),
	}
}

// decodeEnvelope parses raw, rejecting invalid JSON and unknown versions.
func decodeEnvelope(raw string) (Envelope, bool) {
	var env Envelope
	if raw == "" || json.Unmarshal([]byte(raw), &env) != nil {
		return Envelope{}, false
	}
	if env.Version != Version {
		return Envelope{}, false
	}
	env.Settings = env.Settings.Normalize()
	return env, true
}
