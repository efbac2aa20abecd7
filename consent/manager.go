package consent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultSiteID prefixes the consent key and cookie name.
const DefaultSiteID = "viscalyx"

const cookieLifetime = 365 * 24 * time.Hour

// Manager runs the consent state machine for one visitor. Storage is the
// source of truth; the cookie mirrors it so server-rendered pages can
// read the choice without a storage round trip.
type Manager struct {
	storage Storage
	jar     CookieJar
	siteID  string
	secure  bool
	subject string
	bus     *Bus
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSiteID sets the identifier used in the consent key.
func WithSiteID(id string) Option {
	return func(m *Manager) { m.siteID = id }
}

// WithSecure marks the consent cookie Secure. Set it when serving HTTPS.
func WithSecure(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithBus sets the bus events are emitted on.
func WithBus(b *Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSubject tags emitted events with a visitor identifier.
func WithSubject(subject string) Option {
	return func(m *Manager) { m.subject = subject }
}

// New returns a Manager. storage and jar may be nil; without storage the
// manager can still read the cookie but cannot save.
func New(storage Storage, jar CookieJar, opts ...Option) *Manager {
	m := &Manager{
		storage: storage,
		jar:     jar,
		siteID:  DefaultSiteID,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = NewBus()
	}
	return m
}

// Key is the storage key and cookie name of the consent envelope.
func (m *Manager) Key() string {
	return m.siteID + "-cookie-consent"
}

// Bus returns the bus events are emitted on.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// envelope reads the stored envelope, falling back to the cookie when
// storage holds nothing.
func (m *Manager) envelope() (Envelope, bool) {
	if m.storage != nil {
		if raw, ok := m.storage.GetItem(m.Key()); ok {
			return decodeEnvelope(raw)
		}
	}
	if m.jar == nil {
		return Envelope{}, false
	}
	for _, c := range m.jar.Cookies() {
		if c.Name != m.Key() {
			continue
		}
		raw, err := url.QueryUnescape(c.Value)
		if err != nil {
			return Envelope{}, false
		}
		return decodeEnvelope(raw)
	}
	return Envelope{}, false
}

// GetConsentSettings returns the recorded choice, or nil when there is
// none or it cannot be read.
func (m *Manager) GetConsentSettings() *Settings {
	env, ok := m.envelope()
	if !ok {
		return nil
	}
	s := env.Settings
	return &s
}

// HasConsentChoice reports whether a valid choice is recorded.
func (m *Manager) HasConsentChoice() bool {
	_, ok := m.envelope()
	return ok
}

// HasConsent reports whether cat is allowed. Strictly necessary cookies
// always are; anything else is denied until the visitor says otherwise.
func (m *Manager) HasConsent(cat Category) bool {
	if cat == StrictlyNecessary {
		return true
	}
	s := m.GetConsentSettings()
	if s == nil {
		return false
	}
	return s.Allows(cat)
}

// GetConsentTimestamp returns when the choice was recorded, or nil.
func (m *Manager) GetConsentTimestamp() *time.Time {
	if m.storage == nil {
		return nil
	}
	env, ok := m.envelope()
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return nil
	}
	return &t
}

// SaveConsentSettings records s in storage and the cookie, then emits
// consent-changed. A storage failure is logged and returned and no event
// is emitted.
func (m *Manager) SaveConsentSettings(s Settings) error {
	if m.storage == nil {
		m.logger.Warn("consent save without storage", "site", m.siteID)
		return ErrNoStorage
	}
	env := newEnvelope(s, m.now())
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode consent: %w", err)
	}
	if err := m.storage.SetItem(m.Key(), string(data)); err != nil {
		m.logger.Error("failed to save consent settings", "error", err)
		return fmt.Errorf("save consent: %w", err)
	}
	if m.jar != nil {
		m.jar.SetCookie(&http.Cookie{
			Name:     m.Key(),
			Value:    url.QueryEscape(string(data)),
			Path:     "/",
			Expires:  m.now().Add(cookieLifetime).UTC(),
			MaxAge:   int(cookieLifetime / time.Second),
			SameSite: http.SameSiteLaxMode,
			Secure:   m.secure,
		})
	}

	saved := env.Settings
	m.bus.Emit(Event{Type: EventChanged, Settings: &saved, Subject: m.subject})
	return nil
}

// ResetConsent forgets the choice, deletes every cookie outside the
// strictly necessary category and emits consent-reset.
func (m *Manager) ResetConsent() {
	if m.storage != nil {
		if err := m.storage.RemoveItem(m.Key()); err != nil {
			m.logger.Error("failed to remove consent settings", "error", err)
		}
	}
	if m.jar != nil {
		m.jar.SetCookie(deletion(m.Key(), m.secure))

		deleted := map[string]bool{m.Key(): true}
		for _, e := range registry {
			if e.Category == StrictlyNecessary || e.Pattern() {
				continue
			}
			m.jar.SetCookie(deletion(e.Name, m.secure))
			deleted[e.Name] = true
		}
		for _, c := range m.jar.Cookies() {
			if deleted[c.Name] {
				continue
			}
			if e, ok := Lookup(c.Name); ok && e.Category != StrictlyNecessary {
				m.jar.SetCookie(deletion(c.Name, m.secure))
			}
		}
	}
	m.bus.Emit(Event{Type: EventReset, Subject: m.subject})
}

// CleanupCookies deletes present cookies whose category s does not allow.
// Unknown and strictly necessary cookies are left alone. It returns the
// names deleted.
func (m *Manager) CleanupCookies(s Settings) []string {
	if m.jar == nil {
		return nil
	}
	s = s.Normalize()
	var deleted []string
	for _, c := range m.jar.Cookies() {
		e, ok := Lookup(c.Name)
		if !ok || e.Category == StrictlyNecessary {
			continue
		}
		if !s.Allows(e.Category) {
			m.jar.SetCookie(deletion(c.Name, m.secure))
			deleted = append(deleted, c.Name)
		}
	}
	if len(deleted) > 0 {
		m.logger.Debug("removed cookies without consent", "cookies", deleted)
	}
	return deleted
}
