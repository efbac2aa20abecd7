package consent

import (
	"net/http"
	"sort"
	"sync"
	"time"
)

// CookieJar reads the cookies currently visible to the visitor and
// writes new ones.
type CookieJar interface {
	Cookies() []*http.Cookie
	SetCookie(c *http.Cookie)
}

// expired reports whether c is a deletion.
func expired(c *http.Cookie) bool {
	return c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(time.Unix(0, 0)))
}

// HTTPJar is a CookieJar over one request/response pair. Cookies written
// during the request are visible to later reads.
type HTTPJar struct {
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]*http.Cookie
}

// NewHTTPJar returns a jar reading from r and writing to w.
func NewHTTPJar(r *http.Request, w http.ResponseWriter) *HTTPJar {
	return &HTTPJar{r: r, w: w, pending: make(map[string]*http.Cookie)}
}

func (j *HTTPJar) Cookies() []*http.Cookie {
	seen := make(map[string]bool)
	var out []*http.Cookie
	for _, c := range j.r.Cookies() {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		if p, ok := j.pending[c.Name]; ok {
			if !expired(p) {
				out = append(out, p)
			}
			continue
		}
		out = append(out, c)
	}
	for name, p := range j.pending {
		if !seen[name] && !expired(p) {
			out = append(out, p)
		}
	}
	return out
}

func (j *HTTPJar) SetCookie(c *http.Cookie) {
	j.pending[c.Name] = c
	http.SetCookie(j.w, c)
}

// MemoryJar is a CookieJar kept in process memory. Deletions remove the
// cookie and are recorded in Deleted.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
	Deleted []string
	Written []*http.Cookie
}

// NewMemoryJar returns a jar holding the given cookies.
func NewMemoryJar(cookies ...*http.Cookie) *MemoryJar {
	j := &MemoryJar{cookies: make(map[string]*http.Cookie)}
	for _, c := range cookies {
		j.cookies[c.Name] = c
	}
	return j
}

func (j *MemoryJar) Cookies() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (j *MemoryJar) SetCookie(c *http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Written = append(j.Written, c)
	if expired(c) {
		delete(j.cookies, c.Name)
		j.Deleted = append(j.Deleted, c.Name)
		return
	}
	j.cookies[c.Name] = c
}

// Has reports whether the jar holds a cookie named name.
func (j *MemoryJar) Has(name string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.cookies[name]
	return ok
}

// deletion builds the overwrite that makes a browser drop name.
func deletion(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}
