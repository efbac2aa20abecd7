package consent

import (
	"net/http"
	"sync"

	"github.com/gorilla/sessions"
)

// Storage is a string key-value store scoped to one visitor.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// MemoryStorage is a Storage kept in process memory.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
	// Err, when set, is returned by every write.
	Err error
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.items, key)
	return nil
}

// SessionStorage stores items in a gorilla session and saves the session
// after every write.
type SessionStorage struct {
	sess *sessions.Session
	r    *http.Request
	w    http.ResponseWriter
}

// NewSessionStorage wraps sess for the current request.
func NewSessionStorage(sess *sessions.Session, r *http.Request, w http.ResponseWriter) *SessionStorage {
	return &SessionStorage{sess: sess, r: r, w: w}
}

func (s *SessionStorage) GetItem(key string) (string, bool) {
	v, ok := s.sess.Values[key].(string)
	return v, ok
}

func (s *SessionStorage) SetItem(key, value string) error {
	s.sess.Values[key] = value
	return s.sess.Save(s.r, s.w)
}

func (s *SessionStorage) RemoveItem(key string) error {
	if _, ok := s.sess.Values[key]; !ok {
		return nil
	}
	delete(s.sess.Values, key)
	return s.sess.Save(s.r, s.w)
}
