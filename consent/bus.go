package consent

import "sync"

// EventType names a consent transition.
type EventType string

const (
	EventChanged EventType = "consent-changed"
	EventReset   EventType = "consent-reset"
)

// Event is delivered to listeners after a transition completes.
type Event struct {
	Type     EventType
	Settings *Settings // nil on reset
	Subject  string    // visitor the change belongs to, if known
}

// Listener receives events.
type Listener func(Event)

// Bus delivers events to listeners synchronously, in subscription order.
type Bus struct {
	mu        sync.Mutex
	next      int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

// NewBus returns a bus with no listeners.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.listeners {
			if s.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every listener with e before returning. Listeners may
// subscribe or unsubscribe while being called.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	ls := make([]subscription, len(b.listeners))
	copy(ls, b.listeners)
	b.mu.Unlock()
	for _, s := range ls {
		s.fn(e)
	}
}
