package auth

import "sync"

// EventKind distinguishes auth-state transitions.
type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Event is one auth-state change.
type Event struct {
	Kind    EventKind
	Session Session
}

// Feed fans auth-state events out to subscribers. It is passed to the
// components that need it; there is no package-level instance.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewFeed creates a feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (f *Feed) Subscribe(fn func(Event)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber synchronously.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	subs := make([]func(Event), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
