package settings

import (
	"sync"
)

// ChangeType represents the type of settings change.
type ChangeType int

const (
	// ChangeSet indicates a plugin setting was set or updated.
	ChangeSet ChangeType = iota

	// ChangeEnabled indicates a plugin's enabled flag changed.
	ChangeEnabled

	// ChangeReload indicates the store was reloaded from its backend.
	ChangeReload

	// ChangeSave indicates the store was saved.
	ChangeSave
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeEnabled:
		return "enabled"
	case ChangeReload:
		return "reload"
	case ChangeSave:
		return "save"
	default:
		return "unknown"
	}
}

// Change represents a settings change event.
type Change struct {
	// Path is the dot-separated path of the changed value, for example
	// "plugins.JsonFormatter.enabled". Empty for reload and save events.
	Path string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value (may be nil).
	OldValue any

	// NewValue is the new value.
	NewValue any

	// Source identifies where the change came from.
	Source string
}

// Observer is called when settings change. Observers run on the goroutine
// that made the change and must not block.
type Observer func(change Change)

// Subscription is a registered observer.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.remove(s.id)
	}
}

type observerEntry struct {
	id  uint64
	obs Observer
}

// Notifier fans store changes out to observers in subscription order.
type Notifier struct {
	mu        sync.RWMutex
	observers []observerEntry
	nextID    uint64
	closed    bool
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers observer for every change. Subscribing to a closed
// notifier returns a subscription that never fires.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	if !n.closed {
		n.observers = append(n.observers, observerEntry{id: n.nextID, obs: observer})
	}
	return &Subscription{id: n.nextID, notifier: n}
}

// Notify delivers change to a snapshot of the current observers, outside
// the lock, so observers may subscribe or unsubscribe.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed || len(n.observers) == 0 {
		n.mu.RUnlock()
		return
	}
	snapshot := make([]observerEntry, len(n.observers))
	copy(snapshot, n.observers)
	n.mu.RUnlock()

	for _, e := range snapshot {
		e.obs(change)
	}
}

// Close drops all observers; later changes are not delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.observers = nil
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.observers {
		if e.id == id {
			n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
			return
		}
	}
}
