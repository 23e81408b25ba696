package manager

// EventType is the type of manager event.
type EventType int

const (
	// EventPluginLoaded is emitted when a plugin initializes successfully.
	EventPluginLoaded EventType = iota
	// EventPluginFailed is emitted when a module, factory or plugin
	// Initialize fails.
	EventPluginFailed
	// EventPluginEnabled is emitted when a refresh enables a plugin.
	EventPluginEnabled
	// EventPluginDisabled is emitted when a refresh disables a plugin.
	EventPluginDisabled
	// EventPluginReady is emitted when a plugin's background initialization
	// settles. Err is set if it failed.
	EventPluginReady
	// EventRefreshed is emitted after each refresh cycle.
	EventRefreshed
	// EventPluginShutDown is emitted after a plugin's Shutdown.
	EventPluginShutDown
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventPluginLoaded:
		return "loaded"
	case EventPluginFailed:
		return "failed"
	case EventPluginEnabled:
		return "enabled"
	case EventPluginDisabled:
		return "disabled"
	case EventPluginReady:
		return "ready"
	case EventRefreshed:
		return "refreshed"
	case EventPluginShutDown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Event is a manager event. Plugin is empty for EventRefreshed, which
// carries the trigger in Detail.
type Event struct {
	Type   EventType
	Plugin string
	Detail string
	Err    error
}

// EventHandler handles manager events.
// Handlers run synchronously on the goroutine that caused the event and
// must not block. Panics in handlers are recovered.
type EventHandler func(event Event)

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.handlersMu.Lock()
	m.handlers = append(m.handlers, handler)
	index := len(m.handlers) - 1
	m.handlersMu.Unlock()

	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		// Nil out the slot so other indexes stay valid.
		if index < len(m.handlers) {
			m.handlers[index] = nil
		}
	}
}

// emit sends an event to all handlers.
// Handlers are called outside any locks and panics are recovered.
func (m *Manager) emit(event Event) {
	m.handlersMu.RLock()
	handlers := make([]EventHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.handlersMu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Warn("event handler panic on %s: %v", event.Type, r)
				}
			}()
			handler(event)
		}()
	}
}
