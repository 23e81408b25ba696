package manager

// State is the lifecycle state of the Manager.
type State int

// Manager states.
const (
	// StateUninitialized - No plugins are loaded.
	StateUninitialized State = iota

	// StateInitializing - Initialize is loading and initializing plugins.
	StateInitializing

	// StateReady - Plugins are live and calls are accepted.
	StateReady

	// StateShuttingDown - Shutdown is stopping plugins.
	StateShuttingDown
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}
