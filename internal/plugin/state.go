package plugin

// State represents the lifecycle state of a loaded plugin record.
type State int

// Plugin states.
const (
	// StateDiscovered - A factory for the plugin was found in a module.
	StateDiscovered State = iota

	// StateInstantiated - The factory produced an instance.
	StateInstantiated

	// StateInitialized - Initialize returned successfully.
	StateInitialized

	// StateEnabled - The plugin's feature is enabled.
	StateEnabled

	// StateDisabled - The plugin's feature is disabled.
	StateDisabled

	// StateShutDown - Shutdown was called.
	StateShutDown

	// StateFailed - Instantiation or initialization failed.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateInstantiated:
		return "instantiated"
	case StateInitialized:
		return "initialized"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateShutDown:
		return "shutdown"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsLive returns true if the plugin passed Initialize and has not been shut down.
func (s State) IsLive() bool {
	return s == StateInitialized || s == StateEnabled || s == StateDisabled
}

// EnabledState returns StateEnabled or StateDisabled.
func EnabledState(enabled bool) State {
	if enabled {
		return StateEnabled
	}
	return StateDisabled
}
