package lua

import "errors"

// Errors for Lua modules.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoRegistrations is returned when a script registers no plugins.
	ErrNoRegistrations = errors.New("lua module registered no plugins")

	// ErrNoCallback is returned when a host function is used outside a
	// plugin callback.
	ErrNoCallback = errors.New("not inside a plugin callback")
)
