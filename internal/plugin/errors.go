package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNilPlugin is returned when a nil plugin is provided.
	ErrNilPlugin = errors.New("plugin is nil")

	// ErrEmptyID is returned when a plugin reports an empty id.
	ErrEmptyID = errors.New("plugin id is empty")

	// ErrDuplicateID is returned when a plugin id is already loaded.
	ErrDuplicateID = errors.New("duplicate plugin id")

	// ErrInvalidID is returned when a plugin id cannot be used as a path element.
	ErrInvalidID = errors.New("invalid plugin id")

	// ErrNoHost is returned when a plugin is used before Initialize.
	ErrNoHost = errors.New("plugin has no host")

	// ErrNoSettings is returned when the host does not expose usable settings.
	ErrNoSettings = errors.New("host settings unavailable")

	// ErrNotReady is returned when a plugin is still initializing in the background.
	ErrNotReady = errors.New("plugin is not ready")

	// ErrUnsupportedContent is returned for content types a feature does not handle.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// PanicError wraps a value recovered from a panicking plugin call.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin panic: %v", e.Value)
}
