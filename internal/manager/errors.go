package manager

import "errors"

// Manager errors.
var (
	// ErrNotInitialized is returned by query and processing calls made while
	// the manager is not Ready.
	ErrNotInitialized = errors.New("plugin manager not initialized")

	// ErrInvokeTimeout is returned when a plugin call exceeds the invoke
	// timeout. The call keeps running in the background; its result is
	// discarded.
	ErrInvokeTimeout = errors.New("plugin call timed out")

	// ErrNoDataDir is returned by PluginDataPath when no data directory is
	// configured.
	ErrNoDataDir = errors.New("no data directory configured")

	// ErrFeatureUnavailable is returned when no live plugin provides a feature.
	ErrFeatureUnavailable = errors.New("feature unavailable")

	// ErrFeatureDisabled is returned when every provider of a feature is disabled.
	ErrFeatureDisabled = errors.New("feature disabled")
)
