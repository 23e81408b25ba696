package loader

import (
	"errors"
	"fmt"
)

// Loader errors.
var (
	// ErrUnknownModule is returned when a manifest names a module the
	// catalog does not have.
	ErrUnknownModule = errors.New("unknown module")

	// ErrNoFactories is returned when a module exposes no factories.
	ErrNoFactories = errors.New("module exposes no plugin factories")

	// ErrNilInstance is returned when a factory returns nil.
	ErrNilInstance = errors.New("factory returned nil plugin")
)

// Stage is the loading step that failed.
type Stage int

const (
	// StageScan is a directory walk failure.
	StageScan Stage = iota
	// StageOpen is a module open failure.
	StageOpen
	// StageInstantiate is a factory failure.
	StageInstantiate
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageScan:
		return "scan"
	case StageOpen:
		return "open"
	case StageInstantiate:
		return "instantiate"
	default:
		return "unknown"
	}
}

// LoadError describes one unit that could not be loaded.
type LoadError struct {
	Path    string
	Factory string
	Stage   Stage
	Err     error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Factory != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Stage, e.Path, e.Factory, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
