package settings

import (
	"errors"
	"fmt"
)

// Errors returned by settings operations.
var (
	// ErrEmptyFeatureID indicates a blank feature id.
	ErrEmptyFeatureID = errors.New("feature id is empty")

	// ErrEmptySettingName indicates a blank setting name.
	ErrEmptySettingName = errors.New("setting name is empty")

	// ErrUnknownFormat indicates an unsupported backend format.
	ErrUnknownFormat = errors.New("unknown settings format")
)

// ParseError represents an error while parsing a settings file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
