package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TOML table names holding plugin state.
const (
	tomlEnabledKey  = "enabled_plugins"
	tomlSettingsKey = "plugin_settings"
)

// TOMLBackend stores plugin settings in a TOML file.
type TOMLBackend struct {
	path string
}

// NewTOMLBackend creates a TOML backend for path.
func NewTOMLBackend(path string) *TOMLBackend {
	return &TOMLBackend{path: path}
}

// Path returns the file path.
func (b *TOMLBackend) Path() string {
	return b.path
}

// Load reads the file. A missing file yields an empty snapshot.
func (b *TOMLBackend) Load() (Snapshot, error) {
	snap := NewSnapshot()

	doc, err := b.read()
	if err != nil || doc == nil {
		return snap, err
	}

	if enabled, ok := doc[tomlEnabledKey].(map[string]any); ok {
		for id, v := range enabled {
			on, ok := v.(bool)
			if !ok {
				return snap, &ParseError{
					Path:    b.path,
					Message: fmt.Sprintf("%s.%s must be a boolean, got %T", tomlEnabledKey, id, v),
				}
			}
			snap.Enabled[id] = on
		}
	}

	if all, ok := doc[tomlSettingsKey].(map[string]any); ok {
		for id, v := range all {
			values, ok := v.(map[string]any)
			if !ok {
				continue
			}
			snap.Settings[id] = values
		}
	}

	return snap, nil
}

// Save writes the plugin tables, keeping other top-level keys.
func (b *TOMLBackend) Save(snap Snapshot) error {
	doc, err := b.read()
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			return err
		}
		doc = nil
	}
	if doc == nil {
		doc = make(map[string]any)
	}

	enabled := make(map[string]any, len(snap.Enabled))
	for id, on := range snap.Enabled {
		enabled[id] = on
	}
	all := make(map[string]any, len(snap.Settings))
	for id, values := range snap.Settings {
		all[id] = values
	}
	doc[tomlEnabledKey] = enabled
	doc[tomlSettingsKey] = all

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return writeFileAtomic(b.path, data)
}

func (b *TOMLBackend) read() (map[string]any, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", b.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: b.path, Message: err.Error(), Err: err}
	}
	return doc, nil
}

// NewBackend returns a backend for the named format ("toml" or "json").
// An empty format is inferred from the file extension.
func NewBackend(format, path string) (Backend, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case "toml":
		return NewTOMLBackend(path), nil
	case "json":
		return NewJSONBackend(path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
