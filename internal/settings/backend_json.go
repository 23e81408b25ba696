package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// JSON document keys holding plugin state. Other keys in the application
// settings file are preserved on save.
const (
	jsonEnabledKey  = "EnabledPlugins"
	jsonSettingsKey = "PluginSettings"
)

// JSONBackend stores plugin settings inside a JSON application settings file.
type JSONBackend struct {
	path string
}

// NewJSONBackend creates a JSON backend for path.
func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{path: path}
}

// Path returns the file path.
func (b *JSONBackend) Path() string {
	return b.path
}

// Load reads the file. A missing file yields an empty snapshot.
func (b *JSONBackend) Load() (Snapshot, error) {
	snap := NewSnapshot()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return snap, fmt.Errorf("reading settings file %s: %w", b.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return snap, nil
	}
	if !gjson.ValidBytes(data) {
		return snap, &ParseError{Path: b.path, Message: "invalid JSON"}
	}

	gjson.GetBytes(data, jsonEnabledKey).ForEach(func(key, value gjson.Result) bool {
		snap.Enabled[key.String()] = value.Bool()
		return true
	})

	gjson.GetBytes(data, jsonSettingsKey).ForEach(func(key, plugin gjson.Result) bool {
		if !plugin.IsObject() {
			return true
		}
		values := make(map[string]any)
		plugin.ForEach(func(name, value gjson.Result) bool {
			values[name.String()] = value.Value()
			return true
		})
		snap.Settings[key.String()] = values
		return true
	})

	return snap, nil
}

// Save writes the plugin sections back into the file, keeping unrelated keys.
func (b *JSONBackend) Save(snap Snapshot) error {
	doc, err := os.ReadFile(b.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading settings file %s: %w", b.path, err)
	}
	if len(strings.TrimSpace(string(doc))) == 0 || !gjson.ValidBytes(doc) {
		doc = []byte("{}")
	}

	doc, err = sjson.SetBytes(doc, jsonEnabledKey, snap.Enabled)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", jsonEnabledKey, err)
	}
	doc, err = sjson.SetBytes(doc, jsonSettingsKey, snap.Settings)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", jsonSettingsKey, err)
	}

	return writeFileAtomic(b.path, pretty.Pretty(doc))
}
