package builtin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/dshills/clipai/internal/plugin"
)

// ErrInvalidJSON is returned when the input is not valid JSON.
var ErrInvalidJSON = errors.New("input is not valid JSON")

// JSON formatter setting names.
const (
	SettingIndentSize    = "IndentSize"
	SettingWriteIndented = "WriteIndented"
	SettingSortKeys      = "SortKeys"
)

// JSONFormatter pretty-prints or minifies JSON clipboard text.
type JSONFormatter struct {
	*plugin.FeatureBase

	mu         sync.RWMutex
	indentSize int
	indented   bool
	sortKeys   bool
}

// NewJSONFormatter creates the JsonFormatter feature.
func NewJSONFormatter() *JSONFormatter {
	f := &JSONFormatter{indentSize: 2, indented: true}
	f.FeatureBase = plugin.NewFeatureBase(f,
		plugin.Descriptor{
			ID:          "JsonFormatter",
			Name:        "JSON Formatter",
			Version:     plugin.Version{Major: 1},
			Author:      author,
			Description: "Formats JSON content with proper indentation and structure",
		},
		plugin.FeatureSpec{Name: "JSON Formatter", Type: plugin.FeatureJSONFormatter},
	)
	return f
}

// Initialize registers the feature and loads its settings.
func (f *JSONFormatter) Initialize(ctx context.Context, host plugin.Host) error {
	if err := f.FeatureBase.Initialize(ctx, host); err != nil {
		return err
	}
	return f.RefreshFromAppSettings(ctx)
}

// RefreshFromAppSettings re-reads the formatting options.
func (f *JSONFormatter) RefreshFromAppSettings(ctx context.Context) error {
	indent := plugin.Setting(f.FeatureBase, SettingIndentSize, 2)
	if indent < 0 || indent > 8 {
		indent = 2
	}
	indented := plugin.Setting(f.FeatureBase, SettingWriteIndented, true)
	sortKeys := plugin.Setting(f.FeatureBase, SettingSortKeys, false)

	f.mu.Lock()
	f.indentSize, f.indented, f.sortKeys = indent, indented, sortKeys
	f.mu.Unlock()

	f.Log(plugin.LogDebug, "indent=%d indented=%t sort=%t", indent, indented, sortKeys)
	return nil
}

// ProcessText formats valid JSON and leaves anything else unchanged.
func (f *JSONFormatter) ProcessText(ctx context.Context, text string) (string, error) {
	if !gjson.Valid(text) {
		return text, nil
	}
	return f.format(text, plugin.ProcessOptions{}), nil
}

// ProcessTextAsync formats text. The "minify" option forces compact
// output.
func (f *JSONFormatter) ProcessTextAsync(ctx context.Context, text string, opts plugin.ProcessOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.SupportsContentType(opts.ContentType) {
		return "", plugin.ErrUnsupportedContent
	}
	if !gjson.Valid(text) {
		f.Log(plugin.LogWarning, "input is not valid JSON")
		return "", ErrInvalidJSON
	}
	return f.format(text, opts), nil
}

func (f *JSONFormatter) format(text string, opts plugin.ProcessOptions) string {
	f.mu.RLock()
	indent, indented, sortKeys := f.indentSize, f.indented, f.sortKeys
	f.mu.RUnlock()

	if minify, _ := opts.Value("minify", false).(bool); minify {
		indented = false
	}

	out := pretty.PrettyOptions([]byte(text), &pretty.Options{
		Width:    80,
		Indent:   strings.Repeat(" ", indent),
		SortKeys: sortKeys,
	})
	if !indented {
		out = pretty.Ugly(out)
	}
	return strings.TrimRight(string(out), "\n")
}

// ProcessImageAsync is not supported.
func (f *JSONFormatter) ProcessImageAsync(ctx context.Context, image []byte, opts plugin.ProcessOptions) (string, error) {
	return "", plugin.ErrUnsupportedContent
}

// SupportsContentType accepts text and code.
func (f *JSONFormatter) SupportsContentType(ct plugin.ContentType) bool {
	return ct == plugin.ContentText || ct == plugin.ContentCode
}

// MenuOptions returns the format entry.
func (f *JSONFormatter) MenuOptions() []plugin.MenuOption {
	return []plugin.MenuOption{{Icon: "{ }", Text: "Format JSON", FeatureType: plugin.FeatureJSONFormatter}}
}

// SettingsFields adds the formatting options to the enabled toggle.
func (f *JSONFormatter) SettingsFields() []plugin.SettingField {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append(f.FeatureBase.SettingsFields(),
		plugin.SettingField{
			Name: SettingIndentSize, Label: "Indentation Size", Kind: plugin.SettingChoice,
			Default: f.indentSize, Choices: []string{"2", "4", "8"},
		},
		plugin.SettingField{Name: SettingWriteIndented, Label: "Write Indentation", Kind: plugin.SettingBool, Default: f.indented},
		plugin.SettingField{Name: SettingSortKeys, Label: "Sort Keys", Kind: plugin.SettingBool, Default: f.sortKeys},
	)
}

// SaveSettings stores the values and applies them immediately.
func (f *JSONFormatter) SaveSettings(values map[string]any) error {
	if err := f.FeatureBase.SaveSettings(values); err != nil {
		return err
	}
	return f.RefreshFromAppSettings(context.Background())
}

var (
	_ plugin.AsyncFeature = (*JSONFormatter)(nil)
	_ plugin.Refreshable  = (*JSONFormatter)(nil)
	_ plugin.SettingsUI   = (*JSONFormatter)(nil)
)
