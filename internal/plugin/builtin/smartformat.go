package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/dshills/clipai/internal/plugin"
)

// Smart formatting setting names.
const (
	SettingPreserveFormatting = "PreserveFormatting"
	SettingDetectCodeLanguage = "DetectCodeLanguage"
)

// Formatting describes what SmartFormatting found in a text.
type Formatting struct {
	Language            string
	ContentKind         string
	ProgrammingLanguage string
}

// SmartFormatting annotates clipboard text with its detected structure.
type SmartFormatting struct {
	*plugin.FeatureBase

	mu                 sync.RWMutex
	preserveFormatting bool
	detectCodeLanguage bool
}

// NewSmartFormatting creates the SmartFormatting feature.
func NewSmartFormatting() *SmartFormatting {
	f := &SmartFormatting{preserveFormatting: true, detectCodeLanguage: true}
	f.FeatureBase = plugin.NewFeatureBase(f,
		plugin.Descriptor{
			ID:          "SmartFormatting",
			Name:        "Smart Formatting",
			Version:     plugin.Version{Major: 1},
			Author:      author,
			Description: "Detect and preserve text formatting",
		},
		plugin.FeatureSpec{Name: "Smart Formatting", Type: plugin.FeatureSmartFormatting},
	)
	return f
}

// Initialize registers the feature and loads its settings.
func (f *SmartFormatting) Initialize(ctx context.Context, host plugin.Host) error {
	if err := f.FeatureBase.Initialize(ctx, host); err != nil {
		return err
	}
	return f.RefreshFromAppSettings(ctx)
}

// RefreshFromAppSettings re-reads the options.
func (f *SmartFormatting) RefreshFromAppSettings(ctx context.Context) error {
	preserve := plugin.Setting(f.FeatureBase, SettingPreserveFormatting, true)
	detectCode := plugin.Setting(f.FeatureBase, SettingDetectCodeLanguage, true)

	f.mu.Lock()
	f.preserveFormatting, f.detectCodeLanguage = preserve, detectCode
	f.mu.Unlock()
	return nil
}

// ProcessText normalizes the text to NFC and folds full-width ASCII and
// half-width katakana to their canonical widths.
func (f *SmartFormatting) ProcessText(ctx context.Context, text string) (string, error) {
	return width.Fold.String(norm.NFC.String(text)), nil
}

// Analyze inspects text.
func (f *SmartFormatting) Analyze(text string) Formatting {
	f.mu.RLock()
	detectCode := f.detectCodeLanguage
	f.mu.RUnlock()

	info := Formatting{Language: markerLanguage(text).String()}
	trimmed := strings.TrimSpace(text)

	switch {
	case isCode(text):
		info.ContentKind = "Code"
		if detectCode {
			info.ProgrammingLanguage = programmingLanguage(text)
		}
	case strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed):
		info.ContentKind = "JSON"
	case strings.Contains(text, "<") && strings.Contains(text, ">") &&
		(strings.Contains(text, "</") || strings.Contains(text, "/>")):
		info.ContentKind = "XML/HTML"
	case containsAny(text, "##", "**", "__", "```"):
		info.ContentKind = "Markdown"
	case isList(text):
		info.ContentKind = "List"
	case strings.Contains(text, "\n|") && strings.Contains(text, "|\n"):
		info.ContentKind = "Table"
	default:
		info.ContentKind = "Plain Text"
	}
	return info
}

// ProcessTextAsync prefixes the text with a formatting report. With
// PreserveFormatting off the text is returned unchanged.
func (f *SmartFormatting) ProcessTextAsync(ctx context.Context, text string, opts plugin.ProcessOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.SupportsContentType(opts.ContentType) {
		return "", plugin.ErrUnsupportedContent
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	f.mu.RLock()
	preserve := f.preserveFormatting
	f.mu.RUnlock()
	if !preserve {
		return text, nil
	}

	info := f.Analyze(text)
	var sb strings.Builder
	sb.WriteString("--- Formatting Information ---\n")
	fmt.Fprintf(&sb, "Language: %s\n", info.Language)
	fmt.Fprintf(&sb, "Content Type: %s\n", info.ContentKind)
	if info.ProgrammingLanguage != "" {
		fmt.Fprintf(&sb, "Programming Language: %s\n", info.ProgrammingLanguage)
	}
	sb.WriteString("\n--- Original Content ---\n\n")
	sb.WriteString(text)
	return sb.String(), nil
}

// ProcessImageAsync is not supported.
func (f *SmartFormatting) ProcessImageAsync(ctx context.Context, image []byte, opts plugin.ProcessOptions) (string, error) {
	return "", plugin.ErrUnsupportedContent
}

// SupportsContentType accepts everything except images.
func (f *SmartFormatting) SupportsContentType(ct plugin.ContentType) bool {
	return ct != plugin.ContentImage
}

// MenuOptions returns the formatting entry.
func (f *SmartFormatting) MenuOptions() []plugin.MenuOption {
	return []plugin.MenuOption{{Icon: "✏️", Text: "Smart Formatting", FeatureType: plugin.FeatureSmartFormatting}}
}

// SettingsFields adds the formatting options to the enabled toggle.
func (f *SmartFormatting) SettingsFields() []plugin.SettingField {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append(f.FeatureBase.SettingsFields(),
		plugin.SettingField{Name: SettingPreserveFormatting, Label: "Preserve formatting", Kind: plugin.SettingBool, Default: f.preserveFormatting},
		plugin.SettingField{Name: SettingDetectCodeLanguage, Label: "Detect code language", Kind: plugin.SettingBool, Default: f.detectCodeLanguage},
	)
}

// SaveSettings stores the values and applies them immediately.
func (f *SmartFormatting) SaveSettings(values map[string]any) error {
	if err := f.FeatureBase.SaveSettings(values); err != nil {
		return err
	}
	return f.RefreshFromAppSettings(context.Background())
}

func isCode(text string) bool {
	indicators := strings.Contains(text, "{") && strings.Contains(text, "}") &&
		strings.Contains(text, "(") && strings.Contains(text, ")") &&
		containsAny(text, ";", "=>", "function ", "def ", "class ", "import ", "using ", "var ", "const ", "let ")
	indented := strings.Contains(text, "\n  ") || strings.Contains(text, "\n\t")
	return indicators || indented
}

func isList(text string) bool {
	if containsAny(text, "\n- ", "\n* ") {
		return true
	}
	for i := 1; i <= 9; i++ {
		if strings.Contains(text, fmt.Sprintf("\n%d. ", i)) {
			return true
		}
	}
	return false
}

// programmingLanguage guesses the language of a code snippet.
func programmingLanguage(text string) string {
	switch {
	case containsAny(text, "using System;", "namespace ", "private void "):
		return "csharp"
	case strings.Contains(text, "import java.") ||
		strings.Contains(text, "public class ") && strings.Contains(text, "public static void main"):
		return "java"
	case containsAny(text, "package main", "func main(", ":= "):
		return "go"
	case containsAny(text, "import React", "const [", "useState", "export default"):
		return "javascript"
	case strings.Contains(text, "def ") && strings.Contains(text, ":") && containsAny(text, "import ", "from "):
		return "python"
	case containsAny(text, "#include <", "int main(", "std::"):
		return "cpp"
	case strings.Contains(text, "<?php") || strings.Contains(text, "function ") && strings.Contains(text, "$"):
		return "php"
	case containsAny(text, "<html", "<!DOCTYPE html>"):
		return "html"
	case strings.Contains(text, "SELECT ") && strings.Contains(text, " FROM ") && containsAny(text, " WHERE ", " JOIN "):
		return "sql"
	}
	return "unknown"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var (
	_ plugin.AsyncFeature = (*SmartFormatting)(nil)
	_ plugin.Refreshable  = (*SmartFormatting)(nil)
	_ plugin.SettingsUI   = (*SmartFormatting)(nil)
)
