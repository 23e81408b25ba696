package settings

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// idPrefixes are stripped from fully qualified plugin ids.
var idPrefixes = []string{
	"ClipboardAI.Plugins.",
	"ClipboardAI.Plugin.",
	"com.clipboardai.plugins.",
}

// NormalizeID maps the different spellings of a plugin id onto one key.
// Known namespace prefixes are removed case-insensitively and the first
// letter is upper-cased; the rest is left as is.
func NormalizeID(id string) string {
	if id == "" {
		return ""
	}

	if strings.Contains(id, ".") {
		for _, prefix := range idPrefixes {
			if len(id) >= len(prefix) && strings.EqualFold(id[:len(prefix)], prefix) {
				id = id[len(prefix):]
				break
			}
		}
	}
	if id == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(id)
	return cases.Upper(language.Und).String(string(r)) + id[size:]
}
