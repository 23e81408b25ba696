// Package builtin contains the feature plugins compiled into clipai.
//
// Each plugin registers itself in the default loader catalog, so it is
// loaded when builtins are enabled or when a ".plugin" manifest names its
// module.
package builtin

import (
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/plugin/loader"
)

// Catalog module names.
const (
	ModuleJSONFormatter     = "jsonformatter"
	ModuleSmartFormatting   = "smartformatting"
	ModuleLanguageDetection = "languagedetection"
)

const author = "ClipboardAI"

func init() {
	loader.Register(ModuleJSONFormatter,
		loader.FactoryOf("JsonFormatter", func() plugin.Plugin { return NewJSONFormatter() }))
	loader.Register(ModuleSmartFormatting,
		loader.FactoryOf("SmartFormatting", func() plugin.Plugin { return NewSmartFormatting() }))
	loader.Register(ModuleLanguageDetection,
		loader.FactoryOf("LanguageDetection", func() plugin.Plugin { return NewLanguageDetection() }))
}
