// Package plugin defines the contract between clipai and its plugins.
//
// Every plugin implements Plugin. The richer capabilities are optional and
// probed independently with type assertions:
//
//   - FeatureProvider: the plugin provides a named feature that can be
//     enabled and disabled from the settings.
//   - AsyncFeature: the feature processes text or images with options.
//   - Refreshable: the plugin re-reads its settings on a refresh cycle.
//   - ReadinessReporter: the plugin finishes initializing in the background.
//
// Plugins receive a Host in Initialize. It is the only way back into the
// runtime: logging, a private data directory, settings, notifications and
// the feature registrar.
//
// FeatureBase implements Plugin and FeatureProvider for embedding:
//
//	type Upper struct {
//		*plugin.FeatureBase
//	}
//
//	func NewUpper() *Upper {
//		u := &Upper{}
//		u.FeatureBase = plugin.NewFeatureBase(u, plugin.Descriptor{ID: "Upper"},
//			plugin.FeatureSpec{Name: "Uppercase", Type: plugin.FeatureOther})
//		return u
//	}
package plugin
