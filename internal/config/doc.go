// Package config loads the clipai runtime configuration.
//
// Configuration is resolved in three layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← CLIPAI_* (highest priority)
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/clipai/config.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// A config file looks like:
//
//	plugins:
//	  dir: ~/.config/clipai/plugins
//	  invoke_timeout: 10s
//	  parallel_init: true
//	settings:
//	  path: ~/.config/clipai/settings.toml
//	  watch: true
//	refresh:
//	  schedule: "@every 5m"
//	logging:
//	  level: debug
//	  format: json
//
// Load never returns a partially validated Config: callers either get a
// Config that passed Validate or an error.
package config
