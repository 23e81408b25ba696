package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user configuration directory.
const AppName = "clipai"

// EnvPrefix prefixes environment variable overrides.
const EnvPrefix = "CLIPAI_"

// Config is the top-level runtime configuration.
type Config struct {
	Plugins       PluginsConfig       `yaml:"plugins"`
	DataDir       string              `yaml:"data_dir"`
	Settings      SettingsConfig      `yaml:"settings"`
	Refresh       RefreshConfig       `yaml:"refresh"`
	Logging       LoggingConfig       `yaml:"logging"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// PluginsConfig controls discovery and invocation.
type PluginsConfig struct {
	// Dir is scanned recursively for plugin modules.
	Dir string `yaml:"dir"`
	// Extensions enables module openers by file extension.
	Extensions []string `yaml:"extensions"`
	// Builtin loads the compiled-in feature plugins.
	Builtin bool `yaml:"builtin"`
	// InvokeTimeout bounds every plugin call. Zero disables the bound.
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
	// ParallelInit initializes plugins concurrently.
	ParallelInit bool `yaml:"parallel_init"`
	// MaxParallel caps concurrent initializations.
	MaxParallel int `yaml:"max_parallel"`
}

// SettingsConfig locates the persisted plugin settings.
type SettingsConfig struct {
	Path string `yaml:"path"`
	// Format is "toml" or "json". Empty infers it from Path.
	Format string `yaml:"format"`
	// Watch reloads the settings when the file changes on disk.
	Watch bool `yaml:"watch"`
}

// RefreshConfig schedules periodic refresh cycles.
type RefreshConfig struct {
	// Schedule is a cron expression or descriptor such as "@every 5m".
	// Empty disables scheduled refreshes.
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationsConfig configures the notification center.
type NotificationsConfig struct {
	// Terminal prints notifications to stderr.
	Terminal    bool          `yaml:"terminal"`
	HistorySize int           `yaml:"history_size"`
	HistoryTTL  time.Duration `yaml:"history_ttl"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration rooted at the user's
// config directory.
func Default() *Config {
	base := BaseDir()
	return &Config{
		Plugins: PluginsConfig{
			Dir:           filepath.Join(base, "plugins"),
			Extensions:    []string{".lua", ".plugin", ".so"},
			Builtin:       true,
			InvokeTimeout: 10 * time.Second,
			MaxParallel:   4,
		},
		DataDir: filepath.Join(base, "data"),
		Settings: SettingsConfig{
			Path:  filepath.Join(base, "settings.toml"),
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Notifications: NotificationsConfig{
			Terminal:    true,
			HistorySize: 100,
			HistoryTTL:  time.Hour,
		},
	}
}

// BaseDir returns the per-user clipai directory.
func BaseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(dir, AppName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.yaml")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error when path is the
// default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CLIPAI_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PLUGINS_DIR":      &c.Plugins.Dir,
		"DATA_DIR":         &c.DataDir,
		"SETTINGS_PATH":    &c.Settings.Path,
		"SETTINGS_FORMAT":  &c.Settings.Format,
		"REFRESH_SCHEDULE": &c.Refresh.Schedule,
		"LOG_LEVEL":        &c.Logging.Level,
		"LOG_FORMAT":       &c.Logging.Format,
		"METRICS_ADDR":     &c.Metrics.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"PLUGINS_BUILTIN":        &c.Plugins.Builtin,
		"PLUGINS_PARALLEL_INIT":  &c.Plugins.ParallelInit,
		"SETTINGS_WATCH":         &c.Settings.Watch,
		"NOTIFICATIONS_TERMINAL": &c.Notifications.Terminal,
	}
	for name, dst := range bools {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ValidationError{Path: EnvPrefix + name, Message: "expected a boolean", Value: v, Code: ErrCodeTypeMismatch}
		}
		*dst = b
	}

	if v, ok := lookup(EnvPrefix + "PLUGINS_INVOKE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ValidationError{Path: EnvPrefix + "PLUGINS_INVOKE_TIMEOUT", Message: "expected a duration", Value: v, Code: ErrCodeTypeMismatch}
		}
		c.Plugins.InvokeTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "PLUGINS_EXTENSIONS"); ok {
		c.Plugins.Extensions = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) expandPaths() {
	c.Plugins.Dir = expandHome(c.Plugins.Dir)
	c.DataDir = expandHome(c.DataDir)
	c.Settings.Path = expandHome(c.Settings.Path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, v any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v, Code: code})
	}

	if c.Plugins.InvokeTimeout < 0 {
		add("plugins.invoke_timeout", "must not be negative", c.Plugins.InvokeTimeout, ErrCodeOutOfRange)
	}
	if c.Plugins.ParallelInit && c.Plugins.MaxParallel < 1 {
		add("plugins.max_parallel", "must be at least 1", c.Plugins.MaxParallel, ErrCodeOutOfRange)
	}
	for _, ext := range c.Plugins.Extensions {
		if strings.Trim(ext, ".") == "" || strings.ContainsAny(ext, `/\`) {
			add("plugins.extensions", "invalid extension", ext, ErrCodePatternMismatch)
		}
	}

	switch strings.ToLower(c.Settings.Format) {
	case "", "toml", "json":
	default:
		add("settings.format", "must be toml or json", c.Settings.Format, ErrCodeInvalidEnum)
	}
	if c.Settings.Watch && c.Settings.Path == "" {
		add("settings.path", "required when watch is enabled", c.Settings.Path, ErrCodeRequiredMissing)
	}

	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			add("refresh.schedule", err.Error(), c.Refresh.Schedule, ErrCodePatternMismatch)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "unknown level", c.Logging.Level, ErrCodeInvalidEnum)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format", "must be text or json", c.Logging.Format, ErrCodeInvalidEnum)
	}

	if c.Notifications.HistorySize < 0 {
		add("notifications.history_size", "must not be negative", c.Notifications.HistorySize, ErrCodeOutOfRange)
	}
	if c.Notifications.HistoryTTL < 0 {
		add("notifications.history_ttl", "must not be negative", c.Notifications.HistoryTTL, ErrCodeOutOfRange)
	}

	return errors.Join(errs...)
}
