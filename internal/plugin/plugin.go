package plugin

import "context"

// Plugin is the capability every loadable plugin satisfies.
//
// Initialize is called once with the runtime's Host. A non-nil error means the
// plugin failed to initialize and it is discarded. Plugins that need expensive
// setup should start it in the background and report progress through
// ReadinessReporter instead of blocking Initialize.
type Plugin interface {
	ID() string
	Name() string
	Version() Version
	Author() string
	Description() string

	Initialize(ctx context.Context, host Host) error

	// ProcessText is the synchronous pipeline entry point.
	ProcessText(ctx context.Context, text string) (string, error)

	Settings() map[string]any
	UpdateSettings(settings map[string]any) error

	Shutdown(ctx context.Context) error
}

// FeatureProvider is implemented by plugins that provide a named feature
// with an enabled flag.
type FeatureProvider interface {
	Plugin

	FeatureID() string
	FeatureName() string
	IsEnabled() bool
	SetEnabled(enabled bool) error
}

// AsyncFeature is implemented by feature plugins that process clipboard
// content on demand. The methods block until the work completes or ctx is
// done; callers choose the goroutine.
type AsyncFeature interface {
	FeatureProvider

	FeatureType() FeatureType
	ProcessTextAsync(ctx context.Context, text string, opts ProcessOptions) (string, error)
	ProcessImageAsync(ctx context.Context, image []byte, opts ProcessOptions) (string, error)
	SupportsContentType(ct ContentType) bool
	MenuOptions() []MenuOption
}

// Refreshable is implemented by plugins that cache values from the
// application settings and need to re-read them after a change.
type Refreshable interface {
	Plugin

	RefreshFromAppSettings(ctx context.Context) error
}

// SettingsUI is implemented by plugins that describe their own settings
// form. The description is UI neutral.
type SettingsUI interface {
	Plugin

	SettingsFields() []SettingField
	SaveSettings(values map[string]any) error
}

// ReadinessReporter is implemented by plugins that finish initializing in
// the background.
type ReadinessReporter interface {
	Readiness() *Readiness
}

// FeatureRegistrar is the part of the feature registry plugins use to
// announce themselves during Initialize.
type FeatureRegistrar interface {
	RegisterFeatureProvider(featureID string, p Plugin) error
}

// Host is the service object handed to plugins at initialization.
type Host interface {
	// LogMessage records a message on behalf of a plugin.
	LogMessage(pluginID string, level LogLevel, message string)

	// PluginDataPath returns the plugin's private data directory, creating
	// it if needed.
	PluginDataPath(pluginID string) (string, error)

	// AppSettings returns the application settings object. Plugins narrow
	// it to the interface they need.
	AppSettings() any

	// ShowNotification dispatches a user-facing notification.
	ShowNotification(title, message string, typ NotificationType)

	// Features returns the registrar used for feature self-registration.
	Features() FeatureRegistrar
}

// ProcessOptions carries per-call options for AsyncFeature processing.
type ProcessOptions struct {
	ContentType ContentType
	Values      map[string]any
}

// Value returns an option value or def when absent.
func (o ProcessOptions) Value(key string, def any) any {
	if o.Values == nil {
		return def
	}
	if v, ok := o.Values[key]; ok {
		return v
	}
	return def
}

// SettingKind is the editor kind of a SettingField.
type SettingKind string

// Setting kinds.
const (
	SettingText   SettingKind = "text"
	SettingNumber SettingKind = "number"
	SettingBool   SettingKind = "bool"
	SettingChoice SettingKind = "choice"
)

// SettingField describes one entry in a plugin's settings form.
type SettingField struct {
	Name    string
	Label   string
	Kind    SettingKind
	Default any
	Choices []string
	Help    string
}
