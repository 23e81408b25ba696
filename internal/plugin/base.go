package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/clipai/internal/settings"
)

// Descriptor holds a plugin's identity.
type Descriptor struct {
	ID          string
	Name        string
	Version     Version
	Author      string
	Description string
}

// Describe returns the descriptor of any plugin.
func Describe(p Plugin) Descriptor {
	return Descriptor{
		ID:          p.ID(),
		Name:        p.Name(),
		Version:     p.Version(),
		Author:      p.Author(),
		Description: p.Description(),
	}
}

// FeatureSpec names the feature a FeatureBase provides.
type FeatureSpec struct {
	ID   string
	Name string
	Type FeatureType
}

// FeatureBase implements Plugin, FeatureProvider, Refreshable and
// SettingsUI on top of the host's settings. Concrete plugins embed it and
// override ProcessText and whatever else they need.
//
// The enabled flag is a cache of the settings value; the plugin manager
// reconciles it on every refresh.
type FeatureBase struct {
	mu sync.RWMutex

	owner   Plugin
	desc    Descriptor
	feature FeatureSpec
	host    Host
	enabled bool
}

// NewFeatureBase creates a base for owner, the plugin that embeds it. The
// owner is what gets registered with the feature registry.
func NewFeatureBase(owner Plugin, desc Descriptor, feature FeatureSpec) *FeatureBase {
	if feature.ID == "" {
		feature.ID = desc.ID
	}
	if feature.Name == "" {
		feature.Name = desc.Name
	}
	return &FeatureBase{owner: owner, desc: desc, feature: feature}
}

func (b *FeatureBase) ID() string          { return b.desc.ID }
func (b *FeatureBase) Name() string        { return b.desc.Name }
func (b *FeatureBase) Version() Version    { return b.desc.Version }
func (b *FeatureBase) Author() string      { return b.desc.Author }
func (b *FeatureBase) Description() string { return b.desc.Description }

func (b *FeatureBase) FeatureID() string        { return b.feature.ID }
func (b *FeatureBase) FeatureName() string      { return b.feature.Name }
func (b *FeatureBase) FeatureType() FeatureType { return b.feature.Type }

// Initialize stores the host, registers the owner under FeatureID and
// primes the enabled cache from settings.
func (b *FeatureBase) Initialize(ctx context.Context, host Host) error {
	if host == nil {
		return ErrNoHost
	}

	b.mu.Lock()
	b.host = host
	b.mu.Unlock()

	if reg := host.Features(); reg != nil {
		owner := b.owner
		if owner == nil {
			owner = b
		}
		if err := reg.RegisterFeatureProvider(b.feature.ID, owner); err != nil {
			return fmt.Errorf("registering feature %q: %w", b.feature.ID, err)
		}
	}

	if acc, ok := b.Accessor(); ok {
		b.mu.Lock()
		b.enabled = acc.IsPluginEnabled(b.feature.ID)
		b.mu.Unlock()
	}
	return nil
}

// Host returns the host, or nil before Initialize.
func (b *FeatureBase) Host() Host {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.host
}

// Accessor narrows the host's application settings to a settings.Accessor.
func (b *FeatureBase) Accessor() (settings.Accessor, bool) {
	host := b.Host()
	if host == nil {
		return nil, false
	}
	acc, ok := host.AppSettings().(settings.Accessor)
	return acc, ok && acc != nil
}

// ProcessText returns text unchanged.
func (b *FeatureBase) ProcessText(ctx context.Context, text string) (string, error) {
	return text, nil
}

// Settings returns the feature's stored settings.
func (b *FeatureBase) Settings() map[string]any {
	acc, ok := b.Accessor()
	if !ok {
		return map[string]any{}
	}
	return acc.AllPluginSettings(b.feature.ID)
}

// UpdateSettings writes every value and saves once.
func (b *FeatureBase) UpdateSettings(values map[string]any) error {
	acc, ok := b.Accessor()
	if !ok {
		return ErrNoSettings
	}
	for name, v := range values {
		if err := acc.SetPluginSetting(b.feature.ID, name, v); err != nil {
			return err
		}
	}
	return acc.Save()
}

// Shutdown does nothing.
func (b *FeatureBase) Shutdown(ctx context.Context) error {
	return nil
}

// IsEnabled returns the cached enabled flag.
func (b *FeatureBase) IsEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled updates the cache and writes the flag to settings.
func (b *FeatureBase) SetEnabled(enabled bool) error {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()

	acc, ok := b.Accessor()
	if !ok {
		return nil
	}
	if err := acc.SetPluginEnabled(b.feature.ID, enabled); err != nil {
		return err
	}
	return acc.Save()
}

// RefreshFromAppSettings logs the refresh. Plugins with cached settings
// override it.
func (b *FeatureBase) RefreshFromAppSettings(ctx context.Context) error {
	b.Log(LogDebug, "refreshed from application settings")
	return nil
}

// SettingsFields describes the enabled toggle.
func (b *FeatureBase) SettingsFields() []SettingField {
	return []SettingField{{
		Name:    "Enabled",
		Label:   "Enable " + b.desc.Name,
		Kind:    SettingBool,
		Default: b.IsEnabled(),
	}}
}

// SaveSettings applies "Enabled" through SetEnabled and stores the rest.
func (b *FeatureBase) SaveSettings(values map[string]any) error {
	rest := make(map[string]any, len(values))
	for k, v := range values {
		if k == "Enabled" {
			if err := b.SetEnabled(settings.Convert(v, b.IsEnabled())); err != nil {
				return err
			}
			continue
		}
		rest[k] = v
	}
	if len(rest) == 0 {
		return nil
	}
	return b.UpdateSettings(rest)
}

// SetSetting stores one value and saves.
func (b *FeatureBase) SetSetting(name string, value any) error {
	acc, ok := b.Accessor()
	if !ok {
		return ErrNoSettings
	}
	if err := acc.SetPluginSetting(b.feature.ID, name, value); err != nil {
		return err
	}
	return acc.Save()
}

// Log writes through the host logger.
func (b *FeatureBase) Log(level LogLevel, format string, args ...any) {
	host := b.Host()
	if host == nil {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	host.LogMessage(b.desc.ID, level, msg)
}

// Notify shows a notification through the host.
func (b *FeatureBase) Notify(title, message string, typ NotificationType) {
	if host := b.Host(); host != nil {
		host.ShowNotification(title, message, typ)
	}
}

// Setting reads a typed value for b's feature, falling back to def.
func Setting[T any](b *FeatureBase, name string, def T) T {
	acc, ok := b.Accessor()
	if !ok {
		return def
	}
	return settings.Get(acc, b.feature.ID, name, def)
}

var (
	_ FeatureProvider = (*FeatureBase)(nil)
	_ Refreshable     = (*FeatureBase)(nil)
	_ SettingsUI      = (*FeatureBase)(nil)
)
