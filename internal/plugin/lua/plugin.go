package lua

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/clipai/internal/plugin"
)

// scriptPlugin is a plugin whose callbacks live in a Lua state.
type scriptPlugin struct {
	state *State
	reg   *registration

	// feature is set for feature registrations; settings then go through
	// the application settings instead of values.
	feature *plugin.FeatureBase

	mu     sync.RWMutex
	host   plugin.Host
	values map[string]any
}

// newScriptPlugin builds the plugin for one registration.
func newScriptPlugin(s *State, reg *registration) plugin.Plugin {
	sp := &scriptPlugin{
		state:  s,
		reg:    reg,
		values: maps.Clone(reg.defaults),
	}
	if sp.values == nil {
		sp.values = make(map[string]any)
	}
	if reg.feature == nil {
		return sp
	}
	f := &scriptFeature{script: sp}
	f.FeatureBase = plugin.NewFeatureBase(f, reg.desc, *reg.feature)
	sp.feature = f.FeatureBase
	return f
}

func (p *scriptPlugin) ID() string              { return p.reg.desc.ID }
func (p *scriptPlugin) Name() string            { return p.reg.desc.Name }
func (p *scriptPlugin) Version() plugin.Version { return p.reg.desc.Version }
func (p *scriptPlugin) Author() string          { return p.reg.desc.Author }
func (p *scriptPlugin) Description() string     { return p.reg.desc.Description }

// Initialize stores the host and runs the script's init callback.
func (p *scriptPlugin) Initialize(ctx context.Context, host plugin.Host) error {
	if host == nil {
		return plugin.ErrNoHost
	}
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()

	if p.reg.init == nil {
		return nil
	}
	_, err := p.state.Call(ctx, p, p.reg.init)
	return err
}

// ProcessText runs process_text. A nil return leaves the text unchanged.
func (p *scriptPlugin) ProcessText(ctx context.Context, text string) (string, error) {
	if p.reg.processText == nil {
		return text, nil
	}
	ret, err := p.state.Call(ctx, p, p.reg.processText, lua.LString(text))
	if err != nil {
		return "", err
	}
	if len(ret) == 0 || ret[0] == lua.LNil {
		return text, nil
	}
	s, ok := ret[0].(lua.LString)
	if !ok {
		return "", fmt.Errorf("process_text returned %s, want string", ret[0].Type())
	}
	return string(s), nil
}

// Settings returns a copy of the plugin's values.
func (p *scriptPlugin) Settings() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values)
}

// UpdateSettings merges values into the plugin's settings.
func (p *scriptPlugin) UpdateSettings(values map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	maps.Copy(p.values, values)
	return nil
}

// Shutdown runs the script's shutdown callback.
func (p *scriptPlugin) Shutdown(ctx context.Context) error {
	if p.reg.shutdown == nil {
		return nil
	}
	_, err := p.state.Call(ctx, p, p.reg.shutdown)
	if errors.Is(err, ErrStateClosed) {
		return nil
	}
	return err
}

// refresh runs the script's refresh callback.
func (p *scriptPlugin) refresh(ctx context.Context) error {
	if p.reg.refresh == nil {
		return nil
	}
	_, err := p.state.Call(ctx, p, p.reg.refresh)
	return err
}

func (p *scriptPlugin) currentHost() plugin.Host {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.host
}

func (p *scriptPlugin) log(level plugin.LogLevel, msg string) {
	if host := p.currentHost(); host != nil {
		host.LogMessage(p.ID(), level, msg)
	}
}

func (p *scriptPlugin) notify(title, msg string, typ plugin.NotificationType) {
	if host := p.currentHost(); host != nil {
		host.ShowNotification(title, msg, typ)
	}
}

func (p *scriptPlugin) setting(name string, def any) any {
	if p.feature != nil {
		if _, ok := p.feature.Accessor(); ok {
			if def == nil {
				def = p.defaultValue(name)
			}
			return plugin.Setting(p.feature, name, def)
		}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[name]; ok {
		return v
	}
	return def
}

func (p *scriptPlugin) defaultValue(name string) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[name]
}

func (p *scriptPlugin) setSetting(name string, value any) error {
	if p.feature != nil {
		if _, ok := p.feature.Accessor(); ok {
			return p.feature.SetSetting(name, value)
		}
	}
	return p.UpdateSettings(map[string]any{name: value})
}

func (p *scriptPlugin) dataPath() (string, error) {
	host := p.currentHost()
	if host == nil {
		return "", plugin.ErrNoHost
	}
	return host.PluginDataPath(p.ID())
}

// scriptFeature is a feature provider backed by a script.
type scriptFeature struct {
	*plugin.FeatureBase
	script *scriptPlugin
}

// Initialize registers the feature and then runs the script's init.
func (f *scriptFeature) Initialize(ctx context.Context, host plugin.Host) error {
	if err := f.FeatureBase.Initialize(ctx, host); err != nil {
		return err
	}
	return f.script.Initialize(ctx, host)
}

// ProcessText runs the script.
func (f *scriptFeature) ProcessText(ctx context.Context, text string) (string, error) {
	return f.script.ProcessText(ctx, text)
}

// RefreshFromAppSettings runs the script's refresh callback.
func (f *scriptFeature) RefreshFromAppSettings(ctx context.Context) error {
	if err := f.FeatureBase.RefreshFromAppSettings(ctx); err != nil {
		return err
	}
	return f.script.refresh(ctx)
}

// Shutdown runs the script's shutdown callback.
func (f *scriptFeature) Shutdown(ctx context.Context) error {
	return f.script.Shutdown(ctx)
}

var (
	_ plugin.Plugin          = (*scriptPlugin)(nil)
	_ plugin.FeatureProvider = (*scriptFeature)(nil)
	_ plugin.Refreshable     = (*scriptFeature)(nil)
	_ plugin.SettingsUI      = (*scriptFeature)(nil)
)
