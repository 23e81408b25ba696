package manager

import (
	"fmt"

	"github.com/dshills/clipai/internal/plugin"
)

// GetPlugins returns the live plugins in discovery order. It is empty
// unless the manager is Ready.
func (m *Manager) GetPlugins() []plugin.Plugin {
	records, err := m.live()
	if err != nil {
		return nil
	}
	out := make([]plugin.Plugin, len(records))
	for i, r := range records {
		out[i] = r.plugin
	}
	return out
}

// GetPlugin returns the live plugin with the given id.
func (m *Manager) GetPlugin(id string) (plugin.Plugin, bool) {
	records, err := m.live()
	if err != nil {
		return nil, false
	}
	for _, r := range records {
		if r.plugin.ID() == id {
			return r.plugin, true
		}
	}
	return nil, false
}

// PluginsOf returns the live plugins implementing T, in discovery order.
// It returns ErrNotInitialized unless the manager is Ready.
func PluginsOf[T any](m *Manager) ([]T, error) {
	records, err := m.live()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, r := range records {
		if p, ok := r.plugin.(T); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// featureTyped is implemented by plugins that report a feature type.
type featureTyped interface {
	FeatureType() plugin.FeatureType
}

// PluginFor returns the first live plugin implementing T whose feature
// type is typ. It returns ErrNotInitialized unless the manager is Ready,
// and plugin.ErrPluginNotFound when nothing matches.
func PluginFor[T any](m *Manager, typ plugin.FeatureType) (T, error) {
	var zero T
	records, err := m.live()
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		ft, ok := r.plugin.(featureTyped)
		if !ok || ft.FeatureType() != typ {
			continue
		}
		if p, ok := r.plugin.(T); ok {
			return p, nil
		}
	}
	return zero, fmt.Errorf("%w: %s", plugin.ErrPluginNotFound, typ)
}
