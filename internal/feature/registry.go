// Package feature maps feature ids to the plugins that provide them.
package feature

import (
	"errors"
	"reflect"
	"slices"
	"sync"

	"github.com/dshills/clipai/internal/plugin"
)

// Registration errors.
var (
	// ErrEmptyFeatureID is returned when registering under a blank id.
	ErrEmptyFeatureID = errors.New("feature id is empty")

	// ErrNilPlugin is returned when registering a nil plugin.
	ErrNilPlugin = plugin.ErrNilPlugin
)

// Registry is the process-wide feature directory. Entries persist for the
// life of the registry; plugins only ever add themselves.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	providers map[string][]plugin.Plugin

	// order keeps feature ids in first-registration order
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string][]plugin.Plugin),
	}
}

// RegisterFeatureProvider adds p as a provider of featureID. Registering the
// same instance twice under the same id is a no-op. Providers keep their
// registration order.
func (r *Registry) RegisterFeatureProvider(featureID string, p plugin.Plugin) error {
	if featureID == "" {
		return ErrEmptyFeatureID
	}
	if isNil(p) {
		return ErrNilPlugin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, known := r.providers[featureID]
	if contains(list, p) {
		return nil
	}
	if !known {
		r.order = append(r.order, featureID)
	}
	r.providers[featureID] = append(list, p)
	return nil
}

// GetFeatureProviders returns the providers of featureID in registration
// order. Unknown ids yield an empty slice.
func (r *Registry) GetFeatureProviders(featureID string) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.providers[featureID]
	out := make([]plugin.Plugin, len(list))
	copy(out, list)
	return out
}

// IsFeatureAvailable reports whether featureID has at least one provider.
func (r *Registry) IsFeatureAvailable(featureID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers[featureID]) > 0
}

// IsEnabled reports availability of the feature named by t.
//
// This answers "is there a provider", not "is the feature switched on";
// the enabled flag lives in the settings store.
func (r *Registry) IsEnabled(t plugin.FeatureType) bool {
	return r.IsFeatureAvailable(t.String())
}

// GetRegisteredFeatures returns all feature ids in first-registration order.
func (r *Registry) GetRegisteredFeatures() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of feature ids with providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// isNil catches typed nil pointers stored in the interface.
func isNil(p plugin.Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// contains compares by identity; non-comparable plugin values never match.
func contains(list []plugin.Plugin, p plugin.Plugin) bool {
	if !reflect.TypeOf(p).Comparable() {
		return false
	}
	for _, q := range list {
		if reflect.TypeOf(q) == reflect.TypeOf(p) && q == p {
			return true
		}
	}
	return false
}

var _ plugin.FeatureRegistrar = (*Registry)(nil)
