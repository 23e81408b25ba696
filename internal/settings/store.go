// Package settings provides the persisted per-plugin settings store: enabled
// flags and named values keyed by normalized feature id.
package settings

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
)

// Accessor is the settings surface plugins and the plugin manager consume.
// Feature ids are normalized with NormalizeID on every call.
type Accessor interface {
	GetPluginSetting(featureID, name string, def any) any
	SetPluginSetting(featureID, name string, value any) error
	AllPluginSettings(featureID string) map[string]any
	IsPluginEnabled(featureID string) bool
	SetPluginEnabled(featureID string, enabled bool) error
	Save() error
}

// Snapshot is a flat copy of all plugin settings.
type Snapshot struct {
	Enabled  map[string]bool
	Settings map[string]map[string]any
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Enabled:  make(map[string]bool),
		Settings: make(map[string]map[string]any),
	}
}

// Clone returns a deep copy of the top two map levels.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	maps.Copy(out.Enabled, s.Enabled)
	for id, values := range s.Settings {
		out.Settings[id] = maps.Clone(values)
	}
	return out
}

// normalized folds duplicate spellings of the same id; the first spelling in
// sorted order wins.
func (s Snapshot) normalized() Snapshot {
	out := NewSnapshot()
	for _, id := range slices.Sorted(maps.Keys(s.Enabled)) {
		key := NormalizeID(id)
		if _, dup := out.Enabled[key]; !dup && key != "" {
			out.Enabled[key] = s.Enabled[id]
		}
	}
	for _, id := range slices.Sorted(maps.Keys(s.Settings)) {
		key := NormalizeID(id)
		if _, dup := out.Settings[key]; !dup && key != "" {
			out.Settings[key] = maps.Clone(s.Settings[id])
		}
	}
	return out
}

// Backend persists snapshots.
type Backend interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Path() string
}

// Store holds plugin settings in memory and persists them through an
// optional Backend.
//
// Store is safe for concurrent use. Observers are notified outside the lock.
type Store struct {
	mu sync.RWMutex

	enabled  map[string]bool
	values   map[string]map[string]any
	backend  Backend
	notifier *Notifier
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithBackend persists the store through b.
func WithBackend(b Backend) StoreOption {
	return func(s *Store) {
		s.backend = b
	}
}

// WithNotifier sets the change notifier.
func WithNotifier(n *Notifier) StoreOption {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithSnapshot seeds the store.
func WithSnapshot(snap Snapshot) StoreOption {
	return func(s *Store) {
		n := snap.normalized()
		s.enabled = n.Enabled
		s.values = n.Settings
	}
}

// NewStore creates a Store. If a backend is configured its contents are
// loaded immediately.
func NewStore(opts ...StoreOption) (*Store, error) {
	s := &Store{
		enabled: make(map[string]bool),
		values:  make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewNotifier()
	}

	if s.backend != nil {
		snap, err := s.backend.Load()
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		n := snap.normalized()
		s.enabled = n.Enabled
		s.values = n.Settings
	}
	return s, nil
}

// NewMemoryStore returns a Store without persistence.
func NewMemoryStore() *Store {
	s, _ := NewStore()
	return s
}

// Notifier returns the change notifier.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Backend returns the configured backend, or nil.
func (s *Store) Backend() Backend {
	return s.backend
}

// GetPluginSetting returns a setting value or def when absent.
func (s *Store) GetPluginSetting(featureID, name string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.values[NormalizeID(featureID)]
	if !ok {
		return def
	}
	v, ok := values[name]
	if !ok {
		return def
	}
	return v
}

// SetPluginSetting sets a setting value. The change is not persisted until Save.
func (s *Store) SetPluginSetting(featureID, name string, value any) error {
	id := NormalizeID(featureID)
	if id == "" {
		return ErrEmptyFeatureID
	}
	if name == "" {
		return ErrEmptySettingName
	}

	s.mu.Lock()
	values, ok := s.values[id]
	if !ok {
		values = make(map[string]any)
		s.values[id] = values
	}
	old := values[name]
	values[name] = value
	s.mu.Unlock()

	s.notifier.Notify(Change{
		Path:     "plugins." + id + ".settings." + name,
		Type:     ChangeSet,
		OldValue: old,
		NewValue: value,
		Source:   "store",
	})
	return nil
}

// AllPluginSettings returns a copy of a plugin's settings. The result is
// never nil.
func (s *Store) AllPluginSettings(featureID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := s.values[NormalizeID(featureID)]
	out := make(map[string]any, len(values))
	maps.Copy(out, values)
	return out
}

// IsPluginEnabled reports the stored enabled flag. Unknown ids are disabled.
func (s *Store) IsPluginEnabled(featureID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[NormalizeID(featureID)]
}

// SetPluginEnabled sets the enabled flag. The change is not persisted until Save.
func (s *Store) SetPluginEnabled(featureID string, enabled bool) error {
	id := NormalizeID(featureID)
	if id == "" {
		return ErrEmptyFeatureID
	}

	s.mu.Lock()
	old, existed := s.enabled[id]
	s.enabled[id] = enabled
	s.mu.Unlock()

	if existed && old == enabled {
		return nil
	}
	s.notifier.Notify(Change{
		Path:     "plugins." + id + ".enabled",
		Type:     ChangeEnabled,
		OldValue: old,
		NewValue: enabled,
		Source:   "store",
	})
	return nil
}

// EnabledPlugins returns the sorted ids whose flag is true.
func (s *Store) EnabledPlugins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, on := range s.enabled {
		if on {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// KnownPlugins returns every id with an enabled flag or settings, sorted.
func (s *Store) KnownPlugins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.enabled)+len(s.values))
	for id := range s.enabled {
		seen[id] = struct{}{}
	}
	for id := range s.values {
		seen[id] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Enabled: s.enabled, Settings: s.values}.Clone()
}

// Save persists the store and notifies observers with a ChangeSave event.
func (s *Store) Save() error {
	if s.backend != nil {
		if err := s.backend.Save(s.Snapshot()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
	}
	s.notifier.Notify(Change{Type: ChangeSave, Source: "store"})
	return nil
}

// Reload re-reads the backend. Observers receive a ChangeReload event only
// when the contents differ from what is in memory, so a reload triggered by
// our own Save is silent. It returns whether anything changed.
func (s *Store) Reload() (bool, error) {
	if s.backend == nil {
		return false, nil
	}

	snap, err := s.backend.Load()
	if err != nil {
		return false, fmt.Errorf("reloading settings: %w", err)
	}
	n := snap.normalized()

	s.mu.Lock()
	if equalSnapshots(n, Snapshot{Enabled: s.enabled, Settings: s.values}) {
		s.mu.Unlock()
		return false, nil
	}
	s.enabled = n.Enabled
	s.values = n.Settings
	s.mu.Unlock()

	s.notifier.Notify(Change{Type: ChangeReload, Source: s.backend.Path()})
	return true, nil
}

// equalSnapshots compares contents with numbers folded to float64, since a
// round trip through a file changes int to float64 or int64.
func equalSnapshots(a, b Snapshot) bool {
	if !maps.Equal(a.Enabled, b.Enabled) || len(a.Settings) != len(b.Settings) {
		return false
	}
	for id, av := range a.Settings {
		bv, ok := b.Settings[id]
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !reflect.DeepEqual(foldNumbers(x), foldNumbers(y)) {
				return false
			}
		}
	}
	return true
}

func foldNumbers(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = foldNumbers(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = foldNumbers(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	}
	if f, ok := toFloat(v); ok {
		if _, isString := v.(string); !isString {
			return f
		}
	}
	return v
}

var _ Accessor = (*Store)(nil)
