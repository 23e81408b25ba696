package plugintest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/clipai/internal/plugin"
)

// Stub is a configurable plugin.Plugin. Nil funcs behave as no-ops.
type Stub struct {
	PluginID   string
	InitFunc   func(ctx context.Context, host plugin.Host) error
	Process    func(ctx context.Context, text string) (string, error)
	ShutdownFn func(ctx context.Context) error

	mu       sync.Mutex
	settings map[string]any

	Inits     atomic.Int32
	Shutdowns atomic.Int32
	Calls     atomic.Int32
}

// NewStub creates a stub with the given id.
func NewStub(id string) *Stub {
	return &Stub{PluginID: id}
}

func (s *Stub) ID() string              { return s.PluginID }
func (s *Stub) Name() string            { return s.PluginID }
func (s *Stub) Version() plugin.Version { return plugin.Version{Major: 1} }
func (s *Stub) Author() string          { return "test" }
func (s *Stub) Description() string     { return "stub " + s.PluginID }

func (s *Stub) Initialize(ctx context.Context, host plugin.Host) error {
	s.Inits.Add(1)
	if s.InitFunc != nil {
		return s.InitFunc(ctx, host)
	}
	return nil
}

func (s *Stub) ProcessText(ctx context.Context, text string) (string, error) {
	s.Calls.Add(1)
	if s.Process != nil {
		return s.Process(ctx, text)
	}
	return text, nil
}

func (s *Stub) Settings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

func (s *Stub) UpdateSettings(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = make(map[string]any)
	}
	for k, v := range values {
		s.settings[k] = v
	}
	return nil
}

func (s *Stub) Shutdown(ctx context.Context) error {
	s.Shutdowns.Add(1)
	if s.ShutdownFn != nil {
		return s.ShutdownFn(ctx)
	}
	return nil
}

// Feature is a stub feature provider built on plugin.FeatureBase. It
// counts SetEnabled and refresh calls.
type Feature struct {
	*plugin.FeatureBase

	Process func(ctx context.Context, text string) (string, error)

	SetEnabledCalls atomic.Int32
	Refreshes       atomic.Int32
}

// NewFeature creates a feature stub registering under id.
func NewFeature(id string, typ plugin.FeatureType) *Feature {
	f := &Feature{}
	f.FeatureBase = plugin.NewFeatureBase(f,
		plugin.Descriptor{ID: id, Name: id, Version: plugin.Version{Major: 1}, Author: "test"},
		plugin.FeatureSpec{ID: id, Name: id, Type: typ})
	return f
}

func (f *Feature) ProcessText(ctx context.Context, text string) (string, error) {
	if f.Process != nil {
		return f.Process(ctx, text)
	}
	return text, nil
}

func (f *Feature) SetEnabled(enabled bool) error {
	f.SetEnabledCalls.Add(1)
	return f.FeatureBase.SetEnabled(enabled)
}

func (f *Feature) RefreshFromAppSettings(ctx context.Context) error {
	f.Refreshes.Add(1)
	return f.FeatureBase.RefreshFromAppSettings(ctx)
}

var (
	_ plugin.Plugin          = (*Stub)(nil)
	_ plugin.FeatureProvider = (*Feature)(nil)
	_ plugin.Refreshable     = (*Feature)(nil)
)
