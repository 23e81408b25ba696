// Package manager coordinates the plugin lifecycle and is the Host that
// plugins call back into.
//
// A Manager moves through Uninitialized, Initializing, Ready and
// ShuttingDown. Initialize loads every module through a loader, initializes
// the instances and keeps the ones that succeed, in discovery order. Every
// call into a plugin goes through a bounded wait with panic recovery, so a
// single failing or hung plugin never stops a load, a pipeline run or a
// refresh cycle.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/clipai/internal/feature"
	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/metrics"
	"github.com/dshills/clipai/internal/notify"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/plugin/loader"
	"github.com/dshills/clipai/internal/settings"
)

// DefaultInvokeTimeout bounds a single plugin call.
const DefaultInvokeTimeout = 10 * time.Second

// Config configures the plugin manager.
type Config struct {
	// DataDir is the root of per-plugin data directories.
	DataDir string

	// InvokeTimeout bounds each plugin call. Zero disables the bound.
	InvokeTimeout time.Duration

	// ParallelInit initializes plugins concurrently. Registration order in
	// the feature registry is then unspecified; pipeline order is not
	// affected.
	ParallelInit bool

	// MaxParallel is the maximum number of concurrent Initialize calls when
	// ParallelInit is set.
	MaxParallel int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		InvokeTimeout: DefaultInvokeTimeout,
		MaxParallel:   4,
	}
}

// Option configures a Manager's collaborators.
type Option func(*Manager)

// WithLoader sets the module loader.
func WithLoader(l *loader.Loader) Option {
	return func(m *Manager) {
		m.loader = l
	}
}

// WithRegistry sets the feature registry.
func WithRegistry(r *feature.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithSettings sets the settings store exposed to plugins.
func WithSettings(s *settings.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithNotifications sets the notification center.
func WithNotifications(c *notify.Center) Option {
	return func(m *Manager) {
		m.notes = c
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// record is one instantiated plugin.
type record struct {
	plugin  plugin.Plugin
	module  string
	factory string
	state   plugin.State
	err     error
}

// Manager loads, initializes and drives plugins.
//
// Manager is safe for concurrent use. Initialize and Shutdown are
// serialized against each other.
type Manager struct {
	cfg Config

	loader   *loader.Loader
	registry *feature.Registry
	store    *settings.Store
	notes    *notify.Center
	metrics  *metrics.Metrics
	logger   *logging.Logger

	// lifecycle serializes Initialize and Shutdown.
	lifecycle sync.Mutex

	mu       sync.RWMutex
	state    State
	records  []*record
	failed   []*record
	failures []*loader.LoadError
	loaded   *loader.Result

	handlersMu sync.RWMutex
	handlers   []EventHandler

	// refreshMu keeps refresh cycles from overlapping.
	refreshMu sync.Mutex
	pending   chan string
	stop      chan struct{}
	wg        sync.WaitGroup
	unwatch   func()
}

// New creates a manager. Collaborators not supplied by options default to
// a loader over the default catalog, an empty registry and no settings,
// notifications or metrics.
func New(cfg Config, opts ...Option) *Manager {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	m := &Manager{
		cfg:    cfg,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("plugins")
	if m.loader == nil {
		m.loader = loader.New(loader.WithLogger(m.logger))
	}
	if m.registry == nil {
		m.registry = feature.NewRegistry()
	}
	return m
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.metrics.SetState(int(s))
}

// Registry returns the feature registry.
func (m *Manager) Registry() *feature.Registry {
	return m.registry
}

// Settings returns the settings store, or nil.
func (m *Manager) Settings() *settings.Store {
	return m.store
}

// Initialize loads every module under dir, creating dir if needed, and
// initializes the resulting plugins. Plugins whose Initialize fails are
// logged and discarded. Calling Initialize on a Ready manager does nothing.
//
// Only a failure to create dir is returned; per-plugin failures are
// reported through logs, events, Status and LoadFailures.
func (m *Manager) Initialize(ctx context.Context, dir string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.State() == StateReady {
		return nil
	}
	m.setState(StateInitializing)

	if err := loader.EnsureDir(dir); err != nil {
		m.setState(StateUninitialized)
		return err
	}

	res := m.loader.Load(ctx, dir)
	failures := append([]*loader.LoadError(nil), res.Failures...)
	for _, f := range res.Failures {
		m.reportLoadFailure(f)
	}
	if err := res.Err(); err != nil {
		m.logger.WithError(err).Warn("%d plugin load error(s) in %s", len(res.Failures), dir)
	}

	candidates := make([]*record, 0, len(res.Instances))
	seen := make(map[string]bool, len(res.Instances))
	for _, inst := range res.Instances {
		id := inst.Plugin.ID()
		var err error
		switch {
		case id == "":
			err = plugin.ErrEmptyID
		case seen[id]:
			err = fmt.Errorf("%w: %s", plugin.ErrDuplicateID, id)
		}
		if err != nil {
			f := &loader.LoadError{Path: inst.Module, Factory: inst.Factory, Stage: loader.StageInstantiate, Err: err}
			failures = append(failures, f)
			m.reportLoadFailure(f)
			continue
		}
		seen[id] = true
		candidates = append(candidates, &record{
			plugin:  inst.Plugin,
			module:  inst.Module,
			factory: inst.Factory,
			state:   plugin.StateInstantiated,
		})
	}

	m.initializeAll(ctx, candidates)

	var live, failed []*record
	for _, r := range candidates {
		id := r.plugin.ID()
		if r.err != nil {
			r.state = plugin.StateFailed
			failed = append(failed, r)
			m.logger.WithField("plugin", id).WithError(r.err).Error("plugin failed to initialize")
			m.emit(Event{Type: EventPluginFailed, Plugin: id, Detail: opInitialize, Err: r.err})
			continue
		}
		r.state = plugin.StateInitialized
		if fp, ok := r.plugin.(plugin.FeatureProvider); ok {
			r.state = plugin.EnabledState(fp.IsEnabled())
		}
		live = append(live, r)
		m.logger.WithFields(map[string]any{
			"plugin":  id,
			"version": r.plugin.Version().String(),
			"module":  r.module,
		}).Info("loaded plugin %s", r.plugin.Name())
		m.emit(Event{Type: EventPluginLoaded, Plugin: id})
	}

	m.mu.Lock()
	m.records = live
	m.failed = failed
	m.failures = failures
	m.loaded = res
	m.mu.Unlock()

	m.setState(StateReady)
	m.start(live)
	m.updateGauges()

	m.logger.Info("plugin manager ready: %d loaded, %d failed, %d load errors",
		len(live), len(failed), len(failures))
	return nil
}

// initializeAll calls Initialize on every candidate, storing the outcome
// in the record.
func (m *Manager) initializeAll(ctx context.Context, candidates []*record) {
	initOne := func(r *record) {
		r.err = m.invoke(ctx, r.plugin.ID(), opInitialize, func(ctx context.Context) error {
			return r.plugin.Initialize(ctx, m)
		})
	}

	if !m.cfg.ParallelInit || len(candidates) < 2 {
		for _, r := range candidates {
			initOne(r)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(m.cfg.MaxParallel)
	for _, r := range candidates {
		g.Go(func() error {
			initOne(r)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) reportLoadFailure(f *loader.LoadError) {
	m.metrics.LoadFailure(f.Stage.String())
	m.emit(Event{Type: EventPluginFailed, Plugin: f.Factory, Detail: f.Path, Err: f})
}

// start launches the refresh worker and readiness watchers.
func (m *Manager) start(live []*record) {
	stop := make(chan struct{})
	pending := make(chan string, 1)
	m.mu.Lock()
	m.stop, m.pending = stop, pending
	m.mu.Unlock()

	m.wg.Add(1)
	go m.refreshLoop(stop, pending)

	if m.store != nil {
		sub := m.store.Notifier().Subscribe(func(c settings.Change) {
			switch c.Type {
			case settings.ChangeSave, settings.ChangeReload:
				m.ScheduleRefresh(c.Type.String())
			}
		})
		m.unwatch = sub.Unsubscribe
	}

	for _, r := range live {
		rr, ok := r.plugin.(plugin.ReadinessReporter)
		if !ok || rr.Readiness() == nil {
			continue
		}
		rd, id := rr.Readiness(), r.plugin.ID()
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			select {
			case <-rd.Done():
				err := rd.Err()
				if err != nil {
					m.logger.WithField("plugin", id).WithError(err).Warn("plugin background initialization failed")
				}
				m.emit(Event{Type: EventPluginReady, Plugin: id, Err: err})
			case <-stop:
			}
		}()
	}
}

// Shutdown stops the refresh worker, calls Shutdown on every plugin in
// reverse discovery order, closes the modules and returns the manager to
// Uninitialized. Plugin failures are logged, not returned.
func (m *Manager) Shutdown(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.State() != StateReady {
		return
	}
	m.setState(StateShuttingDown)

	if m.unwatch != nil {
		m.unwatch()
		m.unwatch = nil
	}
	close(m.stop)
	m.wg.Wait()

	m.mu.RLock()
	records := append([]*record(nil), m.records...)
	loaded := m.loaded
	m.mu.RUnlock()

	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		id := r.plugin.ID()
		err := m.invoke(ctx, id, opShutdown, r.plugin.Shutdown)
		if err != nil {
			m.logger.WithField("plugin", id).WithError(err).Warn("plugin shutdown failed")
		}
		m.setRecordState(r, plugin.StateShutDown)
		m.emit(Event{Type: EventPluginShutDown, Plugin: id, Err: err})
	}

	if loaded != nil {
		if err := loaded.CloseModules(); err != nil {
			m.logger.WithError(err).Warn("closing plugin modules")
		}
	}

	m.mu.Lock()
	m.records = nil
	m.failed = nil
	m.loaded = nil
	m.mu.Unlock()

	m.setState(StateUninitialized)
	m.updateGauges()
	m.logger.Info("plugin manager shut down")
}

// ProcessText threads text through every loaded plugin's ProcessText in
// discovery order. A plugin that fails is logged and skipped; the next
// plugin receives the text as it was before the failing one. The returned
// error is ErrNotInitialized or the context error; plugin failures are
// never returned.
func (m *Manager) ProcessText(ctx context.Context, text string) (string, error) {
	records, err := m.live()
	if err != nil {
		return text, err
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return text, err
		}
		id := r.plugin.ID()
		in := text
		out, err := call(ctx, m, id, opProcess, func(ctx context.Context) (string, error) {
			return r.plugin.ProcessText(ctx, in)
		})
		if err != nil {
			m.logger.WithField("plugin", id).WithError(err).Warn("plugin failed to process text, skipping")
			continue
		}
		text = out
	}
	return text, nil
}

// ProcessFeature runs text through the first enabled provider of featureID
// that implements plugin.AsyncFeature and supports the requested content
// type.
func (m *Manager) ProcessFeature(ctx context.Context, featureID, text string, opts plugin.ProcessOptions) (string, error) {
	if m.State() != StateReady {
		return "", ErrNotInitialized
	}

	var candidate plugin.AsyncFeature
	disabled := false
	for _, p := range m.registry.GetFeatureProviders(featureID) {
		af, ok := p.(plugin.AsyncFeature)
		if !ok || !m.isLive(p) || !af.SupportsContentType(opts.ContentType) {
			continue
		}
		if !af.IsEnabled() {
			disabled = true
			continue
		}
		candidate = af
		break
	}
	if candidate == nil {
		if disabled {
			return "", fmt.Errorf("%w: %s", ErrFeatureDisabled, featureID)
		}
		return "", fmt.Errorf("%w: %s", ErrFeatureUnavailable, featureID)
	}

	return call(ctx, m, candidate.ID(), opFeature, func(ctx context.Context) (string, error) {
		return candidate.ProcessTextAsync(ctx, text, opts)
	})
}

// live returns a copy of the live records, or ErrNotInitialized.
func (m *Manager) live() ([]*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady {
		return nil, ErrNotInitialized
	}
	return append([]*record(nil), m.records...), nil
}

func (m *Manager) isLive(p plugin.Plugin) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.plugin == p {
			return true
		}
	}
	return false
}

func (m *Manager) setRecordState(r *record, s plugin.State) {
	m.mu.Lock()
	r.state = s
	m.mu.Unlock()
}

func (m *Manager) updateGauges() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enabled := 0
	for _, r := range m.records {
		if r.state == plugin.StateEnabled {
			enabled++
		}
	}
	m.metrics.SetPlugins(len(m.records), enabled)
}

// LoadFailures returns the load errors of the last Initialize, including
// rejected duplicate ids.
func (m *Manager) LoadFailures() []*loader.LoadError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*loader.LoadError(nil), m.failures...)
}
