package app

import (
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/manager"
	"github.com/dshills/clipai/internal/metrics"
	"github.com/dshills/clipai/internal/notify"
	"github.com/dshills/clipai/internal/plugin/loader"
	"github.com/dshills/clipai/internal/plugin/lua"
	"github.com/dshills/clipai/internal/settings"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{app: app, initOrder: make([]string, 0, 5)}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"logging", b.initLogging},
		{"settings", b.initSettings},
		{"notifications", b.initNotifications},
		{"metrics", b.initMetrics},
		{"manager", b.initManager},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initLogging() error {
	if b.app.opts.Logger != nil {
		b.app.logger = b.app.opts.Logger
		return nil
	}
	cfg := b.app.cfg.Logging
	b.app.logger = logging.New(logging.Config{
		Level:  logging.ParseLogLevel(cfg.Level),
		Output: b.app.opts.LogOutput,
		JSON:   strings.EqualFold(cfg.Format, "json"),
	})
	logging.SetDefault(b.app.logger)
	return nil
}

func (b *bootstrapper) initSettings() error {
	cfg := b.app.cfg.Settings
	if cfg.Path == "" {
		b.app.store = settings.NewMemoryStore()
		return nil
	}

	backend, err := settings.NewBackend(cfg.Format, cfg.Path)
	if err != nil {
		return err
	}
	store, err := settings.NewStore(settings.WithBackend(backend))
	if err != nil {
		return err
	}
	b.app.store = store
	return nil
}

func (b *bootstrapper) initNotifications() error {
	cfg := b.app.cfg.Notifications
	opts := []notify.Option{
		notify.WithHistory(cfg.HistorySize, cfg.HistoryTTL),
		notify.WithLogger(b.app.logger),
		notify.WithSink(notify.NewLogSink(b.app.logger.WithComponent("notifications"))),
	}
	if cfg.Terminal {
		out := b.app.opts.NotifyOutput
		if out == nil {
			out = os.Stderr
		}
		opts = append(opts, notify.WithSink(notify.NewTerminalSink(out)))
	}
	b.app.notes = notify.NewCenter(opts...)
	return nil
}

func (b *bootstrapper) initMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b.app.registry = reg
	b.app.metrics = metrics.New(reg)
	return nil
}

func (b *bootstrapper) initManager() error {
	cfg := b.app.cfg
	logger := b.app.logger

	opts := []loader.Option{
		loader.WithBuiltins(cfg.Plugins.Builtin),
		loader.WithLogger(logger),
	}
	if b.app.opts.Catalog != nil {
		opts = append(opts, loader.WithCatalog(b.app.opts.Catalog))
	}
	for _, ext := range cfg.Plugins.Extensions {
		switch "." + strings.TrimPrefix(strings.ToLower(ext), ".") {
		case lua.Ext:
			opts = append(opts, loader.WithOpener(lua.Ext, lua.NewOpener(logger)))
		case loader.SharedObjectExt:
			opts = append(opts, loader.WithOpener(loader.SharedObjectExt, loader.NewSharedObjectOpener()))
		case loader.ManifestExt:
			// always registered by the loader
		default:
			logger.Warn("no opener for plugin extension %q", ext)
		}
	}

	b.app.manager = manager.New(
		manager.Config{
			DataDir:       cfg.DataDir,
			InvokeTimeout: cfg.Plugins.InvokeTimeout,
			ParallelInit:  cfg.Plugins.ParallelInit,
			MaxParallel:   cfg.Plugins.MaxParallel,
		},
		manager.WithLoader(loader.New(opts...)),
		manager.WithSettings(b.app.store),
		manager.WithNotifications(b.app.notes),
		manager.WithMetrics(b.app.metrics),
		manager.WithLogger(logger),
	)
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		switch b.initOrder[i] {
		case "settings":
			b.app.store.Notifier().Close()
			b.app.store = nil
		case "notifications":
			b.app.notes = nil
		case "metrics":
			b.app.registry, b.app.metrics = nil, nil
		}
	}
}
