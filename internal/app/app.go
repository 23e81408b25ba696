// Package app wires the clipai plugin runtime together from a
// configuration: logging, the settings store and its watcher, the
// notification center, metrics, the module loader and the plugin manager.
package app

import (
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/dshills/clipai/internal/config"
	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/manager"
	"github.com/dshills/clipai/internal/metrics"
	"github.com/dshills/clipai/internal/notify"
	"github.com/dshills/clipai/internal/plugin/loader"
	"github.com/dshills/clipai/internal/settings"

	// Compiled-in feature plugins register with the default catalog.
	_ "github.com/dshills/clipai/internal/plugin/builtin"
)

// Application owns every runtime component.
type Application struct {
	mu sync.Mutex

	cfg    *config.Config
	opts   Options
	logger *logging.Logger

	store    *settings.Store
	watcher  *settings.Watcher
	notes    *notify.Center
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	manager  *manager.Manager

	cron     *cron.Cron
	server   *http.Server
	listener net.Listener
	serveErr chan error

	running atomic.Bool
}

// Options configures the application beyond the config file.
type Options struct {
	// LogOutput receives log output. Defaults to os.Stderr.
	LogOutput io.Writer

	// NotifyOutput receives terminal notifications. Defaults to os.Stderr.
	NotifyOutput io.Writer

	// Catalog overrides the module catalog. Defaults to the process-wide
	// catalog holding the builtin plugins.
	Catalog *loader.Catalog

	// Logger overrides the logger built from the logging section.
	Logger *logging.Logger
}

// New builds the components. Plugins are not loaded until Start.
func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	app := &Application{cfg: cfg, opts: opts}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the configuration the application was built from.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the process logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Manager returns the plugin manager.
func (app *Application) Manager() *manager.Manager {
	return app.manager
}

// Settings returns the settings store.
func (app *Application) Settings() *settings.Store {
	return app.store
}

// Notifications returns the notification center.
func (app *Application) Notifications() *notify.Center {
	return app.notes
}

// Gatherer returns the Prometheus registry holding the runtime metrics.
func (app *Application) Gatherer() prometheus.Gatherer {
	return app.registry
}

// MetricsAddr returns the address the metrics endpoint listens on, or ""
// when it is not serving.
func (app *Application) MetricsAddr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener == nil {
		return ""
	}
	return app.listener.Addr().String()
}

// IsRunning reports whether Start has completed and Shutdown has not.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// SetFeatureEnabled persists the enabled flag for a feature. When the
// manager is running the save triggers a refresh that applies it.
func (app *Application) SetFeatureEnabled(featureID string, enabled bool) error {
	if err := app.store.SetPluginEnabled(featureID, enabled); err != nil {
		return err
	}
	return app.store.Save()
}
