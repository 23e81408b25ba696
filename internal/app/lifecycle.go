package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/manager"
	"github.com/dshills/clipai/internal/metrics"
	"github.com/dshills/clipai/internal/settings"
)

// ShutdownTimeout bounds Run's shutdown after its context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Start initializes the plugins and then starts the settings watcher, the
// refresh schedule and the metrics endpoint, as configured.
func (app *Application) Start(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := app.manager.Initialize(ctx, app.cfg.Plugins.Dir); err != nil {
		app.running.Store(false)
		return err
	}

	if err := app.startServices(); err != nil {
		_ = app.stopServices(context.Background())
		app.manager.Shutdown(context.Background())
		app.running.Store(false)
		return err
	}

	app.logger.Info("clipai running with %d plugins", len(app.manager.GetPlugins()))
	return nil
}

func (app *Application) startServices() error {
	if app.cfg.Settings.Watch && app.cfg.Settings.Path != "" {
		if err := os.MkdirAll(filepath.Dir(app.cfg.Settings.Path), 0o755); err != nil {
			return &InitError{Component: "settings watcher", Err: err}
		}
		w, err := settings.Watch(app.store, settings.WithWatchLogger(app.logger))
		if err != nil {
			return &InitError{Component: "settings watcher", Err: err}
		}
		app.mu.Lock()
		app.watcher = w
		app.mu.Unlock()
	}

	if spec := app.cfg.Refresh.Schedule; spec != "" {
		c := cron.New(cron.WithLogger(cronLogger{app.logger.WithComponent("cron")}))
		if _, err := c.AddFunc(spec, func() {
			app.manager.ScheduleRefresh(manager.TriggerSchedule)
		}); err != nil {
			return &InitError{Component: "refresh schedule", Err: err}
		}
		c.Start()
		app.mu.Lock()
		app.cron = c
		app.mu.Unlock()
	}

	if addr := app.cfg.Metrics.Addr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return &InitError{Component: "metrics endpoint", Err: err}
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(app.registry))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		serveErr := make(chan error, 1)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("metrics endpoint: %v", err)
				serveErr <- err
			}
			close(serveErr)
		}()

		app.mu.Lock()
		app.server, app.listener, app.serveErr = srv, ln, serveErr
		app.mu.Unlock()
		app.logger.Info("metrics listening on %s", ln.Addr())
	}
	return nil
}

// Run starts the application and blocks until ctx is cancelled, then
// shuts down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	app.mu.Lock()
	serveErr := app.serveErr
	app.mu.Unlock()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("metrics endpoint: %w", err)
		} else {
			<-ctx.Done()
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, app.Shutdown(sctx))
}

// Shutdown stops the services and shuts the plugins down. It is a no-op
// when the application is not running.
func (app *Application) Shutdown(ctx context.Context) error {
	if !app.running.CompareAndSwap(true, false) {
		return nil
	}
	err := app.stopServices(ctx)
	app.manager.Shutdown(ctx)
	app.logger.Info("clipai stopped")
	return err
}

// stopServices stops what startServices started, in reverse order.
func (app *Application) stopServices(ctx context.Context) error {
	app.mu.Lock()
	srv, c, w := app.server, app.cron, app.watcher
	app.server, app.listener, app.serveErr = nil, nil, nil
	app.cron, app.watcher = nil, nil
	app.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics endpoint: %w", err))
		}
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("settings watcher: %w", err))
		}
	}
	return errors.Join(errs...)
}

// cronLogger adapts the process logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.WithFields(pairs(keysAndValues)).Log(logging.LogLevelDebug, msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.WithFields(pairs(keysAndValues)).WithError(err).Log(logging.LogLevelError, msg)
}

func pairs(kv []any) map[string]any {
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
