package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/clipai/internal/config"
	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/manager"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/settings"
)

const upperScript = `
local clipai = require("clipai")

clipai.register{
    id = "Upper",
    process_text = function(text)
        return string.upper(text)
    end,
}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Plugins.Dir = filepath.Join(dir, "plugins")
	cfg.Plugins.Builtin = false
	cfg.Plugins.InvokeTimeout = 5 * time.Second
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Settings.Path = filepath.Join(dir, "settings.toml")
	cfg.Notifications.Terminal = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	app, err := New(cfg, Options{Logger: logging.Discard(), NotifyOutput: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestNew_BadSettingsFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settings.Format = "xml"

	_, err := New(cfg, Options{Logger: logging.Discard()})
	var ie *InitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "settings", ie.Component)
	assert.ErrorIs(t, err, settings.ErrUnknownFormat)
}

func TestNew_MemorySettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Settings.Path = ""
	cfg.Settings.Watch = false

	app := newApp(t, cfg)
	assert.Nil(t, app.Settings().Backend())
	require.NoError(t, app.SetFeatureEnabled("Ocr", true))
	assert.True(t, app.Settings().IsPluginEnabled("Ocr"))
}

func TestStartShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Refresh.Schedule = "@every 1h"
	require.NoError(t, os.MkdirAll(cfg.Plugins.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Plugins.Dir, "upper.lua"), []byte(upperScript), 0o644))

	app := newApp(t, cfg)
	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.True(t, app.IsRunning())
	assert.ErrorIs(t, app.Start(ctx), ErrAlreadyRunning)

	m := app.Manager()
	assert.Equal(t, manager.StateReady, m.State())
	out, err := m.ProcessText(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	addr := app.MetricsAddr()
	require.NotEmpty(t, addr)
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "clipai_manager_state 2")
	assert.Contains(t, string(body), "clipai_plugins_loaded 1")

	require.NoError(t, app.Shutdown(ctx))
	assert.False(t, app.IsRunning())
	assert.Equal(t, manager.StateUninitialized, m.State())
	assert.Empty(t, app.MetricsAddr())
	assert.NoError(t, app.Shutdown(ctx))
}

func TestSetFeatureEnabled_Refreshes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Builtin = true

	app := newApp(t, cfg)
	require.NoError(t, app.Start(context.Background()))

	p, ok := app.Manager().GetPlugin("JsonFormatter")
	require.True(t, ok)
	fp, ok := p.(plugin.FeatureProvider)
	require.True(t, ok)
	assert.False(t, fp.IsEnabled())

	require.NoError(t, app.SetFeatureEnabled("JsonFormatter", true))
	assert.Eventually(t, fp.IsEnabled, 2*time.Second, 10*time.Millisecond)

	backend, err := settings.NewBackend("", cfg.Settings.Path)
	require.NoError(t, err)
	reread, err := settings.NewStore(settings.WithBackend(backend))
	require.NoError(t, err)
	assert.True(t, reread.IsPluginEnabled("JsonFormatter"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	app := newApp(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Manager().State() == manager.StateReady
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, app.IsRunning())
}

func TestStart_MetricsAddrInUse(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	first := newApp(t, cfg)
	require.NoError(t, first.Start(context.Background()))

	cfg2 := testConfig(t)
	cfg2.Metrics.Addr = first.MetricsAddr()
	second := newApp(t, cfg2)

	err := second.Start(context.Background())
	var ie *InitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "metrics endpoint", ie.Component)
	assert.False(t, second.IsRunning())
	assert.Equal(t, manager.StateUninitialized, second.Manager().State())
}

func TestCronLogger(t *testing.T) {
	fields := pairs([]any{"entry", 1, "next", "soon", "dangling"})
	assert.Equal(t, map[string]any{"entry": 1, "next": "soon"}, fields)

	l := cronLogger{logging.Discard()}
	l.Info("schedule", "entry", 1)
	l.Error(assert.AnError, "run", "entry", 1)
}
