package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dshills/clipai/internal/feature"
	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/metrics"
	"github.com/dshills/clipai/internal/notify"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/plugin/builtin"
	"github.com/dshills/clipai/internal/plugin/loader"
	"github.com/dshills/clipai/internal/plugin/plugintest"
	"github.com/dshills/clipai/internal/settings"
)

type fixture struct {
	m       *Manager
	store   *settings.Store
	catalog *loader.Catalog
	dir     string
	data    string
}

// newFixture builds a manager whose only builtin module "test" holds
// plugins, in order.
func newFixture(t *testing.T, cfg Config, plugins ...plugin.Plugin) *fixture {
	t.Helper()
	f := &fixture{
		store:   settings.NewMemoryStore(),
		catalog: loader.NewCatalog(),
		dir:     filepath.Join(t.TempDir(), "plugins"),
		data:    t.TempDir(),
	}
	for _, p := range plugins {
		f.catalog.Register("test", loader.FactoryOf(p.ID(), func() plugin.Plugin { return p }))
	}
	cfg.DataDir = f.data
	f.m = New(cfg,
		WithLoader(loader.New(
			loader.WithCatalog(f.catalog),
			loader.WithBuiltins(true),
			loader.WithLogger(logging.Discard()),
		)),
		WithRegistry(feature.NewRegistry()),
		WithSettings(f.store),
		WithLogger(logging.Discard()),
	)
	return f
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.m.Initialize(context.Background(), f.dir))
	t.Cleanup(func() { f.m.Shutdown(context.Background()) })
}

func ids(plugins []plugin.Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.ID()
	}
	return out
}

func appender(id, suffix string) *plugintest.Stub {
	s := plugintest.NewStub(id)
	s.Process = func(ctx context.Context, text string) (string, error) {
		return text + suffix, nil
	}
	return s
}

func TestInitialize_KeepsValidPlugins(t *testing.T) {
	broken := plugintest.NewStub("Broken")
	broken.InitFunc = func(context.Context, plugin.Host) error { return errors.New("no model") }

	f := newFixture(t, DefaultConfig(),
		plugintest.NewStub("Alpha"), broken, plugintest.NewStub("Gamma"))

	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	for i, body := range []string{"module: missing\n", "module: [unclosed\n", "factories: [x]\n"} {
		path := filepath.Join(f.dir, fmt.Sprintf("bad%d%s", i, loader.ManifestExt))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	f.init(t)

	assert.Equal(t, StateReady, f.m.State())
	assert.Equal(t, []string{"Alpha", "Gamma"}, ids(f.m.GetPlugins()))
	assert.Len(t, f.m.LoadFailures(), 3)
	for _, lf := range f.m.LoadFailures() {
		assert.Equal(t, loader.StageOpen, lf.Stage)
	}

	_, ok := f.m.GetPlugin("Broken")
	assert.False(t, ok)

	status := f.m.Status()
	require.Len(t, status, 3)
	assert.Equal(t, "Broken", status[2].ID)
	assert.Equal(t, plugin.StateFailed, status[2].State)
	assert.Equal(t, plugin.ReadyFailed, status[2].Readiness)
	assert.EqualError(t, status[2].Err, "no model")
}

func TestInitialize_CreatesDirectoryAndIsIdempotent(t *testing.T) {
	stub := plugintest.NewStub("Alpha")
	f := newFixture(t, DefaultConfig(), stub)
	f.init(t)

	info, err := os.Stat(f.dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, f.m.Initialize(context.Background(), f.dir))
	assert.Equal(t, int32(1), stub.Inits.Load())
	assert.Len(t, f.m.GetPlugins(), 1)
}

func TestInitialize_LogsLoadErrorSummary(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, DefaultConfig(), plugintest.NewStub("Alpha"))
	f.m.logger = logging.New(logging.Config{Level: logging.LogLevelWarn, Output: &buf, JSON: true})

	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "gone"+loader.ManifestExt), []byte("module: missing\n"), 0o644))
	f.init(t)

	out := buf.String()
	assert.Contains(t, out, "1 plugin load error(s)")
	assert.Contains(t, out, loader.ErrUnknownModule.Error())
}

func TestInitialize_TimedOutPluginRegistersLate(t *testing.T) {
	registered := make(chan error, 1)
	late := plugintest.NewStub("Late")
	late.InitFunc = func(ctx context.Context, host plugin.Host) error {
		<-ctx.Done()
		registered <- host.Features().RegisterFeatureProvider("Late", late)
		return ctx.Err()
	}

	f := newFixture(t, Config{InvokeTimeout: 20 * time.Millisecond}, late)
	f.init(t)

	select {
	case err := <-registered:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("abandoned Initialize never registered")
	}

	assert.Empty(t, f.m.GetPlugins())
	assert.True(t, f.m.Registry().IsFeatureAvailable("Late"))
	_, err := f.m.ProcessFeature(context.Background(), "Late", "x", plugin.ProcessOptions{})
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
}

func TestInitialize_DuplicateIDRejectsLaterPlugin(t *testing.T) {
	first := appender("Same", "1")
	second := appender("Same", "2")

	f := newFixture(t, DefaultConfig())
	f.catalog.Register("test",
		loader.FactoryOf("first", func() plugin.Plugin { return first }),
		loader.FactoryOf("second", func() plugin.Plugin { return second }))
	f.init(t)

	require.Len(t, f.m.GetPlugins(), 1)
	assert.Same(t, first, f.m.GetPlugins()[0])
	assert.Equal(t, int32(0), second.Inits.Load())

	failures := f.m.LoadFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "second", failures[0].Factory)
	assert.ErrorIs(t, failures[0], plugin.ErrDuplicateID)
}

func TestInitialize_Parallel(t *testing.T) {
	var plugins []plugin.Plugin
	for i := range 8 {
		plugins = append(plugins, appender(fmt.Sprintf("P%d", i), fmt.Sprint(i)))
	}
	f := newFixture(t, Config{InvokeTimeout: time.Second, ParallelInit: true, MaxParallel: 3}, plugins...)
	f.init(t)

	out, err := f.m.ProcessText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "01234567", out)
}

func TestInitialize_PanickingPluginIsDiscarded(t *testing.T) {
	bad := plugintest.NewStub("Bad")
	bad.InitFunc = func(context.Context, plugin.Host) error { panic("boom") }

	f := newFixture(t, DefaultConfig(), bad, plugintest.NewStub("Good"))
	f.init(t)

	assert.Equal(t, []string{"Good"}, ids(f.m.GetPlugins()))
	var pe *plugin.PanicError
	assert.ErrorAs(t, f.m.Status()[1].Err, &pe)
}

func TestProcessText_SkipsFailingPlugin(t *testing.T) {
	p2 := plugintest.NewStub("P2")
	p2.Process = func(context.Context, string) (string, error) { return "", errors.New("bad input") }

	f := newFixture(t, DefaultConfig(), appender("P1", "1"), p2, appender("P3", "3"))
	f.init(t)

	out, err := f.m.ProcessText(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "X13", out)
	assert.Equal(t, int32(1), p2.Calls.Load())
}

func TestProcessText_SkipsPanicAndTimeout(t *testing.T) {
	panics := plugintest.NewStub("Panics")
	panics.Process = func(context.Context, string) (string, error) { panic("nil map") }
	hangs := plugintest.NewStub("Hangs")
	hangs.Process = func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "late", ctx.Err()
	}

	reg := prometheus.NewRegistry()
	f := newFixture(t, Config{InvokeTimeout: 30 * time.Millisecond},
		appender("A", "a"), panics, hangs, appender("B", "b"))
	f.m.metrics = metrics.New(reg)
	f.init(t)

	out, err := f.m.ProcessText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "ab", out)

	calls := f.m.metrics.PluginCallsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(calls.WithLabelValues("Panics", opProcess, metrics.StatusPanic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(calls.WithLabelValues("Hangs", opProcess, metrics.StatusTimeout)))
	assert.Equal(t, 2.0, testutil.ToFloat64(calls.WithLabelValues("A", opProcess, metrics.StatusOK))+
		testutil.ToFloat64(calls.WithLabelValues("B", opProcess, metrics.StatusOK)))
}

func TestProcessText_AbandonedCallKeepsItsInput(t *testing.T) {
	release := make(chan struct{})
	seen := make(chan string, 1)
	stuck := plugintest.NewStub("Stuck")
	stuck.Process = func(_ context.Context, text string) (string, error) {
		<-release
		seen <- text
		return text + "!", nil
	}

	f := newFixture(t, Config{InvokeTimeout: 20 * time.Millisecond},
		appender("A", "a"), stuck, appender("B", "b"), appender("C", "c"))
	f.init(t)

	out, err := f.m.ProcessText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "abc", out)

	close(release)
	select {
	case got := <-seen:
		assert.Equal(t, "a", got)
	case <-time.After(time.Second):
		t.Fatal("abandoned call never finished")
	}
}

func TestProcessText_CancelledContext(t *testing.T) {
	f := newFixture(t, DefaultConfig(), appender("A", "a"))
	f.init(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := f.m.ProcessText(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "x", out)
}

func TestProcessText_PipelineProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(rt, "n")
		input := rapid.StringMatching(`[a-z]{0,8}`).Draw(rt, "input")

		var plugins []plugin.Plugin
		want := input
		for i := range n {
			id := fmt.Sprintf("P%d", i)
			if rapid.Bool().Draw(rt, "fails") {
				s := plugintest.NewStub(id)
				s.Process = func(context.Context, string) (string, error) { return "garbage", errors.New("fail") }
				plugins = append(plugins, s)
				continue
			}
			suffix := fmt.Sprintf("<%d>", i)
			plugins = append(plugins, appender(id, suffix))
			want += suffix
		}

		f := newFixture(t, DefaultConfig(), plugins...)
		require.NoError(rt, f.m.Initialize(context.Background(), f.dir))
		defer f.m.Shutdown(context.Background())

		got, err := f.m.ProcessText(context.Background(), input)
		require.NoError(rt, err)
		assert.Equal(rt, want, got)
	})
}

func TestProcessFeature(t *testing.T) {
	jf := builtin.NewJSONFormatter()
	f := newFixture(t, DefaultConfig(), jf)
	require.NoError(t, f.store.SetPluginEnabled("JsonFormatter", true))
	f.init(t)

	out, err := f.m.ProcessFeature(context.Background(), "JsonFormatter", `{"a":1}`, plugin.ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", out)

	_, err = f.m.ProcessFeature(context.Background(), "OCR", "x", plugin.ProcessOptions{})
	assert.ErrorIs(t, err, ErrFeatureUnavailable)

	require.NoError(t, jf.SetEnabled(false))
	_, err = f.m.ProcessFeature(context.Background(), "JsonFormatter", `{}`, plugin.ProcessOptions{})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestRefreshPlugins_DisablesFromSettings(t *testing.T) {
	jf := plugintest.NewFeature("JsonFormatter", plugin.FeatureJSONFormatter)
	f := newFixture(t, DefaultConfig(), jf)
	require.NoError(t, f.store.SetPluginEnabled("JsonFormatter", true))
	f.init(t)
	require.True(t, jf.IsEnabled())

	require.NoError(t, f.store.SetPluginEnabled("JsonFormatter", false))
	require.NoError(t, f.m.RefreshPlugins(context.Background()))

	assert.False(t, jf.IsEnabled())
	assert.Equal(t, int32(1), jf.SetEnabledCalls.Load())
	assert.Equal(t, plugin.StateDisabled, f.m.Status()[0].State)

	// The save made by SetEnabled queues one more cycle, which must not
	// call SetEnabled again.
	assert.Eventually(t, func() bool { return jf.Refreshes.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.m.RefreshPlugins(context.Background()))
	assert.Equal(t, int32(1), jf.SetEnabledCalls.Load())
}

func TestRefreshPlugins_ReconcileProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "n")
		initial := rapid.SliceOfN(rapid.Bool(), n, n).Draw(rt, "initial")
		stored := rapid.SliceOfN(rapid.Bool(), n, n).Draw(rt, "stored")

		features := make([]*plugintest.Feature, n)
		plugins := make([]plugin.Plugin, n)
		for i := range n {
			features[i] = plugintest.NewFeature(fmt.Sprintf("Feature%d", i), plugin.FeatureOther)
			plugins[i] = features[i]
		}
		f := newFixture(t, DefaultConfig(), plugins...)
		for i, on := range initial {
			require.NoError(rt, f.store.SetPluginEnabled(features[i].FeatureID(), on))
		}
		require.NoError(rt, f.m.Initialize(context.Background(), f.dir))
		defer f.m.Shutdown(context.Background())

		for i, on := range stored {
			require.NoError(rt, f.store.SetPluginEnabled(features[i].FeatureID(), on))
		}
		require.NoError(rt, f.m.RefreshPlugins(context.Background()))

		for i, feat := range features {
			assert.Equal(rt, stored[i], feat.IsEnabled(), "feature %d", i)
			want := int32(0)
			if initial[i] != stored[i] {
				want = 1
			}
			assert.Equal(rt, want, feat.SetEnabledCalls.Load(), "SetEnabled calls for feature %d", i)
		}
	})
}

func TestRefreshPlugins_ContinuesAfterFailure(t *testing.T) {
	bad := plugintest.NewFeature("Bad", plugin.FeatureOther)
	good := plugintest.NewFeature("Good", plugin.FeatureOther)
	f := newFixture(t, DefaultConfig(), &panicOnRefresh{bad}, good)
	f.init(t)

	require.NoError(t, f.m.RefreshPlugins(context.Background()))
	assert.Equal(t, int32(1), good.Refreshes.Load())
}

type panicOnRefresh struct {
	*plugintest.Feature
}

func (p *panicOnRefresh) RefreshFromAppSettings(context.Context) error {
	panic("refresh exploded")
}

func TestSaveTriggersRefresh(t *testing.T) {
	feat := plugintest.NewFeature("SmartFormatting", plugin.FeatureSmartFormatting)
	f := newFixture(t, DefaultConfig(), feat)
	f.init(t)

	triggers := make(chan string, 8)
	unsubscribe := f.m.Subscribe(func(e Event) {
		if e.Type == EventRefreshed {
			triggers <- e.Detail
		}
	})
	defer unsubscribe()

	require.NoError(t, f.store.Save())
	select {
	case trigger := <-triggers:
		assert.Equal(t, settings.ChangeSave.String(), trigger)
	case <-time.After(time.Second):
		t.Fatal("save did not trigger a refresh")
	}
	assert.GreaterOrEqual(t, feat.Refreshes.Load(), int32(1))
}

func TestUsageErrorsBeforeInitialize(t *testing.T) {
	f := newFixture(t, DefaultConfig(), plugintest.NewStub("Alpha"))

	_, err := PluginsOf[plugin.FeatureProvider](f.m)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = PluginFor[plugin.AsyncFeature](f.m, plugin.FeatureJSONFormatter)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = f.m.ProcessText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, f.m.RefreshPlugins(context.Background()), ErrNotInitialized)
	_, err = f.m.ProcessFeature(context.Background(), "JsonFormatter", "x", plugin.ProcessOptions{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTypedLookups(t *testing.T) {
	jf := builtin.NewJSONFormatter()
	f := newFixture(t, DefaultConfig(), plugintest.NewStub("Plain"), jf, builtin.NewSmartFormatting())
	f.init(t)

	providers, err := PluginsOf[plugin.FeatureProvider](f.m)
	require.NoError(t, err)
	assert.Len(t, providers, 2)

	got, err := PluginFor[plugin.AsyncFeature](f.m, plugin.FeatureJSONFormatter)
	require.NoError(t, err)
	assert.Same(t, jf, got)

	_, err = PluginFor[plugin.AsyncFeature](f.m, plugin.FeatureOCR)
	assert.ErrorIs(t, err, plugin.ErrPluginNotFound)
}

func TestShutdown(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(id string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, id)
			return nil
		}
	}
	a, b := plugintest.NewStub("A"), plugintest.NewStub("B")
	a.ShutdownFn = record("A")
	b.ShutdownFn = func(ctx context.Context) error {
		_ = record("B")(ctx)
		return errors.New("still busy")
	}

	f := newFixture(t, DefaultConfig(), a, b)
	require.NoError(t, f.m.Initialize(context.Background(), f.dir))

	var shutDown []string
	f.m.Subscribe(func(e Event) {
		if e.Type == EventPluginShutDown {
			shutDown = append(shutDown, e.Plugin)
		}
	})

	f.m.Shutdown(context.Background())
	assert.Equal(t, StateUninitialized, f.m.State())
	assert.Empty(t, f.m.GetPlugins())
	assert.Empty(t, f.m.Status())
	assert.Equal(t, []string{"B", "A"}, order)
	assert.Equal(t, []string{"B", "A"}, shutDown)

	_, err := PluginsOf[plugin.Plugin](f.m)
	assert.ErrorIs(t, err, ErrNotInitialized)

	// A second Shutdown does nothing; Initialize works again.
	f.m.Shutdown(context.Background())
	assert.Equal(t, int32(1), a.Shutdowns.Load())
	require.NoError(t, f.m.Initialize(context.Background(), f.dir))
	assert.Len(t, f.m.GetPlugins(), 2)
	f.m.Shutdown(context.Background())
}

func TestEvents(t *testing.T) {
	broken := plugintest.NewStub("Broken")
	broken.InitFunc = func(context.Context, plugin.Host) error { return errors.New("nope") }
	f := newFixture(t, DefaultConfig(), plugintest.NewStub("Fine"), broken)

	var mu sync.Mutex
	var events []string
	f.m.Subscribe(func(e Event) { panic("handler bug") })
	f.m.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type.String()+":"+e.Plugin)
	})
	f.init(t)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"loaded:Fine", "failed:Broken"}, events)
}

func TestReadinessEvent(t *testing.T) {
	rp := &readyStub{Stub: plugintest.NewStub("Model"), rd: plugin.NewReadiness()}
	f := newFixture(t, DefaultConfig(), rp)

	ready := make(chan Event, 1)
	f.m.Subscribe(func(e Event) {
		if e.Type == EventPluginReady {
			ready <- e
		}
	})
	f.init(t)
	assert.Equal(t, plugin.NotReady, f.m.Status()[0].Readiness)

	rp.rd.MarkReady()
	select {
	case e := <-ready:
		assert.Equal(t, "Model", e.Plugin)
		assert.NoError(t, e.Err)
	case <-time.After(time.Second):
		t.Fatal("no ready event")
	}
	assert.Equal(t, plugin.Ready, f.m.Status()[0].Readiness)
}

type readyStub struct {
	*plugintest.Stub
	rd *plugin.Readiness
}

func (r *readyStub) Readiness() *plugin.Readiness { return r.rd }

func TestHost_PluginDataPath(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	dir, err := f.m.PluginDataPath("JsonFormatter")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.data, "Plugins", "JsonFormatter"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	for _, id := range []string{"../escape", `a\b`, "..", "."} {
		_, err := f.m.PluginDataPath(id)
		assert.ErrorIs(t, err, plugin.ErrInvalidID, id)
	}
	_, err = f.m.PluginDataPath("")
	assert.ErrorIs(t, err, plugin.ErrEmptyID)

	_, err = New(Config{}).PluginDataPath("x")
	assert.ErrorIs(t, err, ErrNoDataDir)
}

func TestHost_LogMessage(t *testing.T) {
	var buf bytes.Buffer
	m := New(DefaultConfig(), WithLogger(logging.New(logging.Config{
		Level:  logging.LogLevelTrace,
		Output: &buf,
		JSON:   true,
	})))

	m.LogMessage("OCR", plugin.LogWarning, "low contrast")
	m.LogMessage("OCR", plugin.LogFatal, "model missing")
	m.LogMessage("OCR", plugin.LogInformation, "strength 100% done, charset %s")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"warning"`)
	assert.Contains(t, lines[0], `"plugin":"OCR"`)
	assert.Contains(t, lines[1], `"level":"error"`)
	assert.Contains(t, lines[1], `"severity":"fatal"`)
	assert.Contains(t, lines[2], `"msg":"strength 100% done, charset %s"`)
}

func TestHost_NotificationsAndSettings(t *testing.T) {
	center := notify.NewCenter(notify.WithLogger(logging.Discard()))
	store := settings.NewMemoryStore()
	m := New(DefaultConfig(), WithNotifications(center), WithSettings(store), WithLogger(logging.Discard()))

	m.ShowNotification("Copied", "formatted JSON", plugin.NotifySuccess)
	recent := center.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "Copied", recent[0].Title)
	assert.Equal(t, plugin.NotifySuccess, recent[0].Type)

	acc, ok := m.AppSettings().(settings.Accessor)
	require.True(t, ok)
	assert.Same(t, store, acc)

	assert.Nil(t, New(DefaultConfig()).AppSettings())
	assert.NotNil(t, m.Features())
}
