package feature_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dshills/clipai/internal/feature"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/plugin/plugintest"
)

func TestRegister_Errors(t *testing.T) {
	r := feature.NewRegistry()

	assert.ErrorIs(t, r.RegisterFeatureProvider("", plugintest.NewStub("a")), feature.ErrEmptyFeatureID)
	assert.ErrorIs(t, r.RegisterFeatureProvider("Ocr", nil), feature.ErrNilPlugin)

	var typedNil *plugintest.Stub
	assert.ErrorIs(t, r.RegisterFeatureProvider("Ocr", typedNil), feature.ErrNilPlugin)
	assert.Zero(t, r.Len())
}

func TestRegister_SameInstanceOnce(t *testing.T) {
	r := feature.NewRegistry()
	p := plugintest.NewStub("JsonFormatter")

	require.NoError(t, r.RegisterFeatureProvider("JsonFormatter", p))
	require.NoError(t, r.RegisterFeatureProvider("JsonFormatter", p))

	providers := r.GetFeatureProviders("JsonFormatter")
	require.Len(t, providers, 1)
	assert.Same(t, p, providers[0])
}

func TestRegister_DistinctInOrder(t *testing.T) {
	r := feature.NewRegistry()
	a, b := plugintest.NewStub("A"), plugintest.NewStub("B")

	require.NoError(t, r.RegisterFeatureProvider("Ocr", a))
	require.NoError(t, r.RegisterFeatureProvider("Ocr", b))

	assert.Equal(t, []plugin.Plugin{a, b}, r.GetFeatureProviders("Ocr"))
}

func TestAvailability(t *testing.T) {
	r := feature.NewRegistry()
	assert.False(t, r.IsFeatureAvailable("JsonFormatter"))
	assert.False(t, r.IsEnabled(plugin.FeatureJSONFormatter))
	assert.Empty(t, r.GetFeatureProviders("JsonFormatter"))

	require.NoError(t, r.RegisterFeatureProvider("JsonFormatter", plugintest.NewStub("j")))
	assert.True(t, r.IsFeatureAvailable("JsonFormatter"))
	assert.True(t, r.IsEnabled(plugin.FeatureJSONFormatter))
	assert.False(t, r.IsEnabled(plugin.FeatureOCR))
}

func TestGetFeatureProviders_ReturnsCopy(t *testing.T) {
	r := feature.NewRegistry()
	require.NoError(t, r.RegisterFeatureProvider("Ocr", plugintest.NewStub("a")))

	list := r.GetFeatureProviders("Ocr")
	list[0] = nil
	assert.NotNil(t, r.GetFeatureProviders("Ocr")[0])
}

func TestGetRegisteredFeatures_FirstRegistrationOrder(t *testing.T) {
	r := feature.NewRegistry()
	for _, id := range []string{"SmartFormatting", "JsonFormatter", "SmartFormatting", "Ocr"} {
		require.NoError(t, r.RegisterFeatureProvider(id, plugintest.NewStub(id+"-provider")))
	}
	assert.Equal(t, []string{"SmartFormatting", "JsonFormatter", "Ocr"}, r.GetRegisteredFeatures())
	assert.Equal(t, 3, r.Len())
}

func TestRegister_Concurrent(t *testing.T) {
	r := feature.NewRegistry()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := plugintest.NewStub(fmt.Sprintf("p%d", i))
			_ = r.RegisterFeatureProvider("Shared", p)
			_ = r.RegisterFeatureProvider(fmt.Sprintf("F%d", i%4), p)
			_ = r.GetRegisteredFeatures()
		}()
	}
	wg.Wait()

	assert.Len(t, r.GetFeatureProviders("Shared"), 32)
	assert.Equal(t, 5, r.Len())
}

// Registration is a set per feature id that keeps first-registration order,
// and availability is exactly "has at least one provider".
func TestRegistry_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pool := make([]*plugintest.Stub, rapid.IntRange(1, 5).Draw(rt, "plugins"))
		for i := range pool {
			pool[i] = plugintest.NewStub(fmt.Sprintf("p%d", i))
		}
		featureIDs := []string{"Ocr", "JsonFormatter", "SmartFormatting"}

		r := feature.NewRegistry()
		want := make(map[string][]plugin.Plugin)
		ops := rapid.IntRange(0, 30).Draw(rt, "ops")
		for range ops {
			id := rapid.SampledFrom(featureIDs).Draw(rt, "feature")
			p := pool[rapid.IntRange(0, len(pool)-1).Draw(rt, "plugin")]
			require.NoError(rt, r.RegisterFeatureProvider(id, p))

			dup := false
			for _, q := range want[id] {
				if q == plugin.Plugin(p) {
					dup = true
				}
			}
			if !dup {
				want[id] = append(want[id], p)
			}
		}

		for _, id := range featureIDs {
			got := r.GetFeatureProviders(id)
			assert.Equal(rt, len(want[id]) > 0, r.IsFeatureAvailable(id), id)
			if len(want[id]) == 0 {
				assert.Empty(rt, got)
				continue
			}
			assert.Equal(rt, want[id], got, id)
		}
	})
}
