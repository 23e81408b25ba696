package plugin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/clipai/internal/plugin"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    plugin.Version
		wantErr bool
	}{
		{"1", plugin.Version{Major: 1}, false},
		{"1.2", plugin.Version{Major: 1, Minor: 2}, false},
		{"v1.2.3", plugin.Version{Major: 1, Minor: 2, Patch: 3}, false},
		{" 2.0.1 ", plugin.Version{Major: 2, Patch: 1}, false},
		{"", plugin.Version{}, true},
		{"1.2.3.4", plugin.Version{}, true},
		{"1.x", plugin.Version{}, true},
		{"-1", plugin.Version{}, true},
	}
	for _, tt := range tests {
		got, err := plugin.ParseVersion(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	assert.Equal(t, "1.2.3", plugin.Version{Major: 1, Minor: 2, Patch: 3}.String())
	assert.Equal(t, -1, plugin.Version{Major: 1}.Compare(plugin.Version{Major: 1, Minor: 1}))
	assert.Equal(t, 1, plugin.Version{Major: 2}.Compare(plugin.Version{Major: 1, Minor: 9}))
	assert.Zero(t, plugin.Version{Patch: 4}.Compare(plugin.Version{Patch: 4}))
}

func TestFeatureType(t *testing.T) {
	assert.Equal(t, "JsonFormatter", plugin.FeatureJSONFormatter.String())
	assert.Equal(t, "Other", plugin.FeatureType(99).String())

	ft, ok := plugin.ParseFeatureType("languagedetection")
	assert.True(t, ok)
	assert.Equal(t, plugin.FeatureLanguageDetection, ft)

	ft, ok = plugin.ParseFeatureType("Teleport")
	assert.False(t, ok)
	assert.Equal(t, plugin.FeatureOther, ft)
}

func TestParseLevels(t *testing.T) {
	lvl, ok := plugin.ParseLogLevel("warn")
	assert.True(t, ok)
	assert.Equal(t, plugin.LogWarning, lvl)
	lvl, ok = plugin.ParseLogLevel("Critical")
	assert.True(t, ok)
	assert.Equal(t, "critical", lvl.String())
	_, ok = plugin.ParseLogLevel("loud")
	assert.False(t, ok)

	typ, ok := plugin.ParseNotificationType("success")
	assert.True(t, ok)
	assert.Equal(t, plugin.NotifySuccess, typ)
	typ, ok = plugin.ParseNotificationType("confetti")
	assert.False(t, ok)
	assert.Equal(t, plugin.NotifyInformation, typ)
}

func TestProcessOptions_Value(t *testing.T) {
	var empty plugin.ProcessOptions
	assert.Equal(t, 4, empty.Value("indent", 4))

	opts := plugin.ProcessOptions{Values: map[string]any{"minify": true}}
	assert.Equal(t, true, opts.Value("minify", false))
	assert.Equal(t, "x", opts.Value("missing", "x"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "enabled", plugin.EnabledState(true).String())
	assert.Equal(t, "disabled", plugin.EnabledState(false).String())
	assert.True(t, plugin.StateDisabled.IsLive())
	assert.False(t, plugin.StateFailed.IsLive())
	assert.False(t, plugin.StateShutDown.IsLive())
}

func TestReadiness(t *testing.T) {
	r := plugin.NewReadiness()
	assert.Equal(t, plugin.NotReady, r.State())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.Wait(ctx)
	assert.ErrorIs(t, err, plugin.ErrNotReady)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r.MarkReady()
	r.MarkFailed(errors.New("too late"))
	assert.Equal(t, plugin.Ready, r.State())
	assert.NoError(t, r.Wait(context.Background()))
	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestReadiness_Failed(t *testing.T) {
	r := plugin.NewReadiness()
	cause := errors.New("model missing")

	go r.MarkFailed(cause)
	assert.ErrorIs(t, r.Wait(context.Background()), cause)
	assert.Equal(t, plugin.ReadyFailed, r.State())

	r2 := plugin.NewReadiness()
	r2.MarkFailed(nil)
	assert.ErrorIs(t, r2.Err(), plugin.ErrNotReady)
}

func TestPanicError(t *testing.T) {
	err := &plugin.PanicError{Value: "boom"}
	assert.Equal(t, "plugin panic: boom", err.Error())
}
