package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/clipai/internal/plugin"
)

// Language detection setting names.
const (
	SettingShowConfidence   = "ShowConfidence"
	SettingShowAllLanguages = "ShowAllLanguages"
	SettingWaitTimeout      = "WaitTimeout"
)

// DefaultWaitTimeout bounds how long a request waits for warm-up.
const DefaultWaitTimeout = 2 * time.Second

// LanguageDetection reports the language of clipboard text.
//
// Word profiles are built in the background after Initialize. Until they
// are ready, requests wait up to WaitTimeout and then fall back to
// character markers, reported as "character markers (warming up)" while
// Readiness is still NotReady. If the warm-up fails the plugin stays
// usable on character markers.
type LanguageDetection struct {
	*plugin.FeatureBase

	readiness *plugin.Readiness
	detector  atomic.Pointer[detector]
	build     func(ctx context.Context) (*detector, error)

	mu             sync.RWMutex
	showConfidence bool
	showAll        bool
	waitTimeout    time.Duration
	cancel         context.CancelFunc
	done           chan struct{}
}

// NewLanguageDetection creates the LanguageDetection feature.
func NewLanguageDetection() *LanguageDetection {
	f := &LanguageDetection{
		readiness:      plugin.NewReadiness(),
		build:          newDetector,
		showConfidence: true,
		waitTimeout:    DefaultWaitTimeout,
	}
	f.FeatureBase = plugin.NewFeatureBase(f,
		plugin.Descriptor{
			ID:          "LanguageDetection",
			Name:        "Language Detection",
			Version:     plugin.Version{Major: 1},
			Author:      author,
			Description: "Detect the language of text",
		},
		plugin.FeatureSpec{Name: "Language Detection", Type: plugin.FeatureLanguageDetection},
	)
	return f
}

// Readiness reports warm-up progress.
func (f *LanguageDetection) Readiness() *plugin.Readiness {
	return f.readiness
}

// Initialize registers the feature and starts the warm-up. It does not
// wait for the warm-up to finish.
func (f *LanguageDetection) Initialize(ctx context.Context, host plugin.Host) error {
	if err := f.FeatureBase.Initialize(ctx, host); err != nil {
		return err
	}
	if err := f.RefreshFromAppSettings(ctx); err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	f.mu.Lock()
	f.cancel, f.done = cancel, done
	f.mu.Unlock()

	go f.warmup(wctx, done)
	return nil
}

func (f *LanguageDetection) warmup(ctx context.Context, done chan struct{}) {
	defer close(done)

	start := time.Now()
	d, err := f.build(ctx)
	if err != nil {
		f.Log(plugin.LogWarning, "warm-up failed, using character markers: %v", err)
		f.readiness.MarkFailed(err)
		return
	}
	f.detector.Store(d)
	f.Log(plugin.LogInformation, "language profiles ready in %s", time.Since(start).Round(time.Millisecond))
	f.readiness.MarkReady()
}

// RefreshFromAppSettings re-reads the display options.
func (f *LanguageDetection) RefreshFromAppSettings(ctx context.Context) error {
	showConfidence := plugin.Setting(f.FeatureBase, SettingShowConfidence, true)
	showAll := plugin.Setting(f.FeatureBase, SettingShowAllLanguages, false)
	wait := plugin.Setting(f.FeatureBase, SettingWaitTimeout, DefaultWaitTimeout)
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}

	f.mu.Lock()
	f.showConfidence, f.showAll, f.waitTimeout = showConfidence, showAll, wait
	f.mu.Unlock()
	return nil
}

// ProcessText leaves pipeline text unchanged; detection is on demand.
func (f *LanguageDetection) ProcessText(ctx context.Context, text string) (string, error) {
	return text, nil
}

// Detect returns the scored candidates for text. It waits for the
// warm-up as ProcessTextAsync does.
func (f *LanguageDetection) Detect(ctx context.Context, text string) ([]LanguageScore, string, error) {
	f.mu.RLock()
	wait := f.waitTimeout
	f.mu.RUnlock()

	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	method := "character markers"
	if err := f.readiness.Wait(wctx); err != nil && f.readiness.State() == plugin.NotReady {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		method = "character markers (warming up)"
	}

	if d := f.detector.Load(); d != nil {
		return d.Scores(text), "word profiles", nil
	}
	return []LanguageScore{{Tag: markerLanguage(text), Score: 1}}, method, nil
}

// ProcessTextAsync returns the text followed by the detected language.
func (f *LanguageDetection) ProcessTextAsync(ctx context.Context, text string, opts plugin.ProcessOptions) (string, error) {
	if !f.SupportsContentType(opts.ContentType) {
		return "", plugin.ErrUnsupportedContent
	}
	if strings.TrimSpace(text) == "" {
		return "Language: Unknown", nil
	}

	scores, method, err := f.Detect(ctx, text)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	showConfidence, showAll := f.showConfidence, f.showAll
	f.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\n")

	top := scores[0]
	fmt.Fprintf(&sb, "Detected Language: %s (%s)", languageName(top.Tag), strings.ToUpper(top.Tag.String()))
	if showConfidence {
		fmt.Fprintf(&sb, " %.0f%%", top.Score*100)
	}
	sb.WriteString("\n")

	limit := 3
	if showAll {
		limit = len(scores)
	}
	var others []LanguageScore
	for _, s := range scores[1:] {
		if s.Score > 0.05 && len(others) < limit {
			others = append(others, s)
		}
	}
	if len(others) > 0 {
		sb.WriteString("Other possible languages:\n")
		for _, s := range others {
			fmt.Fprintf(&sb, "- %s (%s)\n", languageName(s.Tag), strings.ToUpper(s.Tag.String()))
		}
	}

	fmt.Fprintf(&sb, "\nDetection method: %s\n", method)
	return sb.String(), nil
}

// ProcessImageAsync is not supported.
func (f *LanguageDetection) ProcessImageAsync(ctx context.Context, image []byte, opts plugin.ProcessOptions) (string, error) {
	return "", plugin.ErrUnsupportedContent
}

// SupportsContentType accepts text only.
func (f *LanguageDetection) SupportsContentType(ct plugin.ContentType) bool {
	return ct == plugin.ContentText
}

// MenuOptions returns the detect entry.
func (f *LanguageDetection) MenuOptions() []plugin.MenuOption {
	return []plugin.MenuOption{{Icon: "🌐", Text: "Detect Language", FeatureType: plugin.FeatureLanguageDetection}}
}

// SettingsFields adds the display options to the enabled toggle.
func (f *LanguageDetection) SettingsFields() []plugin.SettingField {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append(f.FeatureBase.SettingsFields(),
		plugin.SettingField{Name: SettingShowConfidence, Label: "Show confidence", Kind: plugin.SettingBool, Default: f.showConfidence},
		plugin.SettingField{Name: SettingShowAllLanguages, Label: "Show all languages", Kind: plugin.SettingBool, Default: f.showAll},
	)
}

// SaveSettings stores the values and applies them immediately.
func (f *LanguageDetection) SaveSettings(values map[string]any) error {
	if err := f.FeatureBase.SaveSettings(values); err != nil {
		return err
	}
	return f.RefreshFromAppSettings(context.Background())
}

// Shutdown stops a running warm-up and waits for it to exit.
func (f *LanguageDetection) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ plugin.AsyncFeature      = (*LanguageDetection)(nil)
	_ plugin.Refreshable       = (*LanguageDetection)(nil)
	_ plugin.SettingsUI        = (*LanguageDetection)(nil)
	_ plugin.ReadinessReporter = (*LanguageDetection)(nil)
)
