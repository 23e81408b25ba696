// Package metrics exposes Prometheus instrumentation for the plugin
// runtime. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcomes used as the status label.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
	StatusPanic   = "panic"
)

// Metrics holds the runtime's collectors.
type Metrics struct {
	PluginCallsTotal   *prometheus.CounterVec
	PluginCallDuration *prometheus.HistogramVec

	LoadFailuresTotal *prometheus.CounterVec
	PluginsLoaded     prometheus.Gauge
	PluginsEnabled    prometheus.Gauge

	RefreshesTotal     *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	ManagerState       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PluginCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipai_plugin_calls_total",
				Help: "Total number of plugin calls",
			},
			[]string{"plugin", "operation", "status"},
		),
		PluginCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clipai_plugin_call_duration_seconds",
				Help:    "Plugin call duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"plugin", "operation"},
		),
		LoadFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipai_plugin_load_failures_total",
				Help: "Total number of plugin units that failed to load",
			},
			[]string{"stage"},
		),
		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clipai_plugins_loaded",
				Help: "Number of initialized plugins",
			},
		),
		PluginsEnabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clipai_plugins_enabled",
				Help: "Number of enabled feature plugins",
			},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipai_plugin_refreshes_total",
				Help: "Total number of plugin refreshes",
			},
			[]string{"trigger"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clipai_notifications_total",
				Help: "Total number of notifications shown",
			},
			[]string{"type"},
		),
		ManagerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clipai_manager_state",
				Help: "Plugin manager state (0 uninitialized, 1 initializing, 2 ready, 3 shutting down)",
			},
		),
	}

	reg.MustRegister(
		m.PluginCallsTotal,
		m.PluginCallDuration,
		m.LoadFailuresTotal,
		m.PluginsLoaded,
		m.PluginsEnabled,
		m.RefreshesTotal,
		m.NotificationsTotal,
		m.ManagerState,
	)
	return m
}

// ObserveCall records one plugin call.
func (m *Metrics) ObserveCall(plugin, operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PluginCallsTotal.WithLabelValues(plugin, operation, status).Inc()
	m.PluginCallDuration.WithLabelValues(plugin, operation).Observe(d.Seconds())
}

// LoadFailure counts a failed load unit.
func (m *Metrics) LoadFailure(stage string) {
	if m == nil {
		return
	}
	m.LoadFailuresTotal.WithLabelValues(stage).Inc()
}

// SetPlugins sets the loaded and enabled gauges.
func (m *Metrics) SetPlugins(loaded, enabled int) {
	if m == nil {
		return
	}
	m.PluginsLoaded.Set(float64(loaded))
	m.PluginsEnabled.Set(float64(enabled))
}

// Refresh counts a refresh by what triggered it.
func (m *Metrics) Refresh(trigger string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(trigger).Inc()
}

// Notification counts a shown notification.
func (m *Metrics) Notification(typ string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(typ).Inc()
}

// SetState records the manager state.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.ManagerState.Set(float64(state))
}

// Handler serves the metrics in gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
