package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCall("p", "process", StatusOK, time.Millisecond)
	m.LoadFailure("open")
	m.SetPlugins(1, 1)
	m.Refresh("save")
	m.Notification("error")
	m.SetState(2)
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCall("JsonFormatter", "process", StatusOK, 2*time.Millisecond)
	m.ObserveCall("JsonFormatter", "process", StatusOK, 3*time.Millisecond)
	m.ObserveCall("JsonFormatter", "process", StatusTimeout, time.Second)
	m.LoadFailure("open")
	m.SetPlugins(3, 2)
	m.SetState(2)

	if got := testutil.ToFloat64(m.PluginCallsTotal.WithLabelValues("JsonFormatter", "process", StatusOK)); got != 2 {
		t.Errorf("ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PluginCallsTotal.WithLabelValues("JsonFormatter", "process", StatusTimeout)); got != 1 {
		t.Errorf("timeout calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LoadFailuresTotal.WithLabelValues("open")); got != 1 {
		t.Errorf("load failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PluginsEnabled); got != 2 {
		t.Errorf("enabled = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ManagerState); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Refresh("save")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `clipai_plugin_refreshes_total{trigger="save"} 1`) {
		t.Errorf("metrics output missing refresh counter:\n%s", body)
	}
}
