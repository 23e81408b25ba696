package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"trace", LogLevelTrace},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warning", LogLevelWarn},
		{"Warn", LogLevelWarn},
		{"error", LogLevelError},
		{"nonsense", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LogLevelWarn, Output: &buf})

	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 1") {
		t.Errorf("warn message missing: %q", out)
	}
	if l.Enabled(LogLevelDebug) || !l.Enabled(LogLevelError) {
		t.Error("Enabled does not follow the configured level")
	}

	l.SetLevel(LogLevelTrace)
	if !l.Enabled(LogLevelTrace) {
		t.Error("SetLevel(trace) not applied")
	}
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LogLevelDebug, Output: &buf, JSON: true}).
		WithComponent("manager").
		WithFields(map[string]any{"plugin": "Ocr"})

	l.Debug("100%% literal")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "manager" || entry["plugin"] != "Ocr" {
		t.Errorf("fields missing: %v", entry)
	}
	if entry["level"] != "debug" {
		t.Errorf("level = %v, want debug", entry["level"])
	}
	if entry["msg"] != "100%% literal" {
		t.Errorf("msg = %v, message without args must not be formatted", entry["msg"])
	}
}

func TestDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	d := Discard()
	SetDefault(d)
	if Default() != d {
		t.Error("SetDefault not applied")
	}
	d.Error("dropped")
}

func TestLogger_LogVerbatim(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LogLevelTrace, Output: &buf, JSON: true})

	l.Log(LogLevelWarn, "50% of %s")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "50% of %s" || entry["level"] != "warning" {
		t.Errorf("entry = %v, want verbatim warning", entry)
	}
}
