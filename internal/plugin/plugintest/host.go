// Package plugintest provides a recording plugin.Host for tests.
package plugintest

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/clipai/internal/feature"
	"github.com/dshills/clipai/internal/plugin"
	"github.com/dshills/clipai/internal/settings"
)

// LogEntry is one recorded LogMessage call.
type LogEntry struct {
	PluginID string
	Level    plugin.LogLevel
	Message  string
}

// Notification is one recorded ShowNotification call.
type Notification struct {
	Title   string
	Message string
	Type    plugin.NotificationType
}

// Host is an in-memory plugin.Host.
type Host struct {
	Store    *settings.Store
	Registry *feature.Registry
	DataDir  string

	mu            sync.Mutex
	logs          []LogEntry
	notifications []Notification
}

// NewHost creates a host with a memory settings store and an empty
// registry. Data directories are created under dataDir.
func NewHost(dataDir string) *Host {
	return &Host{
		Store:    settings.NewMemoryStore(),
		Registry: feature.NewRegistry(),
		DataDir:  dataDir,
	}
}

// LogMessage records the message.
func (h *Host) LogMessage(pluginID string, level plugin.LogLevel, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logs = append(h.logs, LogEntry{PluginID: pluginID, Level: level, Message: message})
}

// PluginDataPath creates and returns DataDir/<id>.
func (h *Host) PluginDataPath(pluginID string) (string, error) {
	dir := filepath.Join(h.DataDir, pluginID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// AppSettings returns Store, or nil when Store is nil.
func (h *Host) AppSettings() any {
	if h.Store == nil {
		return nil
	}
	return h.Store
}

// ShowNotification records the notification.
func (h *Host) ShowNotification(title, message string, typ plugin.NotificationType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications = append(h.notifications, Notification{Title: title, Message: message, Type: typ})
}

// Features returns Registry.
func (h *Host) Features() plugin.FeatureRegistrar {
	if h.Registry == nil {
		return nil
	}
	return h.Registry
}

// Logs returns a copy of the recorded log entries.
func (h *Host) Logs() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]LogEntry(nil), h.logs...)
}

// Notifications returns a copy of the recorded notifications.
func (h *Host) Notifications() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.notifications...)
}

var _ plugin.Host = (*Host)(nil)
