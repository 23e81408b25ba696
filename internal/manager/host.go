package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/clipai/internal/logging"
	"github.com/dshills/clipai/internal/plugin"
)

// PluginDataDir is the directory under the data dir holding per-plugin
// data directories.
const PluginDataDir = "Plugins"

// LogMessage logs on behalf of a plugin. Critical and Fatal are logged at
// error level with a severity field; neither stops the process.
func (m *Manager) LogMessage(pluginID string, level plugin.LogLevel, message string) {
	l := m.logger.WithField("plugin", pluginID)
	switch level {
	case plugin.LogTrace:
		l.Log(logging.LogLevelTrace, message)
	case plugin.LogDebug:
		l.Log(logging.LogLevelDebug, message)
	case plugin.LogInformation:
		l.Log(logging.LogLevelInfo, message)
	case plugin.LogWarning:
		l.Log(logging.LogLevelWarn, message)
	case plugin.LogError:
		l.Log(logging.LogLevelError, message)
	default:
		l.WithField("severity", level.String()).Log(logging.LogLevelError, message)
	}
}

// PluginDataPath returns <DataDir>/Plugins/<pluginID>, creating it if
// needed. Ids that are not a single path element are rejected.
func (m *Manager) PluginDataPath(pluginID string) (string, error) {
	if pluginID == "" {
		return "", plugin.ErrEmptyID
	}
	if strings.ContainsAny(pluginID, `/\`) || pluginID == "." || pluginID == ".." {
		return "", fmt.Errorf("%w: %q", plugin.ErrInvalidID, pluginID)
	}
	if m.cfg.DataDir == "" {
		return "", ErrNoDataDir
	}

	dir := filepath.Join(m.cfg.DataDir, PluginDataDir, pluginID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory for %s: %w", pluginID, err)
	}
	return dir, nil
}

// AppSettings returns the settings store, or nil when none is configured.
func (m *Manager) AppSettings() any {
	if m.store == nil {
		return nil
	}
	return m.store
}

// ShowNotification forwards a notification to the notification center. It
// is logged when no center is configured.
func (m *Manager) ShowNotification(title, message string, typ plugin.NotificationType) {
	m.metrics.Notification(typ.String())
	if m.notes == nil {
		m.logger.WithField("type", typ.String()).Info("notification: %s: %s", title, message)
		return
	}
	m.notes.Show(title, message, typ)
}

// Features returns the feature registry.
func (m *Manager) Features() plugin.FeatureRegistrar {
	return m.registry
}

var _ plugin.Host = (*Manager)(nil)
