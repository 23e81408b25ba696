package manager

import "github.com/dshills/clipai/internal/plugin"

// PluginStatus describes one plugin known to the manager.
type PluginStatus struct {
	ID      string
	Name    string
	Version plugin.Version
	Module  string
	Factory string
	State   plugin.State

	// FeatureID is empty for plugins that are not feature providers.
	FeatureID string

	// Readiness is Ready for plugins that do not report readiness.
	Readiness plugin.ReadyState

	// Err is the initialization or background failure, if any.
	Err error
}

// Status reports every plugin from the last Initialize: live plugins in
// discovery order followed by the ones that failed to initialize.
func (m *Manager) Status() []PluginStatus {
	m.mu.RLock()
	records := make([]*record, 0, len(m.records)+len(m.failed))
	records = append(records, m.records...)
	records = append(records, m.failed...)
	states := make([]plugin.State, len(records))
	for i, r := range records {
		states[i] = r.state
	}
	m.mu.RUnlock()

	out := make([]PluginStatus, len(records))
	for i, r := range records {
		p := r.plugin
		st := PluginStatus{
			ID:        p.ID(),
			Name:      p.Name(),
			Version:   p.Version(),
			Module:    r.module,
			Factory:   r.factory,
			State:     states[i],
			Readiness: plugin.Ready,
			Err:       r.err,
		}
		if fp, ok := p.(plugin.FeatureProvider); ok {
			st.FeatureID = fp.FeatureID()
		}
		if rr, ok := p.(plugin.ReadinessReporter); ok && rr.Readiness() != nil {
			st.Readiness = rr.Readiness().State()
			if st.Err == nil {
				st.Err = rr.Readiness().Err()
			}
		}
		if st.State == plugin.StateFailed {
			st.Readiness = plugin.ReadyFailed
		}
		out[i] = st
	}
	return out
}
