package manager

import (
	"context"

	"github.com/dshills/clipai/internal/plugin"
)

// Refresh triggers, used as the metrics label and event detail.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// RefreshPlugins reconciles every feature plugin's enabled flag with the
// settings store, calling SetEnabled only where they disagree, and then
// calls RefreshFromAppSettings on every Refreshable plugin. Per-plugin
// failures are logged and do not stop the cycle.
func (m *Manager) RefreshPlugins(ctx context.Context) error {
	return m.refresh(ctx, TriggerManual)
}

// ScheduleRefresh queues a refresh cycle on the manager's worker. Requests
// made while a cycle is queued are coalesced into it. It does nothing
// unless the manager is Ready.
func (m *Manager) ScheduleRefresh(trigger string) {
	m.mu.RLock()
	pending, ready := m.pending, m.state == StateReady
	m.mu.RUnlock()
	if !ready || pending == nil {
		return
	}
	select {
	case pending <- trigger:
	default:
	}
}

// refreshLoop runs queued refresh cycles one at a time until stop closes.
// Saves made by a running cycle queue at most one follow-up cycle.
func (m *Manager) refreshLoop(stop <-chan struct{}, pending <-chan string) {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		select {
		case <-stop:
			return
		case trigger := <-pending:
			if err := m.refresh(ctx, trigger); err != nil {
				m.logger.WithError(err).Debug("scheduled refresh skipped")
			}
		}
	}
}

func (m *Manager) refresh(ctx context.Context, trigger string) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	records, err := m.live()
	if err != nil {
		return err
	}
	m.metrics.Refresh(trigger)

	if m.store != nil {
		for _, r := range records {
			fp, ok := r.plugin.(plugin.FeatureProvider)
			if !ok {
				continue
			}
			m.reconcile(ctx, r, fp)
		}
	}

	for _, r := range records {
		rf, ok := r.plugin.(plugin.Refreshable)
		if !ok {
			continue
		}
		id := r.plugin.ID()
		if err := m.invoke(ctx, id, opRefresh, rf.RefreshFromAppSettings); err != nil {
			m.logger.WithField("plugin", id).WithError(err).Warn("plugin refresh failed")
		}
	}

	m.updateGauges()
	m.logger.Debug("refreshed %d plugins (%s)", len(records), trigger)
	m.emit(Event{Type: EventRefreshed, Detail: trigger})
	return nil
}

// reconcile makes fp's enabled flag match the stored one.
func (m *Manager) reconcile(ctx context.Context, r *record, fp plugin.FeatureProvider) {
	id := r.plugin.ID()
	want := m.store.IsPluginEnabled(fp.FeatureID())

	changed, err := call(ctx, m, id, opSetEnabled, func(ctx context.Context) (bool, error) {
		if fp.IsEnabled() == want {
			return false, nil
		}
		return true, fp.SetEnabled(want)
	})
	if err != nil {
		m.logger.WithField("plugin", id).WithError(err).Warn("failed to apply enabled setting")
		return
	}
	if !changed {
		return
	}

	m.setRecordState(r, plugin.EnabledState(want))
	typ := EventPluginDisabled
	if want {
		typ = EventPluginEnabled
	}
	m.logger.WithField("plugin", id).Info("plugin %s", typ)
	m.emit(Event{Type: typ, Plugin: id})
}
