package usecase

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/metrics"
)

// closeLocked is the close transaction for a successful dismissal.
func (g *Gate) closeLocked(app domain.MonitoredApp, st *appState) {
	now := g.clock.Now()
	g.revertLocked(app.ID, st)

	effective := g.intervals.GetConfiguredInterval(app.ID)
	relaxed := g.intervals.IsRelaxedTier(effective)
	if relaxed && g.intervals.EnforcesQuota() && g.intervals.RelaxedQuotaRemaining(app, now) == 0 {
		g.logger.Info("relaxed quota used up, closing with strict tier",
			zap.String("app", app.ID),
			zap.Duration("requested", effective))
		effective = g.intervals.MaxStrictTier()
		relaxed = false
	}

	st.gate.ConfiguredInterval = g.intervals.GetConfiguredInterval(app.ID)
	st.gate.LastCloseTime = now
	st.gate.LastCloseInterval = effective
	if err := g.states.SaveClose(app.ID, now, effective); err != nil {
		// The in-memory state still holds the cooldown for this run.
		g.logger.Warn("failed to persist close", zap.String("app", app.ID), zap.Error(err))
	}

	if relaxed {
		count, err := g.intervals.RecordRelaxedClose(app.ID, now)
		if err != nil {
			g.logger.Warn("failed to record relaxed close", zap.String("app", app.ID), zap.Error(err))
		}
		st.gate.RelaxedCloseCount = count
		st.gate.RelaxedCloseCountDate = g.intervals.RelaxedCountDate(app.ID)
		g.emitQuotaLocked(app.ID)
	}

	g.discardSession(st)
	g.detector.Cancel(app.ID)
	g.emit(domain.Intent{Kind: domain.IntentHide, AppID: app.ID})
	g.setPhase(app.ID, st, domain.PhaseCooling)
	g.scheduler.Arm(app.ID, st.gate.HiddenUntil())

	metrics.Dismissal(app.ID, relaxed)
	g.logger.Info("overlay dismissed",
		zap.String("app", app.ID),
		zap.Duration("interval", effective),
		zap.Bool("relaxed", relaxed),
		zap.Time("hidden_until", st.gate.HiddenUntil()))
}

// revertLocked turns a used relaxed grant back into the max strict tier.
// It runs at most once per close: the close time is stored as a marker.
func (g *Gate) revertLocked(appID string, st *appState) {
	closedAt := st.gate.LastCloseTime
	if closedAt.IsZero() || !g.intervals.IsRelaxedTier(st.gate.LastCloseInterval) {
		return
	}
	if g.states.RevertedFor(appID, closedAt) {
		return
	}

	strict := g.intervals.MaxStrictTier()
	if err := g.intervals.SetConfiguredInterval(appID, strict); err != nil {
		g.logger.Warn("failed to revert relaxed tier", zap.String("app", appID), zap.Error(err))
		return
	}
	st.gate.ConfiguredInterval = strict
	if err := g.states.MarkReverted(appID, closedAt); err != nil {
		g.logger.Warn("failed to mark reversion", zap.String("app", appID), zap.Error(err))
	}
	g.logger.Info("relaxed tier reverted to strict",
		zap.String("app", appID),
		zap.Duration("interval", strict))
}
