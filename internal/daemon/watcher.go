// Package daemon runs the long-lived loops that feed the gate.
package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/infra"
)

// Engine is the part of the gate the daemon drives.
type Engine interface {
	OnForegroundChanged(appID string, ts time.Time)
	OnContentChanged(appID string, ts time.Time)
	ForceCheck(appID string)
	Poll()
	ClearActive()
	ActiveApp() domain.ActiveAppSelection
	RequestDismiss(appID string) (domain.ChallengeSession, error)
	SubmitAnswer(appID, answer string) (bool, error)
	CancelChallenge(appID string) error
	RefreshQuotas()
}

// WatcherConfig holds watcher configuration.
type WatcherConfig struct {
	PollInterval      time.Duration // Fallback evaluation of the active app
	LivenessInterval  time.Duration // How often to check the active app's process, 0 disables
	HeartbeatInterval time.Duration // How often to update the engine record
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval:      time.Second,
		LivenessInterval:  5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Watcher feeds inbound signals to the engine and runs the periodic checks.
// It polls the active app in case content events were missed, and clears
// the selection when the active app's process is gone.
type Watcher struct {
	config         WatcherConfig
	engine         Engine
	registry       domain.AppRegistry
	processManager domain.ProcessManager
	instances      domain.EngineRegistry
	logger         *zap.Logger
}

// NewWatcher creates a new watcher. pm may be nil to disable the liveness
// check, instances may be nil to skip heartbeats.
func NewWatcher(
	config WatcherConfig,
	engine Engine,
	registry domain.AppRegistry,
	pm domain.ProcessManager,
	instances domain.EngineRegistry,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		config:         config,
		engine:         engine,
		registry:       registry,
		processManager: pm,
		instances:      instances,
		logger:         logger,
	}
}

// Run dispatches signals until ctx is canceled. A closed signal channel
// stops dispatch but not the periodic checks.
func (w *Watcher) Run(ctx context.Context, signals <-chan domain.Signal) error {
	w.logger.Info("watcher started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("liveness_interval", w.config.LivenessInterval))

	pollTicker := time.NewTicker(w.config.PollInterval)
	defer pollTicker.Stop()

	// A zero interval or no process manager disables the liveness check.
	var liveness <-chan time.Time
	if w.config.LivenessInterval > 0 && w.processManager != nil {
		livenessTicker := time.NewTicker(w.config.LivenessInterval)
		defer livenessTicker.Stop()
		liveness = livenessTicker.C
	}

	var heartbeat <-chan time.Time
	if w.config.HeartbeatInterval > 0 && w.instances != nil {
		heartbeatTicker := time.NewTicker(w.config.HeartbeatInterval)
		defer heartbeatTicker.Stop()
		heartbeat = heartbeatTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return ctx.Err()

		case sig, ok := <-signals:
			if !ok {
				w.logger.Info("signal stream closed")
				signals = nil
				continue
			}
			w.Dispatch(sig)

		case <-pollTicker.C:
			w.engine.Poll()

		case <-liveness:
			w.checkLiveness()

		case <-heartbeat:
			if err := w.instances.UpdateHeartbeat(); err != nil {
				w.logger.Warn("failed to update heartbeat", zap.Error(err))
			}
		}
	}
}

// Dispatch routes one signal to the engine.
func (w *Watcher) Dispatch(sig domain.Signal) {
	switch sig.Kind {
	case domain.SignalForeground:
		w.engine.OnForegroundChanged(sig.AppID, sig.At)

	case domain.SignalContent:
		w.engine.OnContentChanged(sig.AppID, sig.At)

	case domain.SignalForce:
		w.engine.ForceCheck(sig.AppID)

	case domain.SignalDismiss:
		if _, err := w.engine.RequestDismiss(sig.AppID); err != nil {
			w.logger.Warn("dismiss rejected", zap.String("app", sig.AppID), zap.Error(err))
		}

	case domain.SignalAnswer:
		ok, err := w.engine.SubmitAnswer(sig.AppID, sig.Answer)
		if err != nil {
			w.logger.Warn("answer rejected", zap.String("app", sig.AppID), zap.Error(err))
			return
		}
		w.logger.Debug("answer checked", zap.String("app", sig.AppID), zap.Bool("correct", ok))

	case domain.SignalCancel:
		if err := w.engine.CancelChallenge(sig.AppID); err != nil {
			w.logger.Warn("cancel rejected", zap.String("app", sig.AppID), zap.Error(err))
		}

	default:
		w.logger.Warn("unknown signal", zap.String("type", string(sig.Kind)))
	}
}

// checkLiveness clears the active app if none of its processes are running.
// Check failures keep the selection.
func (w *Watcher) checkLiveness() {
	if w.processManager == nil {
		return
	}
	active := w.engine.ActiveApp()
	if active.AppID == "" {
		return
	}
	app, ok := w.registry.Get(active.AppID)
	if !ok {
		return
	}

	running, err := infra.AnyRunning(w.processManager, app.ProcessNames)
	if err != nil {
		w.logger.Debug("liveness check failed", zap.String("app", app.ID), zap.Error(err))
		return
	}
	if !running {
		w.logger.Info("active app is no longer running", zap.String("app", app.ID))
		w.engine.ClearActive()
	}
}
