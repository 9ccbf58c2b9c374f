package usecase

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// TrackerListener receives committed foreground transitions.
type TrackerListener interface {
	// AppEntered is called when a monitored app becomes active.
	AppEntered(appID string, at time.Time)

	// AppLeft is called when the active monitored app is genuinely left.
	AppLeft(appID string, at time.Time)

	// IsMonitored reports whether appID is in the registry.
	IsMonitored(appID string) bool

	// IsTarget reports whether the app currently shows its target interface.
	IsTarget(appID string) bool
}

// TrackerConfig configures foreground filtering.
type TrackerConfig struct {
	HostApp         string
	IgnoredApps     []string
	IgnoredPatterns []string // Case-insensitive substrings, e.g. "keyboard"
	FlapWindow      time.Duration
}

// ForegroundTracker resolves which monitored app, if any, is active.
// It owns the ActiveAppSelection. Not safe for concurrent use: the gate
// serialises every call, including timer callbacks.
type ForegroundTracker struct {
	cfg      TrackerConfig
	ignored  map[string]bool
	patterns []string
	clock    domain.Clock
	listener TrackerListener
	logger   *zap.Logger

	selection domain.ActiveAppSelection
	lastEvent time.Time
	pending   *pendingLeave
}

// pendingLeave is a leave held back by flap suppression.
type pendingLeave struct {
	appID string
	at    time.Time
	timer domain.Timer
}

// NewForegroundTracker creates a tracker reporting to listener.
func NewForegroundTracker(cfg TrackerConfig, clock domain.Clock, listener TrackerListener, logger *zap.Logger) *ForegroundTracker {
	t := &ForegroundTracker{
		cfg:      cfg,
		ignored:  make(map[string]bool),
		clock:    clock,
		listener: listener,
		logger:   logger,
	}
	if cfg.HostApp != "" {
		t.ignored[cfg.HostApp] = true
	}
	for _, id := range cfg.IgnoredApps {
		t.ignored[id] = true
	}
	for _, p := range cfg.IgnoredPatterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			t.patterns = append(t.patterns, p)
		}
	}
	return t
}

// Active returns the current selection.
func (t *ForegroundTracker) Active() domain.ActiveAppSelection {
	return t.selection
}

// Observe applies one raw foreground event. A zero ts means now.
func (t *ForegroundTracker) Observe(appID string, ts time.Time) {
	if ts.IsZero() {
		ts = t.clock.Now()
	}
	if t.isIgnored(appID) {
		return
	}
	if ts.Before(t.lastEvent) {
		t.logger.Debug("dropping out-of-order foreground event",
			zap.String("app", appID),
			zap.Time("at", ts),
			zap.Time("last", t.lastEvent))
		return
	}
	t.lastEvent = ts

	monitored := t.listener.IsMonitored(appID)

	// The flap window is measured in event time, not arrival time.
	if p := t.pending; p != nil && ts.Sub(p.at) > t.cfg.FlapWindow {
		t.commitPending()
	}

	if p := t.pending; p != nil {
		switch {
		case appID == p.appID:
			// Back within the window: the leave never happened.
			t.cancelPending()
			t.logger.Debug("flap suppressed", zap.String("app", appID))
			return
		case monitored:
			t.commitPending()
		default:
			return // Still away; the pending leave keeps running
		}
	}

	current := t.selection.AppID
	if appID == current {
		return
	}

	if monitored {
		if current != "" {
			t.leave(current, ts)
		}
		t.selection = domain.ActiveAppSelection{AppID: appID, Since: ts}
		t.listener.AppEntered(appID, ts)
		return
	}

	if current == "" {
		return
	}
	if t.cfg.FlapWindow > 0 && t.listener.IsTarget(current) {
		t.deferLeave(current, ts)
		return
	}
	t.leave(current, ts)
}

// Clear forces a leave of the active app, skipping flap suppression.
func (t *ForegroundTracker) Clear() {
	if t.pending != nil {
		t.commitPending()
		return
	}
	if t.selection.AppID != "" {
		t.leave(t.selection.AppID, t.clock.Now())
	}
}

// Stop cancels the pending leave timer without committing it.
func (t *ForegroundTracker) Stop() {
	t.cancelPending()
}

func (t *ForegroundTracker) isIgnored(appID string) bool {
	if appID == "" || t.ignored[appID] {
		return true
	}
	lower := strings.ToLower(appID)
	for _, p := range t.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (t *ForegroundTracker) deferLeave(appID string, at time.Time) {
	p := &pendingLeave{appID: appID, at: at}
	p.timer = t.clock.AfterFunc(t.cfg.FlapWindow, func() {
		if t.pending != p {
			return // stale: cancelled or replaced
		}
		t.commitPending()
	})
	t.pending = p
}

func (t *ForegroundTracker) cancelPending() {
	if t.pending == nil {
		return
	}
	t.pending.timer.Stop()
	t.pending = nil
}

func (t *ForegroundTracker) commitPending() {
	p := t.pending
	t.cancelPending()
	if t.selection.AppID == p.appID {
		t.leave(p.appID, p.at)
	}
}

func (t *ForegroundTracker) leave(appID string, at time.Time) {
	t.selection = domain.ActiveAppSelection{}
	t.listener.AppLeft(appID, at)
}
