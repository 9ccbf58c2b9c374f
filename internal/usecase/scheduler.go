package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// CooldownScheduler keeps one wake timer per app.
// Wakes only reduce latency: every decision is re-derived from timestamps,
// so a cancelled or missed wake is harmless. Must be used under the gate lock.
type CooldownScheduler struct {
	clock domain.Clock
	fire  func(appID string)
	wakes map[string]*wake
}

type wake struct {
	at    time.Time
	timer domain.Timer
}

// NewCooldownScheduler creates a scheduler calling fire when a wake is due.
func NewCooldownScheduler(clock domain.Clock, fire func(appID string)) *CooldownScheduler {
	return &CooldownScheduler{
		clock: clock,
		fire:  fire,
		wakes: make(map[string]*wake),
	}
}

// Arm replaces any wake for appID with one at fireAt.
func (s *CooldownScheduler) Arm(appID string, fireAt time.Time) {
	s.Cancel(appID)

	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	w := &wake{at: fireAt}
	w.timer = s.clock.AfterFunc(delay, func() {
		if s.wakes[appID] != w {
			return
		}
		delete(s.wakes, appID)
		s.fire(appID)
	})
	s.wakes[appID] = w
}

// Cancel removes the wake for appID.
func (s *CooldownScheduler) Cancel(appID string) {
	if w, ok := s.wakes[appID]; ok {
		w.timer.Stop()
		delete(s.wakes, appID)
	}
}

// FireAt returns when appID's wake is due.
func (s *CooldownScheduler) FireAt(appID string) (time.Time, bool) {
	w, ok := s.wakes[appID]
	if !ok {
		return time.Time{}, false
	}
	return w.at, true
}

// Stop cancels every wake.
func (s *CooldownScheduler) Stop() {
	for appID := range s.wakes {
		s.Cancel(appID)
	}
}
