package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// ErrNoProbe means no TextProbe is configured.
var ErrNoProbe = errors.New("no text probe configured")

// DetectorConfig configures debouncing and probe limits.
type DetectorConfig struct {
	Debounce     time.Duration // Quiet window before a burst is evaluated
	MaxWait      time.Duration // Longest a continuous burst can delay evaluation
	ProbeTimeout time.Duration
}

// ContentDetector debounces content signals and runs probes latest-wins.
// Every method except Probe must be called under the gate lock.
type ContentDetector struct {
	cfg   DetectorConfig
	clock domain.Clock
	probe domain.TextProbe
	apps  map[string]*detection
}

// detection is the per-app debounce and probe bookkeeping.
type detection struct {
	timer      domain.Timer
	burst      *burst
	generation uint64
	cancel     context.CancelFunc
}

// burst identifies one debounce window; its address is the timer token.
type burst struct {
	start time.Time
}

// NewContentDetector creates a detector. probe may be nil, in which case every
// probed run is dropped.
func NewContentDetector(cfg DetectorConfig, clock domain.Clock, probe domain.TextProbe) *ContentDetector {
	return &ContentDetector{
		cfg:   cfg,
		clock: clock,
		probe: probe,
		apps:  make(map[string]*detection),
	}
}

// Debounce schedules fire once content for appID has been quiet for the
// debounce window, or once MaxWait has passed since the burst began.
func (d *ContentDetector) Debounce(appID string, fire func()) {
	e := d.entry(appID)
	now := d.clock.Now()

	if e.burst == nil {
		e.burst = &burst{start: now}
	}
	if e.timer != nil {
		e.timer.Stop()
	}

	wait := d.cfg.Debounce
	if d.cfg.MaxWait > 0 {
		if remaining := e.burst.start.Add(d.cfg.MaxWait).Sub(now); remaining < wait {
			wait = remaining
		}
	}
	if wait < 0 {
		wait = 0
	}

	b := e.burst
	e.timer = d.clock.AfterFunc(wait, func() {
		if e.burst != b {
			return
		}
		e.burst = nil
		e.timer = nil
		fire()
	})
}

// Pending reports whether a debounced evaluation is waiting for appID.
func (d *ContentDetector) Pending(appID string) bool {
	e, ok := d.apps[appID]
	return ok && e.burst != nil
}

// Immediate resolves apps that need no probe. An exempt app without a
// meaningful phrase is always Target; any other app without one is never Target.
func (d *ContentDetector) Immediate(app domain.MonitoredApp) (domain.InterfaceState, bool) {
	if app.HasPhrases() {
		return domain.InterfaceUnknown, false
	}
	if app.ChallengeExempt {
		return domain.InterfaceTarget, true
	}
	return domain.InterfaceNotTarget, true
}

// Begin starts a probe run for appID, superseding any run in flight.
// Only the returned generation may Finish.
func (d *ContentDetector) Begin(appID string) (uint64, context.Context) {
	e := d.entry(appID)
	if e.cancel != nil {
		e.cancel()
	}
	e.generation++

	ctx := context.Background()
	var cancel context.CancelFunc
	if d.cfg.ProbeTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	e.cancel = cancel
	return e.generation, ctx
}

// Probe asks the TextProbe about app. Safe to call without the gate lock.
func (d *ContentDetector) Probe(ctx context.Context, app domain.MonitoredApp) (domain.InterfaceState, error) {
	if d.probe == nil {
		return domain.InterfaceUnknown, ErrNoProbe
	}
	found, err := d.probe.ContainsAny(ctx, app.ID, app.TargetPhrases)
	if err != nil {
		return domain.InterfaceUnknown, err
	}
	if found {
		return domain.InterfaceTarget, nil
	}
	return domain.InterfaceNotTarget, nil
}

// Finish ends a probe run. It returns false when the run was superseded or cancelled.
func (d *ContentDetector) Finish(appID string, generation uint64) bool {
	e, ok := d.apps[appID]
	if !ok || e.generation != generation {
		return false
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return true
}

// Cancel drops the pending debounce and invalidates any probe in flight.
func (d *ContentDetector) Cancel(appID string) {
	e, ok := d.apps[appID]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.burst = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generation++
}

// Stop cancels work for every app.
func (d *ContentDetector) Stop() {
	for appID := range d.apps {
		d.Cancel(appID)
	}
}

func (d *ContentDetector) entry(appID string) *detection {
	e, ok := d.apps[appID]
	if !ok {
		e = &detection{}
		d.apps[appID] = e
	}
	return e
}
