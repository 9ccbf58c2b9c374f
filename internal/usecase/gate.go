// Package usecase implements the gating engine: foreground tracking, content
// detection, the per-app gate state machine, cooldowns and challenges.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/metrics"
	"github.com/eliteGoblin/focusd/feedgate/internal/policy"
)

var (
	ErrNotShown    = errors.New("overlay is not shown")
	ErrNoChallenge = errors.New("no challenge in progress")
	ErrGateClosed  = errors.New("gate is closed")
)

// AppCatalog is the registry view the gate needs: reads plus quota edits.
type AppCatalog interface {
	domain.AppRegistry
	SetQuota(id string, quota int) error
}

// GateConfig configures a Gate.
type GateConfig struct {
	Tracker          TrackerConfig
	Detector         DetectorConfig
	Difficulty       domain.Difficulty
	WrongAnswerDelay time.Duration

	// SyncProbes runs probes on the calling goroutine instead of spawning one.
	SyncProbes bool
}

// GateDeps are the collaborators of a Gate.
type GateDeps struct {
	Registry  AppCatalog
	Intervals *policy.IntervalPolicy
	Store     domain.ConfigStore
	Probe     domain.TextProbe // nil disables probed detection
	Sink      domain.IntentSink
	Clock     domain.Clock
	Logger    *zap.Logger
}

// AppStatus is a point-in-time view of one app.
type AppStatus struct {
	App                domain.MonitoredApp
	Phase              domain.GatePhase
	Interface          domain.InterfaceState
	Active             bool
	Cooling            bool
	ConfiguredInterval time.Duration
	LastCloseTime      time.Time
	LastCloseInterval  time.Duration
	HiddenUntil        time.Time
	RelaxedUsed        int
	RelaxedRemaining   int
	RelaxedCountDate   string
	Question           string // Set while a challenge question is live
}

// appState is the gate's per-app record, looked up by app ID.
type appState struct {
	gate      domain.GateState
	phase     domain.GatePhase
	session   *domain.ChallengeSession
	retry     domain.Timer
	forceNext bool // Set when cooling ends so a missed wake still re-shows
}

// Gate is the gating state machine. A single mutex serialises every
// mutation; tracker, detector and scheduler run under it, including their
// timer callbacks. Probes run outside the lock and commit latest-wins.
type Gate struct {
	mu   sync.Mutex
	jobs []func()

	cfg        GateConfig
	clock      domain.Clock
	serial     domain.Clock
	registry   AppCatalog
	intervals  *policy.IntervalPolicy
	states     *GateStore
	sink       domain.IntentSink
	challenges ChallengeEngine
	logger     *zap.Logger

	tracker   *ForegroundTracker
	detector  *ContentDetector
	scheduler *CooldownScheduler

	apps   map[string]*appState
	closed bool
	wg     sync.WaitGroup
}

// NewGate wires a gate and its components.
func NewGate(cfg GateConfig, deps GateDeps) *Gate {
	g := &Gate{
		cfg:       cfg,
		clock:     deps.Clock,
		registry:  deps.Registry,
		intervals: deps.Intervals,
		states:    NewGateStore(deps.Store, deps.Intervals, deps.Logger),
		sink:      deps.Sink,
		logger:    deps.Logger,
		apps:      make(map[string]*appState),
	}

	g.serial = serialClock{g: g}
	g.tracker = NewForegroundTracker(cfg.Tracker, g.serial, trackerHooks{g}, deps.Logger)
	g.detector = NewContentDetector(cfg.Detector, g.serial, deps.Probe)
	g.scheduler = NewCooldownScheduler(g.serial, g.wakeLocked)
	return g
}

// serialClock runs timer callbacks under the gate lock.
type serialClock struct {
	g *Gate
}

func (c serialClock) Now() time.Time {
	return c.g.clock.Now()
}

func (c serialClock) AfterFunc(d time.Duration, f func()) domain.Timer {
	return c.g.clock.AfterFunc(d, func() {
		c.g.lock()
		defer c.g.unlock()
		if c.g.closed {
			return
		}
		f()
	})
}

// trackerHooks adapts the gate to TrackerListener without exporting the hooks.
type trackerHooks struct {
	g *Gate
}

func (h trackerHooks) AppEntered(appID string, _ time.Time) {
	h.g.evaluateLocked(appID, true)
}

func (h trackerHooks) AppLeft(appID string, _ time.Time) {
	h.g.leaveLocked(appID)
}

func (h trackerHooks) IsMonitored(appID string) bool {
	_, ok := h.g.registry.Get(appID)
	return ok
}

func (h trackerHooks) IsTarget(appID string) bool {
	st, ok := h.g.apps[appID]
	if !ok {
		return false
	}
	return st.gate.InterfaceState == domain.InterfaceTarget || st.phase.OverlayVisible()
}

func (g *Gate) lock() {
	g.mu.Lock()
}

// unlock releases the lock, then starts the probe jobs queued while it was held.
func (g *Gate) unlock() {
	jobs := g.jobs
	g.jobs = nil
	// Counted under the lock so Close cannot start waiting before Add.
	if !g.cfg.SyncProbes {
		g.wg.Add(len(jobs))
	}
	g.mu.Unlock()

	for _, job := range jobs {
		if g.cfg.SyncProbes {
			job()
			continue
		}
		go func(job func()) {
			defer g.wg.Done()
			job()
		}(job)
	}
}

// OnForegroundChanged feeds a raw foreground event. A zero ts means now.
func (g *Gate) OnForegroundChanged(appID string, ts time.Time) {
	g.lock()
	defer g.unlock()
	if g.closed {
		return
	}
	g.tracker.Observe(appID, ts)
}

// OnContentChanged feeds a raw content event. Only the active app is
// considered, and events stamped before it became active are stale.
func (g *Gate) OnContentChanged(appID string, ts time.Time) {
	g.lock()
	defer g.unlock()
	if g.closed {
		return
	}
	active := g.tracker.Active()
	if !active.IsActive(appID) {
		return
	}
	if !ts.IsZero() && ts.Before(active.Since) {
		return
	}
	g.detector.Debounce(appID, func() {
		g.evaluateLocked(appID, false)
	})
}

// ForceCheck runs a detection pass whose result is always acted on.
func (g *Gate) ForceCheck(appID string) {
	g.lock()
	defer g.unlock()
	if g.closed {
		return
	}
	g.evaluateLocked(appID, true)
}

// Poll is the fallback evaluation of the active app.
func (g *Gate) Poll() {
	g.lock()
	defer g.unlock()
	if g.closed {
		return
	}
	if active := g.tracker.Active(); active.AppID != "" {
		g.evaluateLocked(active.AppID, false)
	}
}

// ClearActive forces the active app to leave, e.g. when its process is gone.
func (g *Gate) ClearActive() {
	g.lock()
	defer g.unlock()
	if g.closed {
		return
	}
	g.tracker.Clear()
}

// ActiveApp returns the current selection.
func (g *Gate) ActiveApp() domain.ActiveAppSelection {
	g.lock()
	defer g.unlock()
	return g.tracker.Active()
}

// IsCooling reports whether appID is inside its cooldown at t.
// Derived from stored timestamps only, never from timers.
func (g *Gate) IsCooling(appID string, t time.Time) bool {
	g.lock()
	defer g.unlock()
	return g.state(appID).gate.CoolingAt(t)
}

// RequestDismiss starts the challenge for a shown overlay. Exempt apps are
// closed at once and get a zero session. An existing session is returned as is.
func (g *Gate) RequestDismiss(appID string) (domain.ChallengeSession, error) {
	g.lock()
	defer g.unlock()
	if g.closed {
		return domain.ChallengeSession{}, ErrGateClosed
	}

	app, ok := g.registry.Get(appID)
	if !ok {
		return domain.ChallengeSession{}, fmt.Errorf("%w: %s", policy.ErrUnknownApp, appID)
	}
	st := g.state(appID)
	if !st.phase.OverlayVisible() {
		return domain.ChallengeSession{}, fmt.Errorf("%w: %s is %s", ErrNotShown, appID, st.phase)
	}

	if app.ChallengeExempt {
		g.closeLocked(app, st)
		return domain.ChallengeSession{}, nil
	}
	if st.session != nil {
		return *st.session, nil
	}

	question, answer, err := g.challenges.New(g.cfg.Difficulty)
	if err != nil {
		return domain.ChallengeSession{}, fmt.Errorf("failed to create challenge: %w", err)
	}
	st.session = &domain.ChallengeSession{
		ID:        uuid.NewString(),
		AppID:     appID,
		Question:  question,
		Answer:    answer,
		Active:    true,
		CreatedAt: g.clock.Now(),
	}
	g.setPhase(appID, st, domain.PhaseChallenge)
	g.emit(domain.Intent{Kind: domain.IntentChallenge, AppID: appID, Question: question})
	return *st.session, nil
}

// SubmitAnswer checks an answer. A correct one closes the overlay; anything
// else, malformed input included, is wrong and a new question follows after
// WrongAnswerDelay. Answers during that delay are ignored. For exempt apps
// any answer closes.
func (g *Gate) SubmitAnswer(appID, answer string) (bool, error) {
	g.lock()
	defer g.unlock()
	if g.closed {
		return false, ErrGateClosed
	}

	app, ok := g.registry.Get(appID)
	if !ok {
		return false, fmt.Errorf("%w: %s", policy.ErrUnknownApp, appID)
	}
	st := g.state(appID)

	if app.ChallengeExempt && st.phase.OverlayVisible() {
		g.closeLocked(app, st)
		metrics.Answer(appID, metrics.AnswerCorrect)
		return true, nil
	}
	if st.phase != domain.PhaseChallenge || st.session == nil {
		return false, fmt.Errorf("%w: %s", ErrNoChallenge, appID)
	}
	if !st.session.Active {
		metrics.Answer(appID, metrics.AnswerIgnored)
		return false, nil
	}

	if n, ok := g.challenges.ParseAnswer(answer); ok && g.challenges.Verify(n, st.session.Answer) {
		metrics.Answer(appID, metrics.AnswerCorrect)
		g.closeLocked(app, st)
		return true, nil
	}

	metrics.Answer(appID, metrics.AnswerWrong)
	g.logger.Info("wrong challenge answer", zap.String("app", appID))
	st.session.Active = false
	g.scheduleRetryLocked(appID, st)
	return false, nil
}

// CancelChallenge abandons the challenge; the overlay stays up.
func (g *Gate) CancelChallenge(appID string) error {
	g.lock()
	defer g.unlock()
	if g.closed {
		return ErrGateClosed
	}

	st := g.state(appID)
	if st.phase != domain.PhaseChallenge {
		return fmt.Errorf("%w: %s", ErrNoChallenge, appID)
	}
	g.discardSession(st)
	g.setPhase(appID, st, domain.PhaseShown)
	return nil
}

// SetConfiguredInterval selects a tier. Choosing after a close is a fresh
// grant: that close will not revert it.
func (g *Gate) SetConfiguredInterval(appID string, d time.Duration) error {
	g.lock()
	defer g.unlock()

	if _, ok := g.registry.Get(appID); !ok {
		return fmt.Errorf("%w: %s", policy.ErrUnknownApp, appID)
	}
	if err := g.intervals.SetConfiguredInterval(appID, d); err != nil {
		return err
	}

	st := g.state(appID)
	st.gate.ConfiguredInterval = d
	if !st.gate.LastCloseTime.IsZero() {
		if err := g.states.MarkReverted(appID, st.gate.LastCloseTime); err != nil {
			g.logger.Warn("failed to mark grant", zap.String("app", appID), zap.Error(err))
		}
	}
	return nil
}

// SetRelaxedQuota edits an app's daily quota and announces what is left.
func (g *Gate) SetRelaxedQuota(appID string, quota int) error {
	g.lock()
	defer g.unlock()

	if err := g.registry.SetQuota(appID, quota); err != nil {
		return err
	}
	g.emitQuotaLocked(appID)
	return nil
}

// RefreshQuotas announces every app's remaining relaxed quota, e.g. after midnight.
func (g *Gate) RefreshQuotas() {
	g.lock()
	defer g.unlock()
	if g.closed {
		return
	}
	now := g.clock.Now()
	for _, app := range g.registry.GetAll() {
		st := g.state(app.ID)
		st.gate.RelaxedCloseCount = g.intervals.RelaxedCloseCount(app.ID, now)
		g.emitQuotaLocked(app.ID)
	}
}

// AppStatus returns the status of one app.
func (g *Gate) AppStatus(appID string) (AppStatus, error) {
	g.lock()
	defer g.unlock()

	app, ok := g.registry.Get(appID)
	if !ok {
		return AppStatus{}, fmt.Errorf("%w: %s", policy.ErrUnknownApp, appID)
	}
	return g.statusLocked(app), nil
}

// Status returns every registered app's status, sorted by ID.
func (g *Gate) Status() []AppStatus {
	g.lock()
	defer g.unlock()

	apps := g.registry.GetAll()
	out := make([]AppStatus, 0, len(apps))
	for _, app := range apps {
		out = append(out, g.statusLocked(app))
	}
	return out
}

// Close stops all timers and waits for probes in flight.
func (g *Gate) Close() {
	g.lock()
	if g.closed {
		g.unlock()
		return
	}
	g.closed = true
	g.tracker.Stop()
	g.detector.Stop()
	g.scheduler.Stop()
	for _, st := range g.apps {
		g.discardSession(st)
	}
	g.unlock()

	g.wg.Wait()
}

// state returns the record for appID, rehydrating it on first use.
func (g *Gate) state(appID string) *appState {
	st, ok := g.apps[appID]
	if !ok {
		st = &appState{
			gate:  g.states.Load(appID, g.clock.Now()),
			phase: domain.PhaseIdle,
		}
		g.apps[appID] = st
	}
	return st
}

// evaluateLocked runs a detection pass for appID if it is the active app.
func (g *Gate) evaluateLocked(appID string, forced bool) {
	if !g.tracker.Active().IsActive(appID) {
		return
	}
	app, ok := g.registry.Get(appID)
	if !ok {
		return
	}
	st := g.state(appID)
	now := g.clock.Now()

	if st.gate.CoolingAt(now) {
		// No probe while cooling; make sure a wake is armed.
		if st.phase != domain.PhaseCooling {
			g.setPhase(appID, st, domain.PhaseCooling)
		}
		if _, armed := g.scheduler.FireAt(appID); !armed {
			g.scheduler.Arm(appID, st.gate.HiddenUntil())
		}
		return
	}

	switch st.phase {
	case domain.PhaseCooling:
		st.forceNext = true
		g.scheduler.Cancel(appID)
		g.setPhase(appID, st, domain.PhaseEvaluating)
	case domain.PhaseIdle:
		g.setPhase(appID, st, domain.PhaseEvaluating)
	}
	forced = forced || st.forceNext

	if reading, ok := g.detector.Immediate(app); ok {
		metrics.ProbeRun(appID, metrics.ProbeExempt, 0)
		g.commitLocked(app, st, reading, forced)
		return
	}

	generation, ctx := g.detector.Begin(appID)
	g.jobs = append(g.jobs, func() {
		g.runProbe(ctx, app, generation, forced)
	})
}

// runProbe runs outside the lock and commits only the newest run.
func (g *Gate) runProbe(ctx context.Context, app domain.MonitoredApp, generation uint64, forced bool) {
	started := time.Now()
	reading, err := g.detector.Probe(ctx, app)
	elapsed := time.Since(started)

	g.lock()
	defer g.unlock()

	if g.closed || !g.detector.Finish(app.ID, generation) {
		metrics.ProbeRun(app.ID, metrics.ProbeStale, elapsed)
		return
	}
	if err != nil {
		metrics.ProbeRun(app.ID, metrics.ProbeError, elapsed)
		g.logger.Debug("probe failed, keeping previous state",
			zap.String("app", app.ID),
			zap.Error(err))
		return
	}
	if reading == domain.InterfaceTarget {
		metrics.ProbeRun(app.ID, metrics.ProbeTarget, elapsed)
	} else {
		metrics.ProbeRun(app.ID, metrics.ProbeNotTarget, elapsed)
	}

	if !g.tracker.Active().IsActive(app.ID) {
		return
	}
	st := g.state(app.ID)
	if st.gate.CoolingAt(g.clock.Now()) {
		return // closed while probing
	}
	g.commitLocked(app, st, reading, forced || st.forceNext)
}

// commitLocked acts on a reading if it changed or the pass was forced.
func (g *Gate) commitLocked(app domain.MonitoredApp, st *appState, reading domain.InterfaceState, forced bool) {
	if reading == st.gate.InterfaceState && !forced {
		return
	}
	st.forceNext = false
	st.gate.InterfaceState = reading

	switch reading {
	case domain.InterfaceTarget:
		if !st.phase.OverlayVisible() {
			g.showLocked(app, st)
		}
	case domain.InterfaceNotTarget:
		if st.phase.OverlayVisible() {
			g.discardSession(st)
			g.emit(domain.Intent{Kind: domain.IntentHide, AppID: app.ID})
		}
		g.setPhase(app.ID, st, domain.PhaseEvaluating)
	}
}

// showLocked starts a new locking episode.
func (g *Gate) showLocked(app domain.MonitoredApp, st *appState) {
	g.revertLocked(app.ID, st)
	g.setPhase(app.ID, st, domain.PhaseShown)
	g.emit(domain.Intent{
		Kind:      domain.IntentShow,
		AppID:     app.ID,
		Remaining: g.intervals.RelaxedQuotaRemaining(app, g.clock.Now()),
	})
}

// leaveLocked handles a genuine leave: timestamps stay, everything else resets.
func (g *Gate) leaveLocked(appID string) {
	st := g.state(appID)
	st.gate.InterfaceState = domain.InterfaceUnknown
	st.forceNext = false
	g.detector.Cancel(appID)
	g.scheduler.Cancel(appID)
	if st.phase.OverlayVisible() {
		g.emit(domain.Intent{Kind: domain.IntentHide, AppID: appID})
	}
	g.discardSession(st)
	g.setPhase(appID, st, domain.PhaseIdle)
}

// wakeLocked is the CooldownScheduler callback.
func (g *Gate) wakeLocked(appID string) {
	metrics.WakeFired()
	if _, ok := g.registry.Get(appID); !ok {
		return
	}
	g.revertLocked(appID, g.state(appID))
	g.evaluateLocked(appID, true)
}

func (g *Gate) scheduleRetryLocked(appID string, st *appState) {
	session := st.session
	st.retry = g.serial.AfterFunc(g.cfg.WrongAnswerDelay, func() {
		if st.session != session {
			return
		}
		st.retry = nil
		question, answer, err := g.challenges.New(g.cfg.Difficulty)
		if err != nil {
			g.logger.Error("failed to regenerate challenge", zap.String("app", appID), zap.Error(err))
			return
		}
		session.Question = question
		session.Answer = answer
		session.Active = true
		session.CreatedAt = g.clock.Now()
		g.emit(domain.Intent{Kind: domain.IntentChallenge, AppID: appID, Question: question})
	})
}

func (g *Gate) discardSession(st *appState) {
	if st.retry != nil {
		st.retry.Stop()
		st.retry = nil
	}
	st.session = nil
}

func (g *Gate) setPhase(appID string, st *appState, phase domain.GatePhase) {
	if st.phase == phase {
		return
	}
	g.logger.Debug("phase change",
		zap.String("app", appID),
		zap.String("from", string(st.phase)),
		zap.String("to", string(phase)))
	st.phase = phase
	metrics.Transition(appID, string(phase))
}

func (g *Gate) emit(intent domain.Intent) {
	if intent.At.IsZero() {
		intent.At = g.clock.Now()
	}
	if g.sink != nil {
		g.sink.Emit(intent)
	}
}

func (g *Gate) emitQuotaLocked(appID string) {
	app, ok := g.registry.Get(appID)
	if !ok {
		return
	}
	g.emit(domain.Intent{
		Kind:      domain.IntentQuota,
		AppID:     appID,
		Remaining: g.intervals.RelaxedQuotaRemaining(app, g.clock.Now()),
	})
}

func (g *Gate) statusLocked(app domain.MonitoredApp) AppStatus {
	st := g.state(app.ID)
	now := g.clock.Now()
	status := AppStatus{
		App:                app,
		Phase:              st.phase,
		Interface:          st.gate.InterfaceState,
		Active:             g.tracker.Active().IsActive(app.ID),
		Cooling:            st.gate.CoolingAt(now),
		ConfiguredInterval: g.intervals.GetConfiguredInterval(app.ID),
		LastCloseTime:      st.gate.LastCloseTime,
		LastCloseInterval:  st.gate.LastCloseInterval,
		HiddenUntil:        st.gate.HiddenUntil(),
		RelaxedUsed:        g.intervals.RelaxedCloseCount(app.ID, now),
		RelaxedRemaining:   g.intervals.RelaxedQuotaRemaining(app, now),
		RelaxedCountDate:   g.intervals.RelaxedCountDate(app.ID),
	}
	if st.session != nil && st.session.Active {
		status.Question = st.session.Question
	}
	return status
}
