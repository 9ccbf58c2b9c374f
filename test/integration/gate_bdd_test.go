//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/daemon"
	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/infra"
	"github.com/eliteGoblin/focusd/feedgate/internal/policy"
	"github.com/eliteGoblin/focusd/feedgate/internal/usecase"
	"github.com/eliteGoblin/focusd/feedgate/test/fixtures"
)

const youtube = "com.google.android.youtube"

// engine is one gate process over an on-disk encrypted store.
type engine struct {
	store     *infra.EncryptedStore
	registry  *policy.Registry
	intervals *policy.IntervalPolicy
	gate      *usecase.Gate
}

func startEngine(dataDir string, screen *fixtures.FakeScreen, clock *fixtures.FakeClock, sink domain.IntentSink) *engine {
	store, err := infra.OpenEncryptedStore(dataDir)
	Expect(err).NotTo(HaveOccurred())

	registry := policy.NewRegistry()
	Expect(registry.Load(store)).To(Succeed())

	intervals, err := policy.NewIntervalPolicy(store, policy.DefaultTiers(), zap.NewNop())
	Expect(err).NotTo(HaveOccurred())

	gate := usecase.NewGate(usecase.GateConfig{
		Tracker: usecase.TrackerConfig{
			HostApp:         "feedgate",
			IgnoredPatterns: []string{"inputmethod", "keyboard"},
			FlapWindow:      350 * time.Millisecond,
		},
		Detector: usecase.DetectorConfig{
			Debounce:     50 * time.Millisecond,
			MaxWait:      400 * time.Millisecond,
			ProbeTimeout: 2 * time.Second,
		},
		Difficulty:       domain.Difficulty{AdditionDigits: 2, SubtractionDigits: 2},
		WrongAnswerDelay: time.Second,
		SyncProbes:       true,
	}, usecase.GateDeps{
		Registry:  registry,
		Intervals: intervals,
		Store:     store,
		Probe:     infra.NewSnapshotProbe(screen.Dir),
		Sink:      sink,
		Clock:     clock,
		Logger:    zap.NewNop(),
	})

	return &engine{store: store, registry: registry, intervals: intervals, gate: gate}
}

func (e *engine) stop() {
	e.gate.Close()
	Expect(e.store.Close()).To(Succeed())
}

func (e *engine) phase(appID string) domain.GatePhase {
	st, err := e.gate.AppStatus(appID)
	Expect(err).NotTo(HaveOccurred())
	return st.Phase
}

func (e *engine) solve(appID string) {
	session, err := e.gate.RequestDismiss(appID)
	Expect(err).NotTo(HaveOccurred())
	ok, err := e.gate.SubmitAnswer(appID, strconv.Itoa(session.Answer))
	Expect(err).NotTo(HaveOccurred())
	Expect(ok).To(BeTrue())
}

var _ = Describe("Gate over an encrypted store", func() {
	var (
		tmpDir string
		screen *fixtures.FakeScreen
		clock  *fixtures.FakeClock
		sink   *fixtures.RecordingSink
		start  time.Time
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "feedgate-integration-*")
		Expect(err).NotTo(HaveOccurred())

		screen, err = fixtures.NewFakeScreen(filepath.Join(tmpDir, "screen"))
		Expect(err).NotTo(HaveOccurred())

		start = time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
		clock = fixtures.NewFakeClock(start)
		sink = fixtures.NewRecordingSink()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("detection from screen snapshots", func() {
		It("shows the overlay only while the feed text is on screen", func() {
			e := startEngine(tmpDir, screen, clock, sink)
			defer e.stop()

			Expect(screen.Show(youtube, "Home\nSubscriptions\nLibrary")).To(Succeed())
			e.gate.OnForegroundChanged(youtube, clock.Now())
			Expect(e.phase(youtube)).To(Equal(domain.PhaseEvaluating))

			Expect(screen.Show(youtube, "Home\nSHORTS\nSubscriptions")).To(Succeed())
			e.gate.OnContentChanged(youtube, clock.Now())
			clock.Advance(100 * time.Millisecond)
			Expect(e.phase(youtube)).To(Equal(domain.PhaseShown))

			Expect(screen.Show(youtube, "Home")).To(Succeed())
			e.gate.OnContentChanged(youtube, clock.Now())
			clock.Advance(100 * time.Millisecond)
			Expect(e.phase(youtube)).To(Equal(domain.PhaseEvaluating))
			Expect(sink.Kinds(youtube)).To(Equal([]domain.IntentKind{domain.IntentShow, domain.IntentHide}))
		})

		It("keeps its state when the snapshot is missing", func() {
			e := startEngine(tmpDir, screen, clock, sink)
			defer e.stop()

			Expect(screen.Show(youtube, "Shorts")).To(Succeed())
			e.gate.OnForegroundChanged(youtube, clock.Now())
			Expect(e.phase(youtube)).To(Equal(domain.PhaseShown))

			Expect(screen.Clear(youtube)).To(Succeed())
			e.gate.ForceCheck(youtube)
			Expect(e.phase(youtube)).To(Equal(domain.PhaseShown))
		})
	})

	Describe("restart", func() {
		Context("while cooling down", func() {
			It("stays hidden until the stored cooldown ends", func() {
				Expect(screen.Show(youtube, "Shorts")).To(Succeed())

				e := startEngine(tmpDir, screen, clock, sink)
				Expect(e.gate.SetConfiguredInterval(youtube, 2*time.Minute)).To(Succeed())
				e.gate.OnForegroundChanged(youtube, clock.Now())
				e.solve(youtube)
				e.stop()

				clock.Set(start.Add(time.Minute))
				e = startEngine(tmpDir, screen, clock, sink)
				defer e.stop()

				e.gate.OnForegroundChanged(youtube, clock.Now())
				Expect(e.phase(youtube)).To(Equal(domain.PhaseCooling))
				Expect(e.gate.IsCooling(youtube, clock.Now())).To(BeTrue())

				clock.Advance(time.Minute)
				Expect(e.phase(youtube)).To(Equal(domain.PhaseShown))
			})
		})

		Context("after a relaxed dismissal", func() {
			It("reverts to the strict maximum and keeps the day's count", func() {
				Expect(screen.Show(youtube, "Shorts")).To(Succeed())

				e := startEngine(tmpDir, screen, clock, sink)
				Expect(e.gate.SetConfiguredInterval(youtube, 10*time.Minute)).To(Succeed())
				e.gate.OnForegroundChanged(youtube, clock.Now())
				e.solve(youtube)
				e.stop()

				clock.Set(start.Add(time.Hour))
				e = startEngine(tmpDir, screen, clock, sink)
				defer e.stop()

				st, err := e.gate.AppStatus(youtube)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.RelaxedUsed).To(Equal(1))
				Expect(st.RelaxedRemaining).To(Equal(policy.DefaultRelaxedQuota - 1))

				e.gate.OnForegroundChanged(youtube, clock.Now())
				Expect(e.phase(youtube)).To(Equal(domain.PhaseShown))

				st, err = e.gate.AppStatus(youtube)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.ConfiguredInterval).To(Equal(5 * time.Minute))
			})
		})

		It("keeps user-added apps and their quotas", func() {
			e := startEngine(tmpDir, screen, clock, sink)
			Expect(e.registry.AddCustom(domain.MonitoredApp{
				ID:                "com.example.clips",
				TargetPhrases:     []string{"Clips"},
				DailyRelaxedQuota: 1,
			})).To(Succeed())
			Expect(e.gate.SetRelaxedQuota(youtube, 5)).To(Succeed())
			e.stop()

			e = startEngine(tmpDir, screen, clock, sink)
			defer e.stop()

			app, ok := e.registry.Get("com.example.clips")
			Expect(ok).To(BeTrue())
			Expect(app.Provenance).To(Equal(domain.ProvenanceCustom))

			yt, ok := e.registry.Get(youtube)
			Expect(ok).To(BeTrue())
			Expect(yt.DailyRelaxedQuota).To(Equal(5))

			Expect(screen.Show("com.example.clips", "For you\nClips")).To(Succeed())
			e.gate.OnForegroundChanged("com.example.clips", clock.Now())
			Expect(e.phase("com.example.clips")).To(Equal(domain.PhaseShown))
		})
	})

	Describe("JSON lines transport", func() {
		It("turns a signal script into intents", func() {
			var out bytes.Buffer
			jsonSink := infra.NewJSONLSink(&out, zap.NewNop())
			e := startEngine(tmpDir, screen, clock, jsonSink)
			defer e.stop()
			Expect(screen.Show(youtube, "Shorts")).To(Succeed())

			script := strings.Join([]string{
				`# user opens YouTube on the Shorts tab`,
				`{"type":"foreground","app":"com.google.android.youtube"}`,
				`not json`,
				`{"type":"dismiss","app":"com.google.android.youtube"}`,
			}, "\n")
			signals := make(chan domain.Signal, 8)
			Expect(infra.ReadSignals(context.Background(), strings.NewReader(script), signals, zap.NewNop())).To(Succeed())
			close(signals)

			watcher := daemon.NewWatcher(daemon.DefaultWatcherConfig(), e.gate, e.registry, nil, nil, zap.NewNop())
			for sig := range signals {
				watcher.Dispatch(sig)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(jsonSink.Run(ctx)).To(Succeed())

			var kinds []domain.IntentKind
			scanner := bufio.NewScanner(&out)
			for scanner.Scan() {
				var intent domain.Intent
				Expect(json.Unmarshal(scanner.Bytes(), &intent)).To(Succeed())
				Expect(intent.AppID).To(Equal(youtube))
				kinds = append(kinds, intent.Kind)
			}
			Expect(kinds).To(Equal([]domain.IntentKind{domain.IntentShow, domain.IntentChallenge}))
		})
	})
})
