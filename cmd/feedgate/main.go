// Package main is the CLI entry point for feedgate.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/feedgate/internal/config"
	"github.com/eliteGoblin/focusd/feedgate/internal/daemon"
	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/infra"
	"github.com/eliteGoblin/focusd/feedgate/internal/metrics"
	"github.com/eliteGoblin/focusd/feedgate/internal/policy"
	"github.com/eliteGoblin/focusd/feedgate/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "feedgate",
	Short: "Feed gate - puts a cooldown between you and short-video feeds",
	Long: `feedgate watches which app is in the foreground and whether its
short-video feed is on screen. When it is, an overlay is requested; dismissing
it takes an arithmetic challenge and buys a cooldown from the tier menu.

The engine reads signals as JSON lines on stdin and writes overlay intents
as JSON lines on stdout.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gate engine",
	Long: `Runs the gate engine in the foreground until interrupted.

Signals are read from stdin, one JSON object per line:
  {"type":"foreground","app":"com.google.android.youtube","at":"2026-03-10T12:00:00Z"}
  {"type":"content","app":"com.google.android.youtube"}
  {"type":"dismiss","app":"com.google.android.youtube"}
  {"type":"answer","app":"com.google.android.youtube","answer":"42"}

Intents (show, hide, challenge, quota) are written to stdout.`,
	RunE: runEngine,
}

var ephemeral bool

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/feedgate/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	runCmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep gate state in memory only")

	rootCmd.AddCommand(runCmd)
	addCommands(rootCmd)
}

func initConfig() {
	// Defaults first so they apply without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FEEDGATE")
	// FEEDGATE_ENGINE_DEBOUNCE_MS for engine.debounce_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine
	_ = viper.ReadInConfig()
}

// stack is the state shared by every command: the store and the policies over it.
type stack struct {
	cfg       *config.Config
	execMode  *infra.ExecModeConfig
	dataDir   string
	store     domain.ConfigStore
	registry  *policy.Registry
	intervals *policy.IntervalPolicy
	close     func() error
}

// openStack loads config, opens the store and loads the registry.
func openStack(logger *zap.Logger, memoryOnly bool) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	execMode := infra.DetectExecMode()
	s := &stack{
		cfg:      cfg,
		execMode: execMode,
		dataDir:  cfg.Store.DataDir,
		close:    func() error { return nil },
	}
	if s.dataDir == "" {
		s.dataDir = execMode.DataDir
	}

	if memoryOnly || !cfg.Store.Encrypted {
		logger.Info("gate state is kept in memory only")
		s.store = infra.NewMemoryStore()
	} else {
		store, err := infra.OpenEncryptedStore(s.dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open gate store: %w", err)
		}
		logger.Debug("opened gate store", zap.String("path", store.Path()))
		s.store = store
		s.close = store.Close
	}

	s.registry = policy.NewRegistry()
	if err := s.registry.Load(s.store); err != nil {
		// Built-ins still work; custom apps are unavailable until fixed.
		logger.Warn("failed to load custom apps", zap.Error(err))
	}

	intervals, err := policy.NewIntervalPolicy(s.store, cfg.Tiers.Policy(), logger)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	s.intervals = intervals
	return s, nil
}

// newGate builds a gate over the stack. probe and sink may be nil.
func (s *stack) newGate(logger *zap.Logger, hostApp string, probe domain.TextProbe, sink domain.IntentSink) *usecase.Gate {
	engine := s.cfg.Engine
	return usecase.NewGate(usecase.GateConfig{
		Tracker: usecase.TrackerConfig{
			HostApp:         hostApp,
			IgnoredApps:     engine.IgnoredApps,
			IgnoredPatterns: engine.IgnoredPatterns,
			FlapWindow:      engine.FlapWindow(),
		},
		Detector: usecase.DetectorConfig{
			Debounce:     engine.Debounce(),
			MaxWait:      engine.MaxWait(),
			ProbeTimeout: engine.ProbeTimeout(),
		},
		Difficulty:       s.cfg.Challenge.Difficulty(),
		WrongAnswerDelay: engine.WrongAnswerDelay(),
	}, usecase.GateDeps{
		Registry:  s.registry,
		Intervals: s.intervals,
		Store:     s.store,
		Probe:     probe,
		Sink:      sink,
		Clock:     infra.NewSystemClock(),
		Logger:    logger,
	})
}

func runEngine(cmd *cobra.Command, args []string) error {
	// Viper is initialised by now, so the log settings are readable.
	logger := createLogger(viper.GetString("logging.level"), viper.GetString("logging.file"))
	defer func() { _ = logger.Sync() }()

	s, err := openStack(logger, ephemeral)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() { _ = s.close() }()

	pm := infra.NewProcessManager()
	instances := infra.NewFileEngineRegistry(s.dataDir, pm)
	if err := instances.Register(domain.EngineEntry{
		PID:     pm.GetCurrentPID(),
		Version: Version,
		Mode:    string(s.execMode.Mode),
	}); err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer func() { _ = instances.Release(pm.GetCurrentPID()) }()

	hostApp := s.cfg.Engine.HostApp
	if hostApp == "" {
		hostApp = infra.HostAppID(pm)
	}
	snapshotDir := s.cfg.Probe.SnapshotDir
	if snapshotDir == "" {
		snapshotDir = filepath.Join(s.dataDir, "screen")
	}

	sink := infra.NewJSONLSink(os.Stdout, logger)
	gate := s.newGate(logger, hostApp, infra.NewSnapshotProbe(snapshotDir), sink)
	defer gate.Close()

	watcher := daemon.NewWatcher(daemon.WatcherConfig{
		PollInterval:      s.cfg.Engine.PollInterval(),
		LivenessInterval:  s.cfg.Engine.LivenessInterval(),
		HeartbeatInterval: daemon.DefaultWatcherConfig().HeartbeatInterval,
	}, gate, s.registry, pm, instances, logger)
	rollover := daemon.NewRollover(gate, infra.NewSystemClock(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("feedgate started",
		zap.String("version", Version),
		zap.String("mode", string(s.execMode.Mode)),
		zap.String("host_app", hostApp),
		zap.String("snapshot_dir", snapshotDir),
		zap.Int("apps", len(s.registry.List())))

	// The stdin reader blocks in Read, so it stays outside the group.
	signals := make(chan domain.Signal, 64)
	go func() {
		defer close(signals)
		if err := infra.ReadSignals(ctx, os.Stdin, signals, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("signal reader stopped", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sink.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx, signals) })
	g.Go(func() error { return rollover.Run(gctx) })

	if addr := s.cfg.Metrics.Listen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("metrics endpoint listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Announce quotas so the overlay starts with current numbers.
	gate.RefreshQuotas()

	err = g.Wait()
	logger.Info("feedgate stopping")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// createLogger builds the daemon logger: JSON to the log file, falling back to stderr.
func createLogger(level, file string) *zap.Logger {
	if file == "" {
		file = infra.DetectExecMode().LogPath
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{file}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		// Stdout carries intents, so the fallback logs to stderr.
		cfg.OutputPaths = []string{"stderr"}
		if logger, err = cfg.Build(); err != nil {
			logger = zap.NewNop()
		}
	}
	return logger
}

// commandLogger is the logger for one-shot commands.
func commandLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
