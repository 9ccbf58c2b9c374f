// Package config loads feedgate settings through viper.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/policy"
)

// Config holds all feedgate settings.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Tiers     TiersConfig     `mapstructure:"tiers"`
	Challenge ChallengeConfig `mapstructure:"challenge"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Probe     ProbeConfig     `mapstructure:"probe"`
}

// EngineConfig controls signal handling and timing of the gate.
type EngineConfig struct {
	DebounceMs         int      `mapstructure:"debounce_ms"`
	MaxWaitMs          int      `mapstructure:"max_wait_ms"`
	FlapWindowMs       int      `mapstructure:"flap_window_ms"`
	PollIntervalMs     int      `mapstructure:"poll_interval_ms"`
	LivenessIntervalMs int      `mapstructure:"liveness_interval_ms"` // 0 disables the process check
	ProbeTimeoutMs     int      `mapstructure:"probe_timeout_ms"`
	WrongAnswerDelayMs int      `mapstructure:"wrong_answer_delay_ms"`
	HostApp            string   `mapstructure:"host_app"` // Empty means the current process name
	IgnoredApps        []string `mapstructure:"ignored_apps"`
	IgnoredPatterns    []string `mapstructure:"ignored_patterns"`
}

// TiersConfig holds the cooldown menus in seconds.
type TiersConfig struct {
	StrictSeconds       []int `mapstructure:"strict_seconds"`
	RelaxedSeconds      []int `mapstructure:"relaxed_seconds"`
	EnforceRelaxedQuota bool  `mapstructure:"enforce_relaxed_quota"`
}

// ChallengeConfig sets operand digits per operator. 0 disables an operator.
type ChallengeConfig struct {
	AdditionDigits       int `mapstructure:"addition_digits"`
	SubtractionDigits    int `mapstructure:"subtraction_digits"`
	MultiplicationDigits int `mapstructure:"multiplication_digits"`
}

// StoreConfig selects where gate state lives.
type StoreConfig struct {
	DataDir   string `mapstructure:"data_dir"`  // Empty means the exec-mode default
	Encrypted bool   `mapstructure:"encrypted"` // false keeps state in memory only
}

// LoggingConfig controls the daemon log.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // Empty means the exec-mode default
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // Empty disables the endpoint
}

// ProbeConfig locates the screen-text snapshots.
type ProbeConfig struct {
	SnapshotDir string `mapstructure:"snapshot_dir"` // Empty means <data_dir>/screen
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			DebounceMs:         50,
			MaxWaitMs:          400,
			FlapWindowMs:       350,
			PollIntervalMs:     1000,
			LivenessIntervalMs: 5000,
			ProbeTimeoutMs:     2000,
			WrongAnswerDelayMs: 1000,
			IgnoredApps:        []string{},
			IgnoredPatterns:    []string{"inputmethod", "keyboard"},
		},
		Tiers: TiersConfig{
			StrictSeconds:  []int{30, 60, 120, 300},
			RelaxedSeconds: []int{600, 1200, 1800, 3600},
		},
		Challenge: ChallengeConfig{
			AdditionDigits:       3,
			SubtractionDigits:    3,
			MultiplicationDigits: 2,
		},
		Store: StoreConfig{
			Encrypted: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Debounce returns the content quiet window.
func (c *EngineConfig) Debounce() time.Duration { return ms(c.DebounceMs) }

// MaxWait returns the longest a content burst may delay detection.
func (c *EngineConfig) MaxWait() time.Duration { return ms(c.MaxWaitMs) }

// FlapWindow returns how long a leave from the target app is held back.
func (c *EngineConfig) FlapWindow() time.Duration { return ms(c.FlapWindowMs) }

// PollInterval returns the fallback detection period.
func (c *EngineConfig) PollInterval() time.Duration { return ms(c.PollIntervalMs) }

// LivenessInterval returns the process check period (0 means disabled).
func (c *EngineConfig) LivenessInterval() time.Duration { return ms(c.LivenessIntervalMs) }

// ProbeTimeout returns the per-probe deadline.
func (c *EngineConfig) ProbeTimeout() time.Duration { return ms(c.ProbeTimeoutMs) }

// WrongAnswerDelay returns the pause before a replacement question.
func (c *EngineConfig) WrongAnswerDelay() time.Duration { return ms(c.WrongAnswerDelayMs) }

// Policy converts the menus to policy tiers.
func (c *TiersConfig) Policy() policy.Tiers {
	return policy.Tiers{
		Strict:              seconds(c.StrictSeconds),
		Relaxed:             seconds(c.RelaxedSeconds),
		EnforceRelaxedQuota: c.EnforceRelaxedQuota,
	}
}

// Difficulty converts the challenge settings to a domain.Difficulty.
func (c *ChallengeConfig) Difficulty() domain.Difficulty {
	return domain.Difficulty{
		AdditionDigits:       c.AdditionDigits,
		SubtractionDigits:    c.SubtractionDigits,
		MultiplicationDigits: c.MultiplicationDigits,
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func seconds(in []int) []time.Duration {
	out := make([]time.Duration, 0, len(in))
	for _, s := range in {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Engine defaults
	viper.SetDefault("engine.debounce_ms", defaults.Engine.DebounceMs)
	viper.SetDefault("engine.max_wait_ms", defaults.Engine.MaxWaitMs)
	viper.SetDefault("engine.flap_window_ms", defaults.Engine.FlapWindowMs)
	viper.SetDefault("engine.poll_interval_ms", defaults.Engine.PollIntervalMs)
	viper.SetDefault("engine.liveness_interval_ms", defaults.Engine.LivenessIntervalMs)
	viper.SetDefault("engine.probe_timeout_ms", defaults.Engine.ProbeTimeoutMs)
	viper.SetDefault("engine.wrong_answer_delay_ms", defaults.Engine.WrongAnswerDelayMs)
	viper.SetDefault("engine.host_app", defaults.Engine.HostApp)
	viper.SetDefault("engine.ignored_apps", defaults.Engine.IgnoredApps)
	viper.SetDefault("engine.ignored_patterns", defaults.Engine.IgnoredPatterns)

	// Tier defaults
	viper.SetDefault("tiers.strict_seconds", defaults.Tiers.StrictSeconds)
	viper.SetDefault("tiers.relaxed_seconds", defaults.Tiers.RelaxedSeconds)
	viper.SetDefault("tiers.enforce_relaxed_quota", defaults.Tiers.EnforceRelaxedQuota)

	// Challenge defaults
	viper.SetDefault("challenge.addition_digits", defaults.Challenge.AdditionDigits)
	viper.SetDefault("challenge.subtraction_digits", defaults.Challenge.SubtractionDigits)
	viper.SetDefault("challenge.multiplication_digits", defaults.Challenge.MultiplicationDigits)

	viper.SetDefault("store.data_dir", defaults.Store.DataDir)
	viper.SetDefault("store.encrypted", defaults.Store.Encrypted)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)

	viper.SetDefault("metrics.listen", defaults.Metrics.Listen)
	viper.SetDefault("probe.snapshot_dir", defaults.Probe.SnapshotDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "feedgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".feedgate"
	}
	return filepath.Join(home, ".config", "feedgate")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
