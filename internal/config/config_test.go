package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if got := cfg.Engine.Debounce(); got != 50*time.Millisecond {
		t.Errorf("Engine.Debounce() = %v, want 50ms", got)
	}
	if got := cfg.Engine.MaxWait(); got != 400*time.Millisecond {
		t.Errorf("Engine.MaxWait() = %v, want 400ms", got)
	}
	if got := cfg.Engine.FlapWindow(); got != 350*time.Millisecond {
		t.Errorf("Engine.FlapWindow() = %v, want 350ms", got)
	}
	if got := cfg.Engine.WrongAnswerDelay(); got != time.Second {
		t.Errorf("Engine.WrongAnswerDelay() = %v, want 1s", got)
	}
	if cfg.Tiers.EnforceRelaxedQuota {
		t.Error("Tiers.EnforceRelaxedQuota should be false by default")
	}
	if !cfg.Store.Encrypted {
		t.Error("Store.Encrypted should be true by default")
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() should validate, got %v", errs)
	}
}

func TestTiersConfig_Policy(t *testing.T) {
	cfg := Default()
	tiers := cfg.Tiers.Policy()

	want := []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute, 5 * time.Minute}
	if len(tiers.Strict) != len(want) {
		t.Fatalf("Strict = %v, want %v", tiers.Strict, want)
	}
	for i := range want {
		if tiers.Strict[i] != want[i] {
			t.Errorf("Strict[%d] = %v, want %v", i, tiers.Strict[i], want[i])
		}
	}
	if tiers.Relaxed[len(tiers.Relaxed)-1] != time.Hour {
		t.Errorf("largest relaxed tier = %v, want 1h", tiers.Relaxed[len(tiers.Relaxed)-1])
	}
}

func TestChallengeConfig_Difficulty(t *testing.T) {
	cfg := Default()
	d := cfg.Challenge.Difficulty()
	if d.AdditionDigits != 3 || d.SubtractionDigits != 3 || d.MultiplicationDigits != 2 {
		t.Errorf("Difficulty() = %+v", d)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "zero debounce",
			mutate:    func(c *Config) { c.Engine.DebounceMs = 0 },
			wantField: "engine.debounce_ms",
		},
		{
			name:      "max wait below debounce",
			mutate:    func(c *Config) { c.Engine.MaxWaitMs = 10 },
			wantField: "engine.max_wait_ms",
		},
		{
			name:      "negative liveness",
			mutate:    func(c *Config) { c.Engine.LivenessIntervalMs = -1 },
			wantField: "engine.liveness_interval_ms",
		},
		{
			name:      "empty strict menu",
			mutate:    func(c *Config) { c.Tiers.StrictSeconds = nil },
			wantField: "tiers",
		},
		{
			name:      "overlapping menus",
			mutate:    func(c *Config) { c.Tiers.RelaxedSeconds = []int{300} },
			wantField: "tiers",
		},
		{
			name: "all operators disabled",
			mutate: func(c *Config) {
				c.Challenge = ChallengeConfig{}
			},
			wantField: "challenge",
		},
		{
			name:      "too many digits",
			mutate:    func(c *Config) { c.Challenge.MultiplicationDigits = 12 },
			wantField: "challenge.multiplication_digits",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got := single.Error(); got != "a: bad (got: 1)" {
		t.Errorf("single.Error() = %q", got)
	}

	multi := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}, {Field: "b", Value: 2, Message: "worse"}}
	if !strings.HasPrefix(multi.Error(), "2 validation errors:") {
		t.Errorf("multi.Error() = %q", multi.Error())
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.FlapWindowMs != 350 {
		t.Errorf("Engine.FlapWindowMs = %d, want 350", cfg.Engine.FlapWindowMs)
	}
	if len(cfg.Engine.IgnoredPatterns) != 2 {
		t.Errorf("Engine.IgnoredPatterns = %v", cfg.Engine.IgnoredPatterns)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
tiers:
  strict_seconds: [15, 45]
  relaxed_seconds: [900]
  enforce_relaxed_quota: true
challenge:
  multiplication_digits: 0
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	t.Setenv("FEEDGATE_LOGGING_LEVEL", "debug")
	viper.SetEnvPrefix("FEEDGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tiers := cfg.Tiers.Policy()
	if len(tiers.Strict) != 2 || tiers.Strict[1] != 45*time.Second {
		t.Errorf("Strict = %v", tiers.Strict)
	}
	if !tiers.EnforceRelaxedQuota {
		t.Error("EnforceRelaxedQuota should come from the file")
	}
	if cfg.Challenge.MultiplicationDigits != 0 || cfg.Challenge.AdditionDigits != 3 {
		t.Errorf("Challenge = %+v", cfg.Challenge)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want env override", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("engine.debounce_ms", 0)

	_, err := Load()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Load() error = %v, want ValidationErrors", err)
	}
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/feedgate/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}
