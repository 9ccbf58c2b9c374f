package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "engine.debounce_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateTiers()...)
	errs = append(errs, c.validateChallenge()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validateEngine() []ValidationError {
	var errs []ValidationError
	positive := []struct {
		field string
		value int
	}{
		{"engine.debounce_ms", c.Engine.DebounceMs},
		{"engine.max_wait_ms", c.Engine.MaxWaitMs},
		{"engine.flap_window_ms", c.Engine.FlapWindowMs},
		{"engine.poll_interval_ms", c.Engine.PollIntervalMs},
		{"engine.probe_timeout_ms", c.Engine.ProbeTimeoutMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{Field: p.field, Value: p.value, Message: "must be positive"})
		}
	}
	if c.Engine.MaxWaitMs < c.Engine.DebounceMs {
		errs = append(errs, ValidationError{
			Field:   "engine.max_wait_ms",
			Value:   c.Engine.MaxWaitMs,
			Message: fmt.Sprintf("must be at least engine.debounce_ms (%d)", c.Engine.DebounceMs),
		})
	}
	if c.Engine.LivenessIntervalMs < 0 {
		errs = append(errs, ValidationError{Field: "engine.liveness_interval_ms", Value: c.Engine.LivenessIntervalMs, Message: "must not be negative"})
	}
	if c.Engine.WrongAnswerDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "engine.wrong_answer_delay_ms", Value: c.Engine.WrongAnswerDelayMs, Message: "must not be negative"})
	}
	return errs
}

func (c *Config) validateTiers() []ValidationError {
	if err := c.Tiers.Policy().Validate(); err != nil {
		return []ValidationError{{Field: "tiers", Value: c.Tiers.StrictSeconds, Message: err.Error()}}
	}
	return nil
}

func (c *Config) validateChallenge() []ValidationError {
	var errs []ValidationError
	digits := []struct {
		field string
		value int
	}{
		{"challenge.addition_digits", c.Challenge.AdditionDigits},
		{"challenge.subtraction_digits", c.Challenge.SubtractionDigits},
		{"challenge.multiplication_digits", c.Challenge.MultiplicationDigits},
	}
	enabled := 0
	for _, d := range digits {
		if d.value < 0 || d.value > 9 {
			errs = append(errs, ValidationError{Field: d.field, Value: d.value, Message: "must be between 0 and 9"})
		}
		if d.value > 0 {
			enabled++
		}
	}
	if enabled == 0 {
		errs = append(errs, ValidationError{Field: "challenge", Value: 0, Message: "at least one operator must be enabled"})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}
