// Package policy holds the monitored-app registry and the cooldown tier policy.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultRelaxedQuota is how many relaxed dismissals an app gets per day.
const DefaultRelaxedQuota = 3

var (
	ErrUnknownApp  = errors.New("unknown app")
	ErrBuiltinApp  = errors.New("built-in apps cannot be modified this way")
	ErrInvalidApp  = errors.New("invalid app definition")
	ErrUnknownTier = errors.New("interval is not in the tier menu")
)

// Tiers is the fixed, ordered menu of cooldown values.
type Tiers struct {
	Strict              []time.Duration
	Relaxed             []time.Duration
	EnforceRelaxedQuota bool // Hard quota enforcement; advisory when false
}

// DefaultTiers returns the built-in tier menus.
func DefaultTiers() Tiers {
	return Tiers{
		Strict: []time.Duration{
			30 * time.Second,
			time.Minute,
			2 * time.Minute,
			5 * time.Minute,
		},
		Relaxed: []time.Duration{
			10 * time.Minute,
			20 * time.Minute,
			30 * time.Minute,
			time.Hour,
		},
	}
}

// Validate checks that the menus are usable.
func (t Tiers) Validate() error {
	if len(t.Strict) == 0 {
		return fmt.Errorf("strict tier menu is empty")
	}
	seen := make(map[time.Duration]string)
	for _, d := range t.Strict {
		if d <= 0 {
			return fmt.Errorf("strict tier %s must be positive", d)
		}
		seen[d] = "strict"
	}
	for _, d := range t.Relaxed {
		if d <= 0 {
			return fmt.Errorf("relaxed tier %s must be positive", d)
		}
		if seen[d] == "strict" {
			return fmt.Errorf("tier %s is in both menus", d)
		}
	}
	return nil
}

func sortedCopy(in []time.Duration) []time.Duration {
	out := make([]time.Duration, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
