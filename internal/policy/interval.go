package policy

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// dateLayout is the format of relaxed-counter dates.
const dateLayout = "2006-01-02"

// DateKey returns the local calendar date used for daily quota accounting.
func DateKey(t time.Time) string {
	return t.Local().Format(dateLayout)
}

// IntervalPolicy resolves per-app cooldown tiers and tracks daily relaxed usage.
// Store read failures degrade to documented defaults: max strict tier, zero counts.
type IntervalPolicy struct {
	store   domain.ConfigStore
	strict  []time.Duration
	relaxed []time.Duration
	enforce bool
	logger  *zap.Logger
}

// NewIntervalPolicy creates a policy over the given tier menus.
func NewIntervalPolicy(store domain.ConfigStore, tiers Tiers, logger *zap.Logger) (*IntervalPolicy, error) {
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	return &IntervalPolicy{
		store:   store,
		strict:  sortedCopy(tiers.Strict),
		relaxed: sortedCopy(tiers.Relaxed),
		enforce: tiers.EnforceRelaxedQuota,
		logger:  logger,
	}, nil
}

// StrictTiers returns the strict menu in ascending order.
func (p *IntervalPolicy) StrictTiers() []time.Duration {
	return append([]time.Duration(nil), p.strict...)
}

// RelaxedTiers returns the relaxed menu in ascending order.
func (p *IntervalPolicy) RelaxedTiers() []time.Duration {
	return append([]time.Duration(nil), p.relaxed...)
}

// MaxStrictTier is the default tier and the reversion target after a relaxed close.
func (p *IntervalPolicy) MaxStrictTier() time.Duration {
	return p.strict[len(p.strict)-1]
}

// IsRelaxedTier reports whether d belongs to the relaxed menu.
func (p *IntervalPolicy) IsRelaxedTier(d time.Duration) bool {
	return contains(p.relaxed, d)
}

// IsStrictTier reports whether d belongs to the strict menu.
func (p *IntervalPolicy) IsStrictTier(d time.Duration) bool {
	return contains(p.strict, d)
}

// EnforcesQuota reports whether relaxed dismissals past the quota fall back to strict.
func (p *IntervalPolicy) EnforcesQuota() bool {
	return p.enforce
}

// GetConfiguredInterval returns the app's selected tier.
// Missing or off-menu values resolve to the max strict tier.
func (p *IntervalPolicy) GetConfiguredInterval(appID string) time.Duration {
	ms, ok, err := p.store.GetInt(KeyConfiguredInterval(appID))
	if err != nil {
		p.logger.Warn("failed to read configured interval, using default",
			zap.String("app", appID),
			zap.Error(err))
		return p.MaxStrictTier()
	}
	if !ok {
		return p.MaxStrictTier()
	}

	d := time.Duration(ms) * time.Millisecond
	if !p.IsStrictTier(d) && !p.IsRelaxedTier(d) {
		p.logger.Debug("stored interval not in menu, using default",
			zap.String("app", appID),
			zap.Duration("stored", d))
		return p.MaxStrictTier()
	}
	return d
}

// SetConfiguredInterval selects a tier for the app.
func (p *IntervalPolicy) SetConfiguredInterval(appID string, d time.Duration) error {
	if !p.IsStrictTier(d) && !p.IsRelaxedTier(d) {
		return fmt.Errorf("%w: %s", ErrUnknownTier, d)
	}
	return p.store.SetInt(KeyConfiguredInterval(appID), d.Milliseconds())
}

// RelaxedCloseCount returns today's relaxed dismissals.
// A counter stamped with another date reads as zero.
func (p *IntervalPolicy) RelaxedCloseCount(appID string, now time.Time) int {
	date, ok, err := p.store.GetString(keyRelaxedCountDate(appID))
	if err != nil || !ok || date != DateKey(now) {
		return 0
	}
	n, ok, err := p.store.GetInt(keyRelaxedCount(appID))
	if err != nil || !ok || n < 0 {
		return 0
	}
	return int(n)
}

// RelaxedCountDate returns the stored counter date, empty when unset.
func (p *IntervalPolicy) RelaxedCountDate(appID string) string {
	date, _, err := p.store.GetString(keyRelaxedCountDate(appID))
	if err != nil {
		return ""
	}
	return date
}

// RecordRelaxedClose bumps today's counter, resetting it first on a new day.
func (p *IntervalPolicy) RecordRelaxedClose(appID string, now time.Time) (int, error) {
	count := p.RelaxedCloseCount(appID, now) + 1
	// Count before date: a count left under an old date still reads as zero.
	if err := p.store.SetInt(keyRelaxedCount(appID), int64(count)); err != nil {
		return count - 1, fmt.Errorf("failed to write relaxed count: %w", err)
	}
	if err := p.store.SetString(keyRelaxedCountDate(appID), DateKey(now)); err != nil {
		return count - 1, fmt.Errorf("failed to write relaxed count date: %w", err)
	}
	return count, nil
}

// RelaxedQuotaRemaining is the number of relaxed dismissals left today.
// Advisory unless EnforcesQuota is set.
func (p *IntervalPolicy) RelaxedQuotaRemaining(app domain.MonitoredApp, now time.Time) int {
	remaining := app.DailyRelaxedQuota - p.RelaxedCloseCount(app.ID, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func contains(menu []time.Duration, d time.Duration) bool {
	for _, v := range menu {
		if v == d {
			return true
		}
	}
	return false
}
