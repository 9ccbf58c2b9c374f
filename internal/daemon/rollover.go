package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// QuotaRefresher re-announces relaxed quotas.
type QuotaRefresher interface {
	RefreshQuotas()
}

// Rollover refreshes quota announcements at every local midnight, when the
// relaxed counters reset.
type Rollover struct {
	refresher QuotaRefresher
	clock     domain.Clock
	logger    *zap.Logger
}

// NewRollover creates a new rollover loop.
func NewRollover(refresher QuotaRefresher, clock domain.Clock, logger *zap.Logger) *Rollover {
	return &Rollover{
		refresher: refresher,
		clock:     clock,
		logger:    logger,
	}
}

// Run blocks until ctx is canceled.
func (r *Rollover) Run(ctx context.Context) error {
	fired := make(chan struct{}, 1)

	for {
		now := r.clock.Now()
		next := NextMidnight(now)
		timer := r.clock.AfterFunc(next.Sub(now), func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
		r.logger.Debug("next quota rollover", zap.Time("at", next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case <-fired:
			r.logger.Info("day rolled over, refreshing quotas")
			r.refresher.RefreshQuotas()
		}
	}
}

// NextMidnight returns the first local midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
