package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/policy"
)

// GateStore persists the GateState fields that survive restarts.
// InterfaceState is never stored: it starts Unknown after every load.
type GateStore struct {
	store     domain.ConfigStore
	intervals *policy.IntervalPolicy
	logger    *zap.Logger
}

// NewGateStore creates a GateStore.
func NewGateStore(store domain.ConfigStore, intervals *policy.IntervalPolicy, logger *zap.Logger) *GateStore {
	return &GateStore{store: store, intervals: intervals, logger: logger}
}

// Load rehydrates an app's state. Read failures fall back to "never closed".
func (s *GateStore) Load(appID string, now time.Time) domain.GateState {
	st := domain.GateState{
		AppID:                 appID,
		ConfiguredInterval:    s.intervals.GetConfiguredInterval(appID),
		RelaxedCloseCount:     s.intervals.RelaxedCloseCount(appID, now),
		RelaxedCloseCountDate: s.intervals.RelaxedCountDate(appID),
		InterfaceState:        domain.InterfaceUnknown,
	}

	closedMs, ok := s.readInt(policy.KeyLastCloseTime(appID))
	if !ok || closedMs <= 0 {
		return st
	}
	intervalMs, ok := s.readInt(policy.KeyLastCloseInterval(appID))
	if !ok || intervalMs < 0 {
		return st
	}
	st.LastCloseTime = time.UnixMilli(closedMs)
	st.LastCloseInterval = time.Duration(intervalMs) * time.Millisecond
	return st
}

// SaveClose records a successful dismissal. The interval is written first so
// a partial write never yields a cooldown ending later than intended.
func (s *GateStore) SaveClose(appID string, at time.Time, interval time.Duration) error {
	if err := s.store.SetInt(policy.KeyLastCloseInterval(appID), interval.Milliseconds()); err != nil {
		return fmt.Errorf("failed to save close interval: %w", err)
	}
	if err := s.store.SetInt(policy.KeyLastCloseTime(appID), at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save close time: %w", err)
	}
	return nil
}

// RevertedFor reports whether relaxed mode was already reverted for the close at closeAt.
func (s *GateStore) RevertedFor(appID string, closeAt time.Time) bool {
	ms, ok := s.readInt(policy.KeyRevertedFor(appID))
	return ok && ms == closeAt.UnixMilli()
}

// MarkReverted records that the close at closeAt no longer needs reverting.
func (s *GateStore) MarkReverted(appID string, closeAt time.Time) error {
	if err := s.store.SetInt(policy.KeyRevertedFor(appID), closeAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to save reversion marker: %w", err)
	}
	return nil
}

func (s *GateStore) readInt(key string) (int64, bool) {
	v, ok, err := s.store.GetInt(key)
	if err != nil {
		s.logger.Warn("failed to read gate state",
			zap.String("key", key),
			zap.Error(err))
		return 0, false
	}
	return v, ok
}
