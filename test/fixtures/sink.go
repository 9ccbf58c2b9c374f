package fixtures

import (
	"sync"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// RecordingSink captures emitted intents.
type RecordingSink struct {
	mu      sync.Mutex
	intents []domain.Intent
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Emit implements domain.IntentSink.
func (s *RecordingSink) Emit(intent domain.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, intent)
}

// Intents returns a copy of everything emitted so far.
func (s *RecordingSink) Intents() []domain.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Intent(nil), s.intents...)
}

// Kinds returns the kinds emitted for appID, in order.
func (s *RecordingSink) Kinds(appID string) []domain.IntentKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kinds []domain.IntentKind
	for _, in := range s.intents {
		if in.AppID == appID {
			kinds = append(kinds, in.Kind)
		}
	}
	return kinds
}

// Count returns how many intents of kind were emitted for appID.
func (s *RecordingSink) Count(appID string, kind domain.IntentKind) int {
	n := 0
	for _, k := range s.Kinds(appID) {
		if k == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent intent of kind for appID.
func (s *RecordingSink) Last(appID string, kind domain.IntentKind) (domain.Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.intents) - 1; i >= 0; i-- {
		if s.intents[i].AppID == appID && s.intents[i].Kind == kind {
			return s.intents[i], true
		}
	}
	return domain.Intent{}, false
}

// Reset forgets recorded intents.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = nil
}

var _ domain.IntentSink = (*RecordingSink)(nil)
