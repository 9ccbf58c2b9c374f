package fixtures

import (
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// ErrStoreUnavailable is returned by FlakyStore while failing.
var ErrStoreUnavailable = errors.New("store unavailable")

// FlakyStore wraps a domain.ConfigStore and can be told to fail reads or writes.
type FlakyStore struct {
	domain.ConfigStore

	mu         sync.Mutex
	failReads  bool
	failWrites bool
	// writesLeft counts down allowed writes when limited is set.
	writesLeft int
	limited    bool
}

// NewFlakyStore wraps inner.
func NewFlakyStore(inner domain.ConfigStore) *FlakyStore {
	return &FlakyStore{ConfigStore: inner}
}

// FailReads toggles read failures.
func (s *FlakyStore) FailReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = fail
}

// FailWrites toggles write failures.
func (s *FlakyStore) FailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

// FailWritesAfter lets n more writes through and fails every write after that.
func (s *FlakyStore) FailWritesAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writesLeft = n
	s.limited = true
}

func (s *FlakyStore) reading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReads
}

func (s *FlakyStore) writing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return true
	}
	if s.limited {
		if s.writesLeft <= 0 {
			return true
		}
		s.writesLeft--
	}
	return false
}

func (s *FlakyStore) GetInt(key string) (int64, bool, error) {
	if s.reading() {
		return 0, false, ErrStoreUnavailable
	}
	return s.ConfigStore.GetInt(key)
}

func (s *FlakyStore) GetString(key string) (string, bool, error) {
	if s.reading() {
		return "", false, ErrStoreUnavailable
	}
	return s.ConfigStore.GetString(key)
}

func (s *FlakyStore) SetInt(key string, value int64) error {
	if s.writing() {
		return ErrStoreUnavailable
	}
	return s.ConfigStore.SetInt(key, value)
}

func (s *FlakyStore) SetString(key, value string) error {
	if s.writing() {
		return ErrStoreUnavailable
	}
	return s.ConfigStore.SetString(key, value)
}

var _ domain.ConfigStore = (*FlakyStore)(nil)
