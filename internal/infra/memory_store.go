package infra

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// MemoryStore is a process-local domain.ConfigStore.
// Used for --ephemeral runs and tests; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// GetInt returns an integer value.
func (s *MemoryStore) GetInt(key string) (int64, bool, error) {
	raw, ok, _ := s.GetString(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("key %q is not an integer: %w", key, err)
	}
	return v, true, nil
}

// GetString returns a string value.
func (s *MemoryStore) GetString(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// SetInt stores an integer value.
func (s *MemoryStore) SetInt(key string, value int64) error {
	return s.SetString(key, strconv.FormatInt(value, 10))
}

// SetString stores a string value.
func (s *MemoryStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Keys returns all keys with the given prefix, sorted.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Ensure MemoryStore implements domain.ConfigStore.
var _ domain.ConfigStore = (*MemoryStore)(nil)
