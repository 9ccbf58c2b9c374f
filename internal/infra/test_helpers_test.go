package infra

import (
	"os"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	byName  map[string][]int
	findErr error
	running map[int]bool
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		running: make(map[int]bool),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byName[pattern], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.running[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) ProcessName(pid int) (string, error) {
	return "feedgate", nil
}

// Ensure mockProcessManager implements domain.ProcessManager
var _ domain.ProcessManager = (*mockProcessManager)(nil)
