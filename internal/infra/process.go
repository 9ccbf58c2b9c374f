package infra

import (
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of processes matching the pattern (case-insensitive).
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	patternLower := strings.ToLower(pattern)

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if strings.EqualFold(name, pattern) || strings.Contains(strings.ToLower(name), patternLower) {
			found = append(found, int(p.Pid))
		}
	}

	return found, nil
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// ProcessName returns the executable name of pid.
func (pm *ProcessManagerImpl) ProcessName(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Name()
}

// HostAppID returns the name of the running process, used as the host app identifier.
func HostAppID(pm domain.ProcessManager) string {
	name, err := pm.ProcessName(pm.GetCurrentPID())
	if err != nil {
		return ""
	}
	return name
}

// AnyRunning reports whether a process matches any of the names.
// An empty list counts as running: there is nothing to check.
func AnyRunning(pm domain.ProcessManager, names []string) (bool, error) {
	if len(names) == 0 {
		return true, nil
	}
	var lastErr error
	for _, n := range names {
		pids, err := pm.FindByName(n)
		if err != nil {
			lastErr = err
			continue
		}
		if len(pids) > 0 {
			return true, nil
		}
	}
	return false, lastErr
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
