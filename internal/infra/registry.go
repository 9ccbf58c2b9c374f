package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

const engineFileName = "engine.json"

// ErrEngineRunning is returned when another engine owns the data directory.
var ErrEngineRunning = errors.New("another engine is already running")

// FileEngineRegistry implements domain.EngineRegistry using a JSON file in the data directory.
type FileEngineRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileEngineRegistry creates a registry for dataDir.
func NewFileEngineRegistry(dataDir string, pm domain.ProcessManager) *FileEngineRegistry {
	return &FileEngineRegistry{
		path:           filepath.Join(dataDir, engineFileName),
		processManager: pm,
	}
}

// Path returns the registry file path.
func (r *FileEngineRegistry) Path() string {
	return r.path
}

// Register claims the data directory. A record left by a dead process is replaced.
func (r *FileEngineRegistry) Register(entry domain.EngineEntry) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// File lock so two engines starting together cannot both win
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	current, err := r.Get()
	if err != nil {
		return err
	}
	if current != nil && current.PID != entry.PID && r.processManager.IsRunning(current.PID) {
		return fmt.Errorf("%w (pid %d)", ErrEngineRunning, current.PID)
	}

	now := time.Now().Unix()
	if entry.StartedAt == 0 {
		entry.StartedAt = now
	}
	entry.LastHeartbeat = now
	return r.atomicWrite(&entry)
}

// UpdateHeartbeat updates timestamp for liveness check.
func (r *FileEngineRegistry) UpdateHeartbeat() error {
	entry, err := r.Get()
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("no engine registered at %s", r.path)
	}

	entry.LastHeartbeat = time.Now().Unix()
	return r.atomicWrite(entry)
}

// Get returns the registry record, nil if the file does not exist.
func (r *FileEngineRegistry) Get() (*domain.EngineEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.EngineEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.path, err)
	}
	return &entry, nil
}

// IsAlive checks if the registered engine is running via PID.
func (r *FileEngineRegistry) IsAlive() (bool, error) {
	entry, err := r.Get()
	if err != nil {
		return false, err
	}
	if entry == nil || entry.PID == 0 {
		return false, nil
	}
	return r.processManager.IsRunning(entry.PID), nil
}

// Release removes the record if pid still owns it.
func (r *FileEngineRegistry) Release(pid int) error {
	entry, err := r.Get()
	if err != nil {
		return err
	}
	if entry == nil || entry.PID != pid {
		return nil
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the record atomically (write + rename).
func (r *FileEngineRegistry) atomicWrite(entry *domain.EngineEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Unique per process to avoid races
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileEngineRegistry implements domain.EngineRegistry.
var _ domain.EngineRegistry = (*FileEngineRegistry)(nil)
