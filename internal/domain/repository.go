package domain

import (
	"context"
	"time"
)

// ConfigStore is an atomic per-key key/value store.
// A read miss returns ok=false and no error.
type ConfigStore interface {
	GetInt(key string) (value int64, ok bool, err error)
	GetString(key string) (value string, ok bool, err error)
	SetInt(key string, value int64) error
	SetString(key, value string) error
}

// TextProbe answers whether any phrase is currently on screen for an app.
// Implementations may be slow and should honour ctx cancellation.
type TextProbe interface {
	ContainsAny(ctx context.Context, appID string, phrases []string) (bool, error)
}

// Timer is a scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already fired or was stopped.
	Stop() bool
}

// Clock abstracts time for the engine.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// IntentSink receives overlay, challenge and quota intents.
// Emit is called with the gate lock held: it must not block or call back into the gate.
type IntentSink interface {
	Emit(intent Intent)
}

// AppRegistry provides read access to monitored apps.
type AppRegistry interface {
	// Get returns an app by ID.
	Get(id string) (MonitoredApp, bool)

	// GetAll returns all apps sorted by ID.
	GetAll() []MonitoredApp

	// List returns all app IDs.
	List() []string
}

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int

	// ProcessName returns the executable name of a PID.
	ProcessName(pid int) (string, error)
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// EngineRegistry records which process owns a data directory.
// Implementation: JSON file next to the gate store.
type EngineRegistry interface {
	// Register claims the data directory for entry.PID.
	// Fails if another live engine holds it.
	Register(entry EngineEntry) error

	// UpdateHeartbeat updates the timestamp for liveness checks.
	UpdateHeartbeat() error

	// Get returns the current record, nil if none.
	Get() (*EngineEntry, error)

	// IsAlive reports whether the registered engine is still running.
	IsAlive() (bool, error)

	// Release removes the record if it belongs to pid.
	Release(pid int) error
}
