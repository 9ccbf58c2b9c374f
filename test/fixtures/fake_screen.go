// Package fixtures provides test helpers for unit and integration tests.
package fixtures

import (
	"os"
	"path/filepath"
)

// FakeScreen writes screen-text snapshots the way an accessibility helper would.
// Pair it with infra.SnapshotProbe pointed at Dir.
type FakeScreen struct {
	Dir string
}

// NewFakeScreen creates a snapshot directory under dir.
func NewFakeScreen(dir string) (*FakeScreen, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FakeScreen{Dir: dir}, nil
}

// Show replaces the visible text of an app.
func (f *FakeScreen) Show(appID, text string) error {
	tmp := filepath.Join(f.Dir, "."+appID+".tmp")
	if err := os.WriteFile(tmp, []byte(text), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(appID))
}

// Clear removes an app's snapshot, as if the app had never drawn.
func (f *FakeScreen) Clear(appID string) error {
	err := os.Remove(f.path(appID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists checks if a snapshot is present for the app.
func (f *FakeScreen) Exists(appID string) bool {
	_, err := os.Stat(f.path(appID))
	return err == nil
}

func (f *FakeScreen) path(appID string) string {
	return filepath.Join(f.Dir, appID+".txt")
}
