package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// ErrProbeUnavailable means no screen text exists for the app yet.
var ErrProbeUnavailable = errors.New("screen text unavailable")

// SnapshotProbe implements domain.TextProbe over text dumps written by an
// accessibility helper: one <appID>.txt file per app, replaced on every screen change.
type SnapshotProbe struct {
	dir string
}

// NewSnapshotProbe reads snapshots from dir.
func NewSnapshotProbe(dir string) *SnapshotProbe {
	return &SnapshotProbe{dir: dir}
}

// ContainsAny reports whether any phrase occurs in the app's snapshot (case-insensitive).
func (p *SnapshotProbe) ContainsAny(ctx context.Context, appID string, phrases []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if appID == "" || strings.ContainsAny(appID, `/\`) {
		return false, fmt.Errorf("invalid app id %q", appID)
	}

	data, err := os.ReadFile(filepath.Join(p.dir, appID+".txt"))
	if errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: %s", ErrProbeUnavailable, appID)
	}
	if err != nil {
		return false, err
	}

	text := strings.ToLower(string(data))
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true, nil
		}
	}
	return false, ctx.Err()
}

// Ensure SnapshotProbe implements domain.TextProbe.
var _ domain.TextProbe = (*SnapshotProbe)(nil)
