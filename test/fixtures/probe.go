package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// ScriptedProbe is a domain.TextProbe whose answers are set by the test.
// Apps with no script read as "phrase not present".
type ScriptedProbe struct {
	mu      sync.Mutex
	visible map[string]bool
	errs    map[string]error
	calls   map[string]int
	hold    chan struct{}
}

// NewScriptedProbe creates a probe where nothing is on screen.
func NewScriptedProbe() *ScriptedProbe {
	return &ScriptedProbe{
		visible: make(map[string]bool),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// SetVisible sets whether a target phrase is on screen for the app.
func (p *ScriptedProbe) SetVisible(appID string, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[appID] = visible
	delete(p.errs, appID)
}

// Fail makes the next probes for the app return err.
func (p *ScriptedProbe) Fail(appID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[appID] = err
}

// Hold blocks every probe until the returned release func is called
// or the probe's context is cancelled.
func (p *ScriptedProbe) Hold() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.hold = ch
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			if p.hold == ch {
				p.hold = nil
			}
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many probes ran for the app.
func (p *ScriptedProbe) Calls(appID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[appID]
}

// ContainsAny implements domain.TextProbe.
func (p *ScriptedProbe) ContainsAny(ctx context.Context, appID string, phrases []string) (bool, error) {
	p.mu.Lock()
	p.calls[appID]++
	hold := p.hold
	p.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[appID]; err != nil {
		return false, err
	}
	return p.visible[appID], nil
}

var _ domain.TextProbe = (*ScriptedProbe)(nil)
