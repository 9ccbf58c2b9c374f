package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
)

// Registry holds all monitored apps, built-in and user-added.
// It is the single owner of MonitoredApp records; the engine only reads them.
type Registry struct {
	mu    sync.RWMutex
	apps  map[string]domain.MonitoredApp
	store domain.ConfigStore // nil until Load; custom apps and quotas are then persisted
}

// NewRegistry creates a registry with all built-in apps.
func NewRegistry() *Registry {
	return NewRegistryWithApps(BuiltinApps()...)
}

// NewRegistryWithApps creates a registry with custom apps (for testing).
func NewRegistryWithApps(apps ...domain.MonitoredApp) *Registry {
	r := &Registry{
		apps: make(map[string]domain.MonitoredApp),
	}
	for _, a := range apps {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an app without persisting it.
func (r *Registry) Register(app domain.MonitoredApp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ID] = cloneApp(app)
}

// Load attaches a store, merges persisted custom apps and applies quota overrides.
func (r *Registry) Load(store domain.ConfigStore) error {
	raw, ok, err := store.GetString(CustomAppsKey)
	if err != nil {
		return fmt.Errorf("failed to read custom apps: %w", err)
	}

	var custom []domain.MonitoredApp
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &custom); err != nil {
			return fmt.Errorf("failed to decode custom apps: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store = store
	for _, a := range custom {
		if _, exists := r.apps[a.ID]; exists {
			continue // Never let a stored record shadow a built-in
		}
		a.Provenance = domain.ProvenanceCustom
		r.apps[a.ID] = cloneApp(a)
	}

	for id, a := range r.apps {
		q, ok, err := store.GetInt(keyRelaxedQuota(id))
		if err != nil {
			return fmt.Errorf("failed to read quota for %s: %w", id, err)
		}
		if ok && q >= 0 {
			a.DailyRelaxedQuota = int(q)
			r.apps[id] = a
		}
	}
	return nil
}

// Get returns an app by ID.
func (r *Registry) Get(id string) (domain.MonitoredApp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[id]
	if !ok {
		return domain.MonitoredApp{}, false
	}
	return cloneApp(a), true
}

// GetAll returns all registered apps sorted by ID.
func (r *Registry) GetAll() []domain.MonitoredApp {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.MonitoredApp, 0, len(r.apps))
	for _, a := range r.apps {
		result = append(result, cloneApp(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// List returns all app IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.apps))
	for id := range r.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddCustom registers a user-added app and persists it.
func (r *Registry) AddCustom(app domain.MonitoredApp) error {
	app.ID = strings.TrimSpace(app.ID)
	if app.ID == "" || strings.ContainsAny(app.ID, " \t\n") {
		return fmt.Errorf("%w: id %q", ErrInvalidApp, app.ID)
	}
	if !app.HasPhrases() && !app.ChallengeExempt {
		return fmt.Errorf("%w: %s needs at least one target phrase", ErrInvalidApp, app.ID)
	}
	if app.DailyRelaxedQuota < 0 {
		return fmt.Errorf("%w: negative quota", ErrInvalidApp)
	}
	if app.Name == "" {
		app.Name = app.ID
	}
	app.Provenance = domain.ProvenanceCustom

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.apps[app.ID]; ok && existing.Provenance == domain.ProvenanceBuiltin {
		return fmt.Errorf("%w: %s", ErrBuiltinApp, app.ID)
	}
	r.apps[app.ID] = cloneApp(app)
	return r.persistCustomLocked()
}

// Remove deletes a user-added app.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.apps[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}
	if a.Provenance == domain.ProvenanceBuiltin {
		return fmt.Errorf("%w: %s", ErrBuiltinApp, id)
	}
	delete(r.apps, id)
	return r.persistCustomLocked()
}

// SetQuota edits an app's daily relaxed quota. This is the only mutable field.
func (r *Registry) SetQuota(id string, quota int) error {
	if quota < 0 {
		return fmt.Errorf("%w: negative quota", ErrInvalidApp)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.apps[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}
	a.DailyRelaxedQuota = quota
	r.apps[id] = a

	if r.store == nil {
		return nil
	}
	return r.store.SetInt(keyRelaxedQuota(id), int64(quota))
}

func (r *Registry) persistCustomLocked() error {
	if r.store == nil {
		return nil
	}
	custom := make([]domain.MonitoredApp, 0)
	for _, a := range r.apps {
		if a.Provenance == domain.ProvenanceCustom {
			custom = append(custom, a)
		}
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].ID < custom[j].ID })

	data, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to encode custom apps: %w", err)
	}
	return r.store.SetString(CustomAppsKey, string(data))
}

func cloneApp(a domain.MonitoredApp) domain.MonitoredApp {
	a.TargetPhrases = append([]string(nil), a.TargetPhrases...)
	a.ProcessNames = append([]string(nil), a.ProcessNames...)
	return a
}

// Ensure Registry implements domain.AppRegistry.
var _ domain.AppRegistry = (*Registry)(nil)
