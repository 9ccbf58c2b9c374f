package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/infra"
)

func customApp(id string) domain.MonitoredApp {
	return domain.MonitoredApp{
		ID:                id,
		Name:              "Custom " + id,
		TargetPhrases:     []string{"Spotlight"},
		DailyRelaxedQuota: 2,
	}
}

func TestRegistry_BuiltinsPresent(t *testing.T) {
	r := NewRegistry()

	ids := r.List()
	assert.Len(t, ids, len(BuiltinApps()))
	assert.IsIncreasing(t, ids)

	yt, ok := r.Get("com.google.android.youtube")
	require.True(t, ok)
	assert.Equal(t, "YouTube", yt.Name)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()

	a, ok := r.Get("com.instagram.android")
	require.True(t, ok)
	a.TargetPhrases[0] = "mutated"

	b, _ := r.Get("com.instagram.android")
	assert.Equal(t, "Reels", b.TargetPhrases[0])
}

func TestRegistry_AddCustom(t *testing.T) {
	tests := []struct {
		name    string
		app     domain.MonitoredApp
		wantErr error
	}{
		{name: "valid", app: customApp("com.snapchat.android")},
		{name: "blank id", app: customApp("  "), wantErr: ErrInvalidApp},
		{name: "id with space", app: customApp("com snap"), wantErr: ErrInvalidApp},
		{
			name:    "no phrase and not exempt",
			app:     domain.MonitoredApp{ID: "com.example.feed"},
			wantErr: ErrInvalidApp,
		},
		{
			name: "no phrase but exempt",
			app:  domain.MonitoredApp{ID: "com.example.feed", ChallengeExempt: true},
		},
		{name: "builtin id", app: customApp("com.instagram.android"), wantErr: ErrBuiltinApp},
		{
			name:    "negative quota",
			app:     domain.MonitoredApp{ID: "com.example.feed", TargetPhrases: []string{"x"}, DailyRelaxedQuota: -1},
			wantErr: ErrInvalidApp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.AddCustom(tt.app)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, ok := r.Get(tt.app.ID)
			require.True(t, ok)
			assert.Equal(t, domain.ProvenanceCustom, got.Provenance)
			assert.NotEmpty(t, got.Name)
		})
	}
}

func TestRegistry_CustomAppsSurviveReload(t *testing.T) {
	store := infra.NewMemoryStore()

	r := NewRegistry()
	require.NoError(t, r.Load(store))
	require.NoError(t, r.AddCustom(customApp("com.snapchat.android")))

	reloaded := NewRegistry()
	require.NoError(t, reloaded.Load(store))

	got, ok := reloaded.Get("com.snapchat.android")
	require.True(t, ok)
	assert.Equal(t, []string{"Spotlight"}, got.TargetPhrases)
	assert.Equal(t, domain.ProvenanceCustom, got.Provenance)
}

func TestRegistry_LoadNeverShadowsBuiltin(t *testing.T) {
	store := infra.NewMemoryStore()
	require.NoError(t, store.SetString(CustomAppsKey,
		`[{"id":"com.instagram.android","name":"Evil","target_phrases":["nothing"]}]`))

	r := NewRegistry()
	require.NoError(t, r.Load(store))

	got, ok := r.Get("com.instagram.android")
	require.True(t, ok)
	assert.Equal(t, "Instagram", got.Name)
	assert.Equal(t, domain.ProvenanceBuiltin, got.Provenance)
}

func TestRegistry_LoadRejectsCorruptJSON(t *testing.T) {
	store := infra.NewMemoryStore()
	require.NoError(t, store.SetString(CustomAppsKey, `{not json`))

	r := NewRegistry()
	assert.Error(t, r.Load(store))
}

func TestRegistry_Remove(t *testing.T) {
	store := infra.NewMemoryStore()
	r := NewRegistry()
	require.NoError(t, r.Load(store))
	require.NoError(t, r.AddCustom(customApp("com.snapchat.android")))

	assert.ErrorIs(t, r.Remove("com.instagram.android"), ErrBuiltinApp)
	assert.ErrorIs(t, r.Remove("com.unknown"), ErrUnknownApp)

	require.NoError(t, r.Remove("com.snapchat.android"))
	_, ok := r.Get("com.snapchat.android")
	assert.False(t, ok)

	reloaded := NewRegistry()
	require.NoError(t, reloaded.Load(store))
	_, ok = reloaded.Get("com.snapchat.android")
	assert.False(t, ok)
}

func TestRegistry_SetQuotaPersists(t *testing.T) {
	store := infra.NewMemoryStore()
	r := NewRegistry()
	require.NoError(t, r.Load(store))

	require.NoError(t, r.SetQuota("com.google.android.youtube", 0))
	assert.ErrorIs(t, r.SetQuota("com.unknown", 1), ErrUnknownApp)
	assert.ErrorIs(t, r.SetQuota("com.google.android.youtube", -1), ErrInvalidApp)

	reloaded := NewRegistry()
	require.NoError(t, reloaded.Load(store))
	yt, _ := reloaded.Get("com.google.android.youtube")
	assert.Equal(t, 0, yt.DailyRelaxedQuota)
}

func TestRegistry_WithoutStoreDoesNotPersist(t *testing.T) {
	r := NewRegistryWithApps()
	require.NoError(t, r.AddCustom(customApp("com.snapchat.android")))
	assert.Equal(t, []string{"com.snapchat.android"}, r.List())
}
