package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MissReturnsNotOK(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.GetInt("app.x.configured_interval_ms")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.GetString("app.x.relaxed_close_count_date")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.SetInt("a.int", -7))
	require.NoError(t, s.SetString("a.str", "2026-01-02"))

	v, ok, err := s.GetInt("a.int")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-7), v)

	str, ok, err := s.GetString("a.str")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-01-02", str)
}

func TestMemoryStore_GetIntOnNonNumber(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetString("k", "abc"))

	_, ok, err := s.GetInt("k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Keys(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetInt("app.b.x", 1))
	require.NoError(t, s.SetInt("app.a.x", 1))
	require.NoError(t, s.SetInt("apps.custom", 1))

	assert.Equal(t, []string{"app.a.x", "app.b.x"}, s.Keys("app."))
}
