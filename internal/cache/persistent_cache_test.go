package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentTileCacheSetGetRoundTrip(t *testing.T) {
	pc, err := NewPersistentTileCache(t.TempDir(), 16, 30)
	require.NoError(t, err)
	defer pc.Close()

	data := []byte("historical imagery bytes")
	require.NoError(t, pc.Set("esri", 10, 5, 5, "2024-01-01", data))

	got, ok := pc.Get("esri", 10, 5, 5, "2024-01-01")
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestPersistentTileCacheDateIsolation(t *testing.T) {
	pc, err := NewPersistentTileCache(t.TempDir(), 16, 30)
	require.NoError(t, err)
	defer pc.Close()

	require.NoError(t, pc.Set("esri", 10, 1, 1, "2023-06-01", []byte("older")))
	require.NoError(t, pc.Set("esri", 10, 1, 1, "2024-06-01", []byte("newer")))

	got, ok := pc.Get("esri", 10, 1, 1, "2023-06-01")
	require.True(t, ok)
	assert.Equal(t, []byte("older"), got)

	got, ok = pc.Get("esri", 10, 1, 1, "2024-06-01")
	require.True(t, ok)
	assert.Equal(t, []byte("newer"), got)
}

func TestPersistentTileCacheExpiresPastTTL(t *testing.T) {
	pc, err := NewPersistentTileCache(t.TempDir(), 16, 30)
	require.NoError(t, err)
	defer pc.Close()

	img := pc.imageFor("esri", 10, "2024-01-01")
	stale := &ttlPayload{data: []byte("stale"), createdAt: time.Now().Add(-60 * 24 * time.Hour)}
	require.NoError(t, pc.core.Add(img, 1, 1, stale, nil))

	_, ok := pc.Get("esri", 10, 1, 1, "2024-01-01")
	assert.False(t, ok)
	assert.False(t, pc.core.ContainsTile(img, 1, 1))
}

func TestPersistentTileCacheZeroTTLNeverExpires(t *testing.T) {
	pc, err := NewPersistentTileCache(t.TempDir(), 16, 0)
	require.NoError(t, err)
	defer pc.Close()

	img := pc.imageFor("esri", 10, "2024-01-01")
	ancient := &ttlPayload{data: []byte("ancient"), createdAt: time.Unix(0, 0)}
	require.NoError(t, pc.core.Add(img, 1, 1, ancient, nil))

	got, ok := pc.Get("esri", 10, 1, 1, "2024-01-01")
	require.True(t, ok)
	assert.Equal(t, []byte("ancient"), got)
}

func TestPersistentTileCacheStatsAndClear(t *testing.T) {
	pc, err := NewPersistentTileCache(t.TempDir(), 16, 30)
	require.NoError(t, err)
	defer pc.Close()

	require.NoError(t, pc.Set("esri", 10, 1, 1, "2024-01-01", []byte("a")))
	entries, _, _ := pc.Stats()
	assert.Equal(t, 1, entries)

	require.NoError(t, pc.Clear())
	entries, _, _ = pc.Stats()
	assert.Equal(t, 0, entries)
}
