package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waltercore/rastercache/pkg/tilecache"
)

func TestTileCacheSetGetRoundTrip(t *testing.T) {
	tc, err := NewTileCache(t.TempDir(), 16)
	require.NoError(t, err)
	defer tc.Close()

	data := []byte("a fake encoded tile")
	require.NoError(t, tc.Set("esri", 4, 3, 2, data))

	got, ok := tc.Get("esri", 4, 3, 2)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestTileCacheMissForUnknownTile(t *testing.T) {
	tc, err := NewTileCache(t.TempDir(), 16)
	require.NoError(t, err)
	defer tc.Close()

	_, ok := tc.Get("esri", 4, 3, 2)
	assert.False(t, ok)
}

func TestTileCacheProviderZoomIsolation(t *testing.T) {
	tc, err := NewTileCache(t.TempDir(), 16)
	require.NoError(t, err)
	defer tc.Close()

	require.NoError(t, tc.Set("esri", 4, 1, 1, []byte("esri-z4")))
	require.NoError(t, tc.Set("google", 4, 1, 1, []byte("google-z4")))
	require.NoError(t, tc.Set("esri", 5, 1, 1, []byte("esri-z5")))

	got, ok := tc.Get("esri", 4, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("esri-z4"), got)

	got, ok = tc.Get("google", 4, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("google-z4"), got)

	got, ok = tc.Get("esri", 5, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("esri-z5"), got)
}

func TestTileCacheStatsAndClear(t *testing.T) {
	tc, err := NewTileCache(t.TempDir(), 16)
	require.NoError(t, err)
	defer tc.Close()

	require.NoError(t, tc.Set("esri", 4, 1, 1, []byte("tile-a")))
	require.NoError(t, tc.Set("esri", 4, 2, 2, []byte("tile-b")))

	entries, size, max := tc.Stats()
	assert.Equal(t, 2, entries)
	assert.Greater(t, size, int64(0))
	assert.Equal(t, int64(16*1024*1024), max)

	require.NoError(t, tc.Clear())
	entries, size, _ = tc.Stats()
	assert.Equal(t, 0, entries)
	assert.Equal(t, int64(0), size)
}

func TestTileCacheSurvivesEviction(t *testing.T) {
	// A one-byte memory capacity makes every tile too large to be resident,
	// so each one lives on disk only; Get must still serve it by reading it
	// back from disk.
	tc := &TileCache{
		core: tilecache.New(tilecache.Options{
			MemCapacity: 1,
			DiskCache:   true,
			Dir:         t.TempDir(),
			Serializer:  rawSerializer{},
		}),
		images: make(map[string]*providerImage),
	}
	defer tc.Close()

	require.NoError(t, tc.Set("esri", 4, 1, 1, []byte("spilled tile")))

	got, ok := tc.Get("esri", 4, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []byte("spilled tile"), got)
}
