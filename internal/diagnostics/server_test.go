package diagnostics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waltercore/rastercache/pkg/tilecache"
)

type fakeImage struct {
	id32       uint32
	numX, numY int
}

func (f *fakeImage) Identity() tilecache.ImageIdentity { return tilecache.ImageIdentity{ID32: f.id32} }
func (f *fakeImage) MinTileX() int                     { return 0 }
func (f *fakeImage) MinTileY() int                     { return 0 }
func (f *fakeImage) NumXTiles() int                    { return f.numX }
func (f *fakeImage) NumYTiles() int                    { return f.numY }

type fakePayload struct{ bytes []byte }

func (p *fakePayload) Size() int      { return len(p.bytes) }
func (p *fakePayload) Writable() bool { return true }

func newTestCore(t *testing.T) *tilecache.Cache {
	t.Helper()
	core := tilecache.New(tilecache.Options{MemCapacity: 1 << 20})
	img := &fakeImage{id32: 1, numX: 2, numY: 2}
	require.NoError(t, core.Add(img, 0, 0, &fakePayload{bytes: []byte("tile-a")}, nil))
	require.NoError(t, core.Add(img, 1, 0, &fakePayload{bytes: []byte("tile-b")}, nil))
	return core
}

func TestHandleStatsReportsCounts(t *testing.T) {
	core := newTestCore(t)
	s := NewServer(core, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got statsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.NumTiles)
	assert.Equal(t, 2, got.NumResidentTiles)
}

func TestHandleTilesListsEveryTile(t *testing.T) {
	core := newTestCore(t)
	s := NewServer(core, nil)

	req := httptest.NewRequest(http.MethodGet, "/tiles", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []tileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}
