package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waltercore/rastercache/pkg/tilecache"
)

func testTileImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 64, A: 255})
		}
	}
	return img
}

func TestGeoTIFFSerializerRoundTripWithBounds(t *testing.T) {
	ser := NewGeoTIFFSerializer()
	dir := t.TempDir()

	payload := NewPayloadWithBounds(testTileImage(), -100, 30, -99, 31)
	id := tilecache.TileId{}

	path, err := ser.WriteTo(dir, id, payload)
	require.NoError(t, err)

	read, err := ser.ReadFrom(path)
	require.NoError(t, err)

	out, ok := read.(*Payload)
	require.True(t, ok)
	assert.True(t, out.HasBounds)
	assert.False(t, out.Writable())
	assert.InDelta(t, -100, out.MinX, 1e-9)
	assert.InDelta(t, 31, out.MaxY, 1e-9)
	assert.Equal(t, payload.Image.Bounds(), out.Image.Bounds())
}

func TestGeoTIFFSerializerRoundTripWithoutBounds(t *testing.T) {
	ser := NewGeoTIFFSerializer()
	dir := t.TempDir()

	payload := NewPayload(testTileImage())
	id := tilecache.TileId{}

	path, err := ser.WriteTo(dir, id, payload)
	require.NoError(t, err)

	read, err := ser.ReadFrom(path)
	require.NoError(t, err)

	out := read.(*Payload)
	assert.False(t, out.HasBounds)
}
