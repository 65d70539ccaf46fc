package geotiff

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeTileRoundTrip(t *testing.T) {
	img := testImage()
	var buf bytes.Buffer

	require.NoError(t, Encode(&buf, img, &TileBounds{MinX: -100, MinY: 30, MaxX: -99, MaxY: 31}))

	got, minX, minY, maxX, maxY, ok, err := DecodeTile(&buf)
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, -100, minX, 1e-9)
	assert.InDelta(t, 30, minY, 1e-9)
	assert.InDelta(t, -99, maxX, 1e-9)
	assert.InDelta(t, 31, maxY, 1e-9)
	assert.Equal(t, img.Bounds(), got.Bounds())
}

func TestDecodeTilePlainEncodeHasNoBounds(t *testing.T) {
	img := testImage()
	var buf bytes.Buffer

	require.NoError(t, Encode(&buf, img, nil))

	_, _, _, _, _, ok, err := DecodeTile(&buf)
	require.NoError(t, err)
	assert.False(t, ok)
}
