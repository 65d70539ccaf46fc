package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageCoversWholeWorldAtLevelZero(t *testing.T) {
	img, err := NewImage(1, -85, -180, 85, 180, 0, 4)
	require.NoError(t, err)

	assert.Equal(t, 0, img.OriginX)
	assert.Equal(t, 0, img.OriginY)
	assert.Equal(t, 1, img.TilesWide)
	assert.Equal(t, 1, img.TilesTall)
}

func TestNewImageRejectsOutOfRangeLevel(t *testing.T) {
	_, err := NewImage(1, -10, -10, 10, 10, MaxLevel+1, 4)
	assert.Error(t, err)
}

func TestImageIdentityDistinguishesLevels(t *testing.T) {
	a, err := NewImage(7, -10, -10, 10, 10, 3, 4)
	require.NoError(t, err)
	b, err := NewImage(7, -10, -10, 10, 10, 4, 4)
	require.NoError(t, err)

	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestBuildTileGridCoversExactGrid(t *testing.T) {
	img, err := NewImage(1, -10, -10, 10, 10, 3, 4)
	require.NoError(t, err)

	points := BuildTileGrid(img)
	assert.Len(t, points, img.TilesWide*img.TilesTall)

	seen := make(map[TilePoint]bool)
	for _, p := range points {
		seen[p] = true
	}
	assert.Len(t, seen, len(points), "BuildTileGrid must not repeat a tile coordinate")
}

func TestBoundsRoundTripsThroughWebMercator(t *testing.T) {
	img, err := NewImage(1, -10, -10, 10, 10, 5, 4)
	require.NoError(t, err)

	ll, ur := img.Bounds(img.OriginX, img.OriginY)
	assert.Less(t, ll.X, ur.X)
	assert.Less(t, ll.Y, ur.Y)
}
