// Package raster is a reference implementation of the tilecache package's
// out-of-scope RenderedImage, RasterPayload, and DiskSerializer
// collaborators, built around a Web Mercator tile grid. It exists so
// pkg/tilecache can be exercised end-to-end without a caller supplying
// their own raster image stack; the core package never imports it.
package raster

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/waltercore/rastercache/internal/common"
	"github.com/waltercore/rastercache/pkg/tilecache"
)

// MaxLevel bounds the Web Mercator tile pyramid, matching common XYZ tile
// servers (2^23 tiles per side at the deepest level).
const MaxLevel = 23

// Equator is the Earth's equatorial circumference in meters, used to scale
// Web Mercator coordinates.
const Equator = 40075016.685578

// WebMercator is a projected coordinate in meters (EPSG:3857).
type WebMercator struct {
	X float64
	Y float64
}

// Wgs84 is a geographic coordinate in degrees.
type Wgs84 struct {
	Lat float64
	Lon float64
}

// ToWgs84 converts a Web Mercator coordinate to WGS84.
func (m WebMercator) ToWgs84() Wgs84 {
	lon := m.X / Equator * 360.0
	lat := math.Atan(math.Sinh(m.Y/Equator*2*math.Pi)) * 180.0 / math.Pi
	return Wgs84{Lat: lat, Lon: lon}
}

// ToWebMercator converts a WGS84 coordinate to Web Mercator.
func (w Wgs84) ToWebMercator() WebMercator {
	x := w.Lon / 360.0 * Equator
	latRad := w.Lat * math.Pi / 180.0
	y := math.Log(math.Tan(math.Pi/4+latRad/2)) / (2 * math.Pi) * Equator
	return WebMercator{X: x, Y: y}
}

// Image is a reference RenderedImage: a raster gridded in Web Mercator tiles
// at a fixed zoom level, identified by a 64-bit source id.
type Image struct {
	SourceID  uint64
	Level     int
	OriginX   int
	OriginY   int
	TilesWide int
	TilesTall int
	Bands     int
}

// NewImage constructs an Image covering a WGS84 bounding box at level,
// deriving the tile grid's origin and extent from the box.
func NewImage(sourceID uint64, south, west, north, east float64, level int, bands int) (*Image, error) {
	if level < 0 || level > MaxLevel {
		return nil, fmt.Errorf("raster: level %d out of range [0,%d]", level, MaxLevel)
	}

	minCol, maxRow := tileForWgs84(south, west, level)
	maxCol, minRow := tileForWgs84(north, east, level)

	bounds, err := common.CalculateTileBounds([]common.Tile{
		corner{row: minRow, col: minCol},
		corner{row: maxRow, col: maxCol},
	})
	if err != nil {
		return nil, fmt.Errorf("raster: compute tile bounds: %w", err)
	}

	return &Image{
		SourceID:  sourceID,
		Level:     level,
		OriginX:   bounds.MinCol,
		OriginY:   bounds.MinRow,
		TilesWide: bounds.Cols(),
		TilesTall: bounds.Rows(),
		Bands:     bands,
	}, nil
}

// corner adapts a single (row,col) pair to common.Tile so the image's
// corner tiles can be fed through common.CalculateTileBounds.
type corner struct {
	row, col int
}

func (c corner) GetRow() int    { return c.row }
func (c corner) GetColumn() int { return c.col }

// Identity implements tilecache.RenderedImage. The wide id folds the
// source id and zoom level into a big-endian byte string so that images at
// different zoom levels of the same source never collide, satisfying the
// TileId derivation rule's preference for the wide branch.
func (img *Image) Identity() tilecache.ImageIdentity {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], img.SourceID)
	binary.BigEndian.PutUint32(buf[8:], uint32(img.Level))
	return tilecache.ImageIdentity{WideID: buf}
}

func (img *Image) MinTileX() int  { return img.OriginX }
func (img *Image) MinTileY() int  { return img.OriginY }
func (img *Image) NumXTiles() int { return img.TilesWide }
func (img *Image) NumYTiles() int { return img.TilesTall }

// Bounds returns the Web Mercator bounding box of tile (col,row) at the
// image's level: lower-left and upper-right corners.
func (img *Image) Bounds(col, row int) (ll, ur WebMercator) {
	n := float64(int(1) << img.Level)
	corner := func(c, r float64) WebMercator {
		return WebMercator{
			X: (c/n - 0.5) * Equator,
			Y: (0.5 - r/n) * Equator,
		}
	}
	return corner(float64(col), float64(row+1)), corner(float64(col+1), float64(row))
}

// TilePoint is one (x,y) tile coordinate in an image's grid.
type TilePoint struct {
	X int
	Y int
}

// BuildTileGrid is the out-of-scope "helper for producing bulk tile arrays
// from image geometry": a thin double loop over an image's tile grid. Each
// TilePoint{X, Y} corresponds to one [2]int{X, Y} entry of the points
// slice taken by tilecache.Cache.AddTiles/GetTilesAt.
func BuildTileGrid(img *Image) []TilePoint {
	points := make([]TilePoint, 0, img.NumXTiles()*img.NumYTiles())
	for y := img.MinTileY(); y < img.MinTileY()+img.NumYTiles(); y++ {
		for x := img.MinTileX(); x < img.MinTileX()+img.NumXTiles(); x++ {
			points = append(points, TilePoint{X: x, Y: y})
		}
	}
	return points
}

// tileForWgs84 returns the tile column/row containing a WGS84 coordinate at
// the given zoom level, clamped to the valid range.
func tileForWgs84(lat, lon float64, level int) (col, row int) {
	coord := Wgs84{Lat: lat, Lon: lon}.ToWebMercator()
	size := 1 << level
	col = clamp(int((0.5+coord.X/Equator)*float64(size)), 0, size-1)
	row = clamp(int((0.5-coord.Y/Equator)*float64(size)), 0, size-1)
	return col, row
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
