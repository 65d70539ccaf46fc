// Package tilecache implements a two-tier (memory + disk) cache for tiles
// belonging to very large tiled raster images.
package tilecache

import "time"

// ImageIdentity is a stable identity for a RenderedImage. Images that expose
// a WideID are distinguished even when they share a 32-bit ID; images with
// only a 32-bit ID are distinguished solely by that ID.
type ImageIdentity struct {
	// ID32 is used when WideID is nil.
	ID32 uint32
	// WideID, when non-nil, takes precedence over ID32 for TileId derivation.
	WideID []byte
}

// RenderedImage is the out-of-scope collaborator that owns tiles. The cache
// never extends its lifetime and only ever stores its Identity.
type RenderedImage interface {
	// Identity returns a stable identity for the image. It must return the
	// same value for the lifetime of the image.
	Identity() ImageIdentity
	// MinTileX, MinTileY are the origin of the tile grid.
	MinTileX() int
	MinTileY() int
	// NumXTiles, NumYTiles are the tile grid dimensions.
	NumXTiles() int
	NumYTiles() int
}

// RasterPayload is the out-of-scope collaborator carrying tile sample data.
// It is an opaque byte container from the cache's point of view.
type RasterPayload interface {
	// Size is the payload's byte size, fixed for the life of the payload.
	Size() int
	// Writable reports whether the payload can be re-serialized by a
	// DiskSerializer, e.g. false for a payload decoded read-only from a
	// shared, immutable source.
	Writable() bool
}

// DiskSerializer is the out-of-scope collaborator that persists a
// RasterPayload to and from a backing file.
type DiskSerializer interface {
	// WriteTo serializes payload to a new file under dir and returns its
	// path. Implementations must write to a temporary file and rename into
	// place so a crash mid-write cannot corrupt an existing copy.
	WriteTo(dir string, id TileId, payload RasterPayload) (path string, err error)
	// ReadFrom deserializes the payload previously written to path.
	ReadFrom(path string) (RasterPayload, error)
}

// Clock abstracts time for testability; defaults to the real wall clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
