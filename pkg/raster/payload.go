package raster

import "image"

// Payload is a reference RasterPayload wrapping a decoded tile image. A
// Payload produced by rendering (rather than rehydrated from disk) is
// writable by default; one read back via GeoTIFFSerializer.ReadFrom is
// marked non-writable, since it already reflects the disk copy and writing
// it back out would be a pointless round trip.
//
// Bounds are optional Web Mercator coordinates (HasBounds reports whether
// they were set). When present, GeoTIFFSerializer encodes them into the
// spilled file's ModelPixelScaleTag/ModelTiepointTag so the tile on disk is
// independently georeferenced.
type Payload struct {
	Image                  image.Image
	MinX, MinY, MaxX, MaxY float64
	HasBounds              bool
	writable               bool
}

// NewPayload wraps img as a writable tile payload with no geo-referencing.
func NewPayload(img image.Image) *Payload {
	return &Payload{Image: img, writable: true}
}

// NewPayloadWithBounds wraps img as a writable tile payload georeferenced
// to the Web Mercator bounding box (minX,minY)-(maxX,maxY), typically taken
// from Image.Bounds for the tile being rendered.
func NewPayloadWithBounds(img image.Image, minX, minY, maxX, maxY float64) *Payload {
	return &Payload{Image: img, MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, HasBounds: true, writable: true}
}

// Size implements tilecache.RasterPayload, estimating memory footprint as
// 4 bytes (RGBA) per pixel.
func (p *Payload) Size() int {
	b := p.Image.Bounds()
	return b.Dx() * b.Dy() * 4
}

// Writable implements tilecache.RasterPayload.
func (p *Payload) Writable() bool { return p.writable }
