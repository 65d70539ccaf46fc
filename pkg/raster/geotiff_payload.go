package raster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/waltercore/rastercache/pkg/geotiff"
	"github.com/waltercore/rastercache/pkg/tilecache"
)

// GeoTIFFSerializer is a reference tilecache.DiskSerializer that spills
// tile payloads to disk as uncompressed GeoTIFFs. TileId is opaque by
// design (see tilecache's TileId derivation), so a tile's own geo-key tags
// cannot be reconstructed from the id alone at write time; WriteTo takes
// them from the Payload's bounds instead (see NewPayloadWithBounds) and
// writes a plain TIFF when the Payload has none.
type GeoTIFFSerializer struct{}

// NewGeoTIFFSerializer returns a ready-to-use serializer.
func NewGeoTIFFSerializer() *GeoTIFFSerializer {
	return &GeoTIFFSerializer{}
}

// WriteTo implements tilecache.DiskSerializer. It encodes payload's image
// to a temp file named with a random id, then renames it into place so a
// reader never observes a partially written tile.
func (s *GeoTIFFSerializer) WriteTo(dir string, id tilecache.TileId, payload tilecache.RasterPayload) (string, error) {
	p, ok := payload.(*Payload)
	if !ok {
		return "", errors.Errorf("raster: payload is not *raster.Payload (%T)", payload)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "raster: create cache dir")
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf("%s.tmp-%s", sanitize(id.String()), uuid.NewString()))
	finalPath := filepath.Join(dir, sanitize(id.String())+".tif")

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.Wrap(err, "raster: create temp tile file")
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var bounds *geotiff.TileBounds
	if p.HasBounds {
		bounds = &geotiff.TileBounds{MinX: p.MinX, MinY: p.MinY, MaxX: p.MaxX, MaxY: p.MaxY}
	}
	encodeErr := geotiff.Encode(buf, p.Image, bounds)
	if encodeErr != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", errors.Wrap(encodeErr, "raster: encode tile")
	}
	if _, err := f.Write(buf.B); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "raster: write tile")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "raster: close tile file")
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "raster: commit tile file")
	}
	return finalPath, nil
}

// ReadFrom implements tilecache.DiskSerializer.
func (s *GeoTIFFSerializer) ReadFrom(path string) (tilecache.RasterPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, minX, minY, maxX, maxY, hasBounds, err := geotiff.DecodeTile(f)
	if err != nil {
		return nil, errors.Wrap(err, "raster: decode tile")
	}
	return &Payload{
		Image:     img,
		MinX:      minX,
		MinY:      minY,
		MaxX:      maxX,
		MaxY:      maxY,
		HasBounds: hasBounds,
		writable:  false,
	}, nil
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
