package geotiff

import (
	"image"
	"io"
)

// DecodeTile reads a GeoTIFF written by Encode with a non-nil TileBounds
// and recovers both the image and its projected bounding box from the
// pixel-scale/tiepoint tags. ok is false when the file carries no
// geo-referencing tags (e.g. one written with a nil TileBounds), in which
// case the bounds are zero.
func DecodeTile(r io.Reader) (img image.Image, minX, minY, maxX, maxY float64, ok bool, err error) {
	img, extra, err := Decode(r)
	if err != nil {
		return nil, 0, 0, 0, 0, false, err
	}

	scale, hasScale := extra[TagType_ModelPixelScaleTag].([]float64)
	tie, hasTie := extra[TagType_ModelTiepointTag].([]float64)
	if !hasScale || !hasTie || len(scale) < 2 || len(tie) < 6 {
		return img, 0, 0, 0, 0, false, nil
	}

	b := img.Bounds()
	minX = tie[3]
	maxY = tie[4]
	maxX = minX + scale[0]*float64(b.Dx())
	minY = maxY - scale[1]*float64(b.Dy())
	return img, minX, minY, maxX, maxY, true, nil
}
