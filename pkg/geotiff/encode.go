package geotiff

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"
	"sort"
)

const (
	dataTypeShort    = 3
	dataTypeLong     = 4
	dataTypeRational = 5
	dataTypeDouble   = 12

	TagType_ImageWidth                = 256
	TagType_ImageLength               = 257
	TagType_BitsPerSample             = 258
	TagType_Compression               = 259
	TagType_PhotometricInterpretation = 262
	TagType_StripOffsets              = 273
	TagType_SamplesPerPixel           = 277
	TagType_RowsPerStrip              = 278
	TagType_StripByteCounts           = 279
	TagType_XResolution               = 282
	TagType_YResolution               = 283
	TagType_ResolutionUnit            = 296

	// GeoTIFF georeferencing tags (GeoTIFF spec 1.8.2).
	TagType_ModelPixelScaleTag = 33550
	TagType_ModelTiepointTag   = 33922
	TagType_GeoKeyDirectoryTag = 34735
	TagType_GeoDoubleParamsTag = 34736
	TagType_GeoAsciiParamsTag  = 34737
)

var enc = binary.LittleEndian

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

type byTag []ifdEntry

func (d byTag) Len() int           { return len(d) }
func (d byTag) Less(i, j int) bool { return d[i].tag < d[j].tag }
func (d byTag) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// TileBounds is a tile's projected bounding box: lower-left (MinX, MinY) to
// upper-right (MaxX, MaxY), in the same units as the raster's projection
// (Web Mercator meters for pkg/raster). Passing one to Encode embeds
// ModelPixelScaleTag/ModelTiepointTag so the resulting file is
// independently georeferenced, without a side-channel index.
type TileBounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Encode writes m to w as an uncompressed RGBA TIFF, one strip, no
// compression. When bounds is non-nil, the file additionally carries
// GeoTIFF tags recovered by Decode/DecodeTile; a nil bounds produces a
// plain TIFF with no geo tags.
func Encode(w io.Writer, m image.Image, bounds *TileBounds) error {
	b := m.Bounds()
	width, height := b.Dx(), b.Dy()

	header := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	if _, err := w.Write(header); err != nil {
		return err
	}

	pixelData := new(bytes.Buffer)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, blu, a := m.At(x, y).RGBA()
			pixelData.WriteByte(uint8(r >> 8))
			pixelData.WriteByte(uint8(g >> 8))
			pixelData.WriteByte(uint8(blu >> 8))
			pixelData.WriteByte(uint8(a >> 8))
		}
	}
	pixels := pixelData.Bytes()
	imageLen := uint32(len(pixels))

	var entries []ifdEntry
	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	addEntry(TagType_ImageWidth, dataTypeShort, 1, enc16(uint16(width)))
	addEntry(TagType_ImageLength, dataTypeShort, 1, enc16(uint16(height)))
	addEntry(TagType_BitsPerSample, dataTypeShort, 4, enc16s([]uint16{8, 8, 8, 8}))
	addEntry(TagType_Compression, dataTypeShort, 1, enc16(1))
	addEntry(TagType_PhotometricInterpretation, dataTypeShort, 1, enc16(2)) // RGB
	addEntry(TagType_SamplesPerPixel, dataTypeShort, 1, enc16(4))
	addEntry(TagType_RowsPerStrip, dataTypeShort, 1, enc16(uint16(height)))
	addEntry(TagType_XResolution, dataTypeRational, 1, encRational(72, 1))
	addEntry(TagType_YResolution, dataTypeRational, 1, encRational(72, 1))
	addEntry(TagType_ResolutionUnit, dataTypeShort, 1, enc16(2)) // inch

	// Placeholders; patched below once strip layout is known.
	addEntry(TagType_StripOffsets, dataTypeLong, 1, make([]byte, 4))
	addEntry(TagType_StripByteCounts, dataTypeLong, 1, make([]byte, 4))

	if bounds != nil {
		scaleX := (bounds.MaxX - bounds.MinX) / float64(width)
		scaleY := (bounds.MaxY - bounds.MinY) / float64(height)
		// Raster pixel (0,0) maps to the tile's upper-left corner in model space.
		addEntry(TagType_ModelPixelScaleTag, dataTypeDouble, 3, encDoubles([]float64{scaleX, scaleY, 0}))
		addEntry(TagType_ModelTiepointTag, dataTypeDouble, 6, encDoubles([]float64{0, 0, 0, bounds.MinX, bounds.MaxY, 0}))
	}

	sort.Sort(byTag(entries))

	ifdSize := 2 + 12*len(entries) + 4
	valueDataOffset := 8 + ifdSize

	var largeData bytes.Buffer
	for i := range entries {
		e := &entries[i]
		if len(e.data) <= 4 {
			continue
		}
		offset := uint32(valueDataOffset + largeData.Len())
		largeData.Write(e.data)
		e.data = enc32(offset)
	}

	pixelsOffset := uint32(valueDataOffset + largeData.Len())
	for i := range entries {
		switch entries[i].tag {
		case TagType_StripOffsets:
			entries[i].data = enc32(pixelsOffset) // single strip
		case TagType_StripByteCounts:
			entries[i].data = enc32(imageLen)
		}
	}

	if err := binary.Write(w, enc, uint16(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(w, enc, e.tag); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.datatype); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.count); err != nil {
			return err
		}
		var val [4]byte
		copy(val[:], e.data)
		if _, err := w.Write(val[:]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, enc, uint32(0)); err != nil { // next IFD offset
		return err
	}

	if _, err := largeData.WriteTo(w); err != nil {
		return err
	}
	if _, err := w.Write(pixels); err != nil {
		return err
	}
	return nil
}

func enc16(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func enc32(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func enc16s(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func encRational(num, den uint32) []byte {
	b := make([]byte, 8)
	enc.PutUint32(b[:4], num)
	enc.PutUint32(b[4:], den)
	return b
}
