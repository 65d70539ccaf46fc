package geotiff

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
)

// Decode reads a TIFF produced by Encode: little-endian, single IFD, a
// single uncompressed RGBA strip. It is the read-side counterpart Encode
// never needed when this package only served a one-way export path; tile
// rehydration needs it to come back the other way.
func Decode(r io.Reader) (image.Image, map[uint16]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("geotiff: file too short")
	}
	if data[0] != 'I' || data[1] != 'I' || data[2] != 0x2A || data[3] != 0x00 {
		return nil, nil, fmt.Errorf("geotiff: unsupported byte order or magic")
	}
	ifdOffset := enc.Uint32(data[4:8])

	count := enc.Uint16(data[ifdOffset : ifdOffset+2])
	pos := ifdOffset + 2

	var width, height, spp int
	var stripOffset, stripByteCount uint32
	extra := map[uint16]interface{}{}

	for i := 0; i < int(count); i++ {
		entry := data[pos : pos+12]
		tag := enc.Uint16(entry[0:2])
		datatype := enc.Uint16(entry[2:4])
		cnt := enc.Uint32(entry[4:8])
		valField := entry[8:12]

		switch tag {
		case TagType_ImageWidth:
			width = int(enc.Uint16(valField[0:2]))
		case TagType_ImageLength:
			height = int(enc.Uint16(valField[0:2]))
		case TagType_SamplesPerPixel:
			spp = int(enc.Uint16(valField[0:2]))
		case TagType_StripOffsets:
			stripOffset = enc.Uint32(valField)
		case TagType_StripByteCounts:
			stripByteCount = enc.Uint32(valField)
		case TagType_ModelPixelScaleTag, TagType_ModelTiepointTag, TagType_GeoDoubleParamsTag:
			extra[tag] = readDoubles(data, datatype, cnt, valField)
		case TagType_GeoKeyDirectoryTag:
			extra[tag] = readShorts(data, datatype, cnt, valField)
		case TagType_GeoAsciiParamsTag:
			extra[tag] = readASCII(data, datatype, cnt, valField)
		}
		pos += 12
	}

	if width == 0 || height == 0 {
		return nil, nil, fmt.Errorf("geotiff: missing ImageWidth/ImageLength tag")
	}
	if spp == 0 {
		spp = 4
	}
	if int(stripByteCount) < width*height*spp {
		return nil, nil, fmt.Errorf("geotiff: strip shorter than pixel grid")
	}
	pixels := data[stripOffset : stripOffset+stripByteCount]

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if spp == 4 {
		copy(img.Pix, pixels[:width*height*4])
	} else {
		for i := 0; i < width*height; i++ {
			base := i * spp
			img.Pix[i*4+0] = pixels[base]
			img.Pix[i*4+1] = pixels[base]
			img.Pix[i*4+2] = pixels[base]
			img.Pix[i*4+3] = 0xff
		}
	}

	return img, extra, nil
}

func readDoubles(data []byte, datatype uint16, cnt uint32, valField []byte) []float64 {
	n := int(cnt)
	src := valuesArea(data, datatype, n, 8, valField)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(enc.Uint64(src[i*8 : i*8+8]))
	}
	return out
}

func readShorts(data []byte, datatype uint16, cnt uint32, valField []byte) []uint16 {
	n := int(cnt)
	src := valuesArea(data, datatype, n, 2, valField)
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = enc.Uint16(src[i*2 : i*2+2])
	}
	return out
}

func readASCII(data []byte, datatype uint16, cnt uint32, valField []byte) string {
	n := int(cnt)
	src := valuesArea(data, datatype, n, 1, valField)
	return string(bytes.TrimRight(src[:n], "\x00"))
}

// valuesArea returns the byte slice holding a tag's values: the inline
// value field itself if it all fits in 4 bytes, or the out-of-line data
// area the value field points to otherwise.
func valuesArea(data []byte, _ uint16, n, elemSize int, valField []byte) []byte {
	total := n * elemSize
	if total <= 4 {
		return valField
	}
	offset := enc.Uint32(valField)
	return data[offset : offset+uint32(total)]
}
