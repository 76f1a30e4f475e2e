package images

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"
	"log"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Normalize re-encodes BMP, TIFF and GIF data as PNG so that every asset is
// either JPEG or PNG. Other data, and data that fails to decode, is
// returned unchanged.
func Normalize(data []byte) []byte {
	var decode func([]byte) (image.Image, error)
	switch {
	case bytes.HasPrefix(data, []byte("BM")):
		decode = func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) }
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		decode = func(b []byte) (image.Image, error) { return tiff.Decode(bytes.NewReader(b)) }
	case bytes.HasPrefix(data, []byte("GIF8")):
		decode = func(b []byte) (image.Image, error) { return gif.Decode(bytes.NewReader(b)) }
	default:
		return data
	}

	img, err := decode(data)
	if err != nil {
		log.Printf("[Image] decode for PNG conversion failed: %v", err)
		return data
	}
	encoded, err := EncodePNG(img)
	if err != nil {
		log.Printf("[Image] PNG encode failed: %v", err)
		return data
	}
	return encoded
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
