package pdf2md

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/image/ccitt"

	"docmark/internal/images"
)

var errUnsupportedImage = errors.New("unsupported image encoding")

// maxImagePixels bounds the raster allocated for one decoded image. The
// declared size comes from the document and is not checked against the
// stream length by any decoder.
const maxImagePixels = 100_000_000

// checkPixels rejects images whose declared size exceeds maxImagePixels.
func checkPixels(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if int64(width)*int64(height) > maxImagePixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", errUnsupportedImage, width, height, maxImagePixels)
	}
	return nil
}

// pageImages extracts the image XObjects of a page. Images that cannot be
// decoded are logged and skipped.
func pageImages(data []byte, page pdf.Page) [][]byte {
	var out [][]byte
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[PDF] resources unreadable: %v", rec)
			}
		}()
		xobjects := page.Resources().Key("XObject")
		for _, name := range xobjects.Keys() {
			x := xobjects.Key(name)
			if x.Kind() != pdf.Stream || x.Key("Subtype").Name() != "Image" {
				continue
			}
			img, err := extractImage(data, x)
			if err != nil {
				log.Printf("[PDF] image %s skipped: %v", name, err)
				continue
			}
			out = append(out, img)
		}
	}()
	return out
}

// extractImage returns JPEG data as stored and re-encodes everything else it
// can decode as PNG.
func extractImage(data []byte, x pdf.Value) (img []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img = nil
			err = fmt.Errorf("decode: %v", rec)
		}
	}()
	raw, err := rawStream(data, x)
	if err != nil {
		return nil, err
	}
	filters, params := filterChain(x)
	switch len(filters) {
	case 0:
		return pixelsToPNG(raw, x, pdf.Value{})
	case 1:
	default:
		return nil, fmt.Errorf("%w: filter chain %v", errUnsupportedImage, filters)
	}

	switch filters[0] {
	case "DCTDecode", "DCT":
		return raw, nil
	case "FlateDecode", "Fl":
		width := int(x.Key("Width").Int64())
		height := int(x.Key("Height").Int64())
		if err := checkPixels(width, height); err != nil {
			return nil, err
		}
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("inflate: %w", err)
		}
		defer zr.Close()
		// Four samples per pixel plus one predictor byte per row is the most
		// pixelsToPNG can use.
		limit := (int64(width)*4+1)*int64(height) + 1
		inflated, err := io.ReadAll(io.LimitReader(zr, limit))
		if err != nil {
			return nil, fmt.Errorf("inflate: %w", err)
		}
		return pixelsToPNG(inflated, x, params[0])
	case "CCITTFaxDecode", "CCF":
		return ccittToPNG(raw, x, params[0])
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedImage, filters[0])
}

// rawStream returns the undecoded bytes of a stream object. The reader only
// exposes decoded streams, and it panics on DCT data, so the stream is
// located through its header offset instead.
func rawStream(data []byte, x pdf.Value) ([]byte, error) {
	desc := x.String()
	at := strings.LastIndex(desc, "@")
	if at < 0 {
		return nil, fmt.Errorf("stream offset not found")
	}
	offset, err := strconv.ParseInt(desc[at+1:], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stream offset: %w", err)
	}
	length := x.Key("Length").Int64()
	if offset < 0 || length <= 0 || offset+length > int64(len(data)) {
		return nil, fmt.Errorf("stream bounds %d+%d outside %d bytes", offset, length, len(data))
	}
	return data[offset : offset+length], nil
}

// filterChain normalizes /Filter and /DecodeParms to parallel slices.
func filterChain(x pdf.Value) ([]string, []pdf.Value) {
	f := x.Key("Filter")
	p := x.Key("DecodeParms")
	switch f.Kind() {
	case pdf.Name:
		if p.Kind() == pdf.Array {
			p = p.Index(0)
		}
		return []string{f.Name()}, []pdf.Value{p}
	case pdf.Array:
		names := make([]string, f.Len())
		params := make([]pdf.Value, f.Len())
		for i := range names {
			names[i] = f.Index(i).Name()
			params[i] = p.Index(i)
		}
		return names, params
	}
	return nil, nil
}

// components returns the samples per pixel of a colour space, or 0 when the
// space is not supported.
func components(cs pdf.Value) int {
	switch cs.Kind() {
	case pdf.Name:
		switch cs.Name() {
		case "DeviceGray", "CalGray", "G":
			return 1
		case "DeviceRGB", "CalRGB", "RGB":
			return 3
		case "DeviceCMYK", "CMYK":
			return 4
		}
	case pdf.Array:
		if cs.Index(0).Name() == "ICCBased" {
			return int(cs.Index(1).Key("N").Int64())
		}
	}
	return 0
}

// pixelsToPNG turns 8-bit samples into a PNG. Rows carrying a PNG predictor
// byte are unfiltered first.
func pixelsToPNG(samples []byte, x pdf.Value, params pdf.Value) ([]byte, error) {
	width := int(x.Key("Width").Int64())
	height := int(x.Key("Height").Int64())
	if err := checkPixels(width, height); err != nil {
		return nil, err
	}
	if bpc := x.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, fmt.Errorf("%w: %d bits per component", errUnsupportedImage, bpc)
	}
	comps := components(x.Key("ColorSpace"))
	if comps != 1 && comps != 3 && comps != 4 {
		return nil, fmt.Errorf("%w: colour space %v", errUnsupportedImage, x.Key("ColorSpace"))
	}

	rowBytes := width * comps
	expectedPlain := rowBytes * height
	expectedPredicted := (rowBytes + 1) * height
	predicted := params.Key("Predictor").Int64() >= 10 ||
		(len(samples) == expectedPredicted && len(samples) != expectedPlain)

	pixels := samples
	if predicted {
		if len(samples) < expectedPredicted {
			return nil, fmt.Errorf("short predicted data: %d < %d", len(samples), expectedPredicted)
		}
		pixels = decodePNGPredictor(samples, width, height, comps)
	} else if len(samples) < expectedPlain {
		return nil, fmt.Errorf("short pixel data: %d < %d", len(samples), expectedPlain)
	}

	rect := image.Rect(0, 0, width, height)
	var img image.Image
	switch comps {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, pixels[:expectedPlain])
		img = g
	case 3:
		rgba := image.NewNRGBA(rect)
		for i, o := 0, 0; i < expectedPlain; i, o = i+3, o+4 {
			rgba.Pix[o] = pixels[i]
			rgba.Pix[o+1] = pixels[i+1]
			rgba.Pix[o+2] = pixels[i+2]
			rgba.Pix[o+3] = 255
		}
		img = rgba
	case 4:
		cmyk := image.NewCMYK(rect)
		copy(cmyk.Pix, pixels[:expectedPlain])
		img = cmyk
	}
	return images.EncodePNG(img)
}

// ccittToPNG decodes Group 3 (one-dimensional) and Group 4 fax data.
func ccittToPNG(raw []byte, x pdf.Value, params pdf.Value) ([]byte, error) {
	k := params.Key("K").Int64()
	var sf ccitt.SubFormat
	switch {
	case k < 0:
		sf = ccitt.Group4
	case k == 0:
		sf = ccitt.Group3
	default:
		return nil, fmt.Errorf("%w: mixed CCITT K=%d", errUnsupportedImage, k)
	}
	width := int(params.Key("Columns").Int64())
	if width <= 0 {
		width = int(x.Key("Width").Int64())
	}
	if width <= 0 {
		width = 1728
	}
	height := int(x.Key("Height").Int64())
	if height <= 0 {
		height = int(params.Key("Rows").Int64())
	}
	if height <= 0 {
		return nil, fmt.Errorf("invalid CCITT height")
	}
	if err := checkPixels(width, height); err != nil {
		return nil, err
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	opts := &ccitt.Options{
		Align:  params.Key("EncodedByteAlign").Bool(),
		Invert: params.Key("BlackIs1").Bool(),
	}
	if err := ccitt.DecodeIntoGray(dst, bytes.NewReader(raw), ccitt.MSB, sf, opts); err != nil {
		return nil, fmt.Errorf("ccitt: %w", err)
	}
	return images.EncodePNG(dst)
}

// decodePNGPredictor reverses PNG row filters. Each row starts with a filter
// type byte (0 None, 1 Sub, 2 Up, 3 Average, 4 Paeth) followed by rowBytes
// of filtered samples.
func decodePNGPredictor(data []byte, width, height, bytesPerPixel int) []byte {
	rowBytes := width * bytesPerPixel
	srcStride := rowBytes + 1
	out := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		src := data[y*srcStride : (y+1)*srcStride]
		filtered := src[1:]
		dst := out[y*rowBytes : (y+1)*rowBytes]
		var prev []byte
		if y > 0 {
			prev = out[(y-1)*rowBytes : y*rowBytes]
		}

		for i := 0; i < rowBytes; i++ {
			var left, up, upLeft byte
			if i >= bytesPerPixel {
				left = dst[i-bytesPerPixel]
			}
			if prev != nil {
				up = prev[i]
				if i >= bytesPerPixel {
					upLeft = prev[i-bytesPerPixel]
				}
			}
			switch src[0] {
			case 1:
				dst[i] = filtered[i] + left
			case 2:
				dst[i] = filtered[i] + up
			case 3:
				dst[i] = filtered[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = filtered[i] + paethPredictor(left, up, upLeft)
			default:
				dst[i] = filtered[i]
			}
		}
	}
	return out
}

// paethPredictor picks whichever of left, up and upper-left is closest to
// left+up-upLeft.
func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
