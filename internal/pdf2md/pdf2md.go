// Package pdf2md rebuilds reading-order text from PDF glyph positions,
// classifies it into markdown blocks and extracts embedded raster images.
package pdf2md

import (
	"bytes"
	"fmt"
	"log"

	"github.com/ledongthuc/pdf"

	"docmark/internal/docerr"
	"docmark/internal/images"
	"docmark/internal/markdown"
)

const (
	// DefaultLineThreshold is the vertical distance, in points, beyond which
	// two words are placed on different lines.
	DefaultLineThreshold = 5.0

	// defaultPageHeight is US Letter, used when a page has no usable MediaBox.
	defaultPageHeight = 792.0
)

// Options tunes PDF conversion.
type Options struct {
	LineThreshold float64
	ExtractImages bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{LineThreshold: DefaultLineThreshold, ExtractImages: true}
}

// Convert reconstructs the text of every page and appends each page's
// images after its text. A page that cannot be read is logged and skipped.
func Convert(data []byte, opts Options, col *images.Collector) ([]markdown.Block, error) {
	if opts.LineThreshold <= 0 {
		opts.LineThreshold = DefaultLineThreshold
	}
	if col == nil {
		col = &images.Collector{}
	}
	r, err := openReader(data)
	if err != nil {
		return nil, err
	}
	encrypted := !r.Trailer().Key("Encrypt").IsNull()
	if encrypted && opts.ExtractImages {
		log.Printf("[PDF] encrypted document, image extraction skipped")
	}

	var blocks []markdown.Block
	pages := pageCount(r)
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page, opts.LineThreshold)
		if err != nil {
			log.Printf("[PDF] page %d text skipped: %v", i, err)
		}
		blocks = append(blocks, markdown.Classify(text, true)...)

		if !opts.ExtractImages || encrypted {
			continue
		}
		for _, img := range pageImages(data, page) {
			blocks = append(blocks, markdown.ImageRef{AssetID: col.Add(img).ID})
		}
	}
	return blocks, nil
}

// openReader parses the cross-reference table. The reader panics on some
// malformed input, which is reported as a structural error.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("%w: pdf: %v", docerr.ErrMalformedStructure, rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %v", docerr.ErrMalformedStructure, err)
	}
	return r, nil
}

func pageCount(r *pdf.Reader) (n int) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[PDF] page tree unreadable: %v", rec)
			n = 0
		}
	}()
	return r.NumPage()
}

// pageText returns the reconstructed lines of one page.
func pageText(page pdf.Page, threshold float64) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("content stream: %v", rec)
		}
	}()
	words := Words(page.Content().Text, pageHeight(page))
	return ReconstructLines(words, threshold), nil
}

// pageHeight reads the inherited MediaBox of a page.
func pageHeight(page pdf.Page) float64 {
	v := page.V
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}
