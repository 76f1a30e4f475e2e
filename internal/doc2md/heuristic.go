package doc2md

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"docmark/internal/bytescan"
	"docmark/internal/docerr"
	"docmark/internal/markdown"
)

// TextMarker is the compound-file signature that precedes the text streams
// of a legacy document.
var TextMarker = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// RecommendationNotice is emitted when no text marker is present.
const RecommendationNotice = "This legacy document could not be read. Open it in a word processor, save it as .docx and convert it again."

// HeuristicBinary reads the text stream of a legacy document without any
// native help. It first reconstructs text from the compound file's piece
// table and, when that is impossible, decodes the bytes after the marker as
// UTF-16LE keeping printable ASCII only.
type HeuristicBinary struct{}

func (HeuristicBinary) Name() string     { return "heuristic" }
func (HeuristicBinary) Available() error { return nil }

func (HeuristicBinary) Extract(_ context.Context, data []byte) (*Extraction, error) {
	idx := bytescan.IndexMarker(data, TextMarker)
	if idx < 0 {
		log.Printf("[DOC] text marker not found in %d bytes", len(data))
		return &Extraction{
			Blocks: []markdown.Block{markdown.RawComment{Text: RecommendationNotice}},
			Notice: fmt.Errorf("%w: text marker not found", docerr.ErrUnsupportedContainer),
		}, nil
	}
	body := data[idx:]

	doc, err := readWordBinary(body)
	if err == nil && strings.TrimSpace(doc.text) != "" {
		return &Extraction{Text: doc.text, Images: doc.images}, nil
	}
	if err != nil {
		log.Printf("[DOC] compound file unreadable, scanning raw UTF-16: %v", err)
	}

	text := bytescan.DecodeUTF16Printable(body[len(TextMarker):])
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no UTF-16 text after marker")
	}
	return &Extraction{Text: text}, nil
}
