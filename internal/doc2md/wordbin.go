package doc2md

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"docmark/internal/docerr"
)

// minImageSize filters icons and bullets out of the Data stream scan.
const minImageSize = 1024

// FIB offsets used to find the piece table.
const (
	fibFlagsOffset  = 0x000A
	fibFcClxOffset  = 0x01A2
	fibLcbClxOffset = 0x01A6
	fcCompressed    = 0x40000000
	maxPieceChars   = 1000000
)

// Special characters in the Word text stream.
const (
	chParagraph  = 0x0D
	chLineBreak  = 0x0B
	chCellMark   = 0x07
	chFieldBegin = 0x13
	chFieldSep   = 0x14
	chFieldEnd   = 0x15
)

type wordBinary struct {
	text   string
	images [][]byte
}

// readWordBinary opens data as a compound file and reconstructs the
// document text from the WordDocument and table streams. Embedded JPEG and
// PNG images are recovered from the Data stream.
func readWordBinary(data []byte) (doc *wordBinary, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("doc: compound file panic: %v", r)
		}
	}()

	cf, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docerr.ErrMalformedStructure, err)
	}

	streams := make(map[string][]byte)
	for {
		entry, nextErr := cf.Next()
		if nextErr != nil {
			break
		}
		switch entry.Name {
		case "WordDocument", "0Table", "1Table", "Data":
			b, readErr := io.ReadAll(entry)
			if readErr == nil {
				streams[entry.Name] = b
			}
		}
	}

	wordDoc := streams["WordDocument"]
	if len(wordDoc) < fibFlagsOffset+2 {
		return nil, fmt.Errorf("%w: WordDocument stream missing", docerr.ErrMalformedStructure)
	}

	table := streams["0Table"]
	if binary.LittleEndian.Uint16(wordDoc[fibFlagsOffset:])&(1<<9) != 0 {
		table = streams["1Table"]
	}
	if len(table) == 0 {
		// some writers set the flag wrong; take whichever exists
		table = streams["1Table"]
		if len(table) == 0 {
			table = streams["0Table"]
		}
	}

	text := textFromPieceTable(wordDoc, table)
	if text == "" {
		text = textFromWordStream(wordDoc)
	}
	doc = &wordBinary{text: filterFieldCodeLines(text)}

	if dataStream := streams["Data"]; len(dataStream) > 0 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[DOC] image scan panic: %v", r)
				}
			}()
			doc.images = scanEmbeddedImages(dataStream)
		}()
	}
	return doc, nil
}

// textFromPieceTable follows the CLX in the table stream to the piece
// descriptors and decodes every piece from the WordDocument stream.
func textFromPieceTable(wordDoc, table []byte) string {
	if len(wordDoc) < fibLcbClxOffset+4 || len(table) == 0 {
		return ""
	}
	fcClx := int(binary.LittleEndian.Uint32(wordDoc[fibFcClxOffset:]))
	lcbClx := int(binary.LittleEndian.Uint32(wordDoc[fibLcbClxOffset:]))
	if fcClx <= 0 || lcbClx <= 0 || fcClx+lcbClx > len(table) {
		return ""
	}
	clx := table[fcClx : fcClx+lcbClx]

	// Skip Prc entries (0x01) until the Pcdt (0x02).
	pos := 0
	for pos < len(clx) && clx[pos] == 0x01 {
		if pos+3 > len(clx) {
			return ""
		}
		pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:]))
	}
	if pos >= len(clx) || clx[pos] != 0x02 || pos+5 > len(clx) {
		return ""
	}
	lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
	pos += 5
	if lcb < 16 || pos+lcb > len(clx) {
		return ""
	}
	plc := clx[pos : pos+lcb]

	// PlcPcd: n+1 character positions followed by n 8-byte descriptors.
	n := (lcb - 4) / 12
	cpBytes := (n + 1) * 4
	if n <= 0 || cpBytes+n*8 > lcb {
		return ""
	}

	var w fieldWriter
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plc[i*4:])
		cpEnd := binary.LittleEndian.Uint32(plc[(i+1)*4:])
		if cpEnd <= cpStart || cpEnd-cpStart > maxPieceChars {
			continue
		}
		count := int(cpEnd - cpStart)
		fc := binary.LittleEndian.Uint32(plc[cpBytes+i*8+2:])

		var chunk []byte
		var decoded []byte
		var err error
		if fc&fcCompressed != 0 {
			off := int(fc&^fcCompressed) / 2
			if off+count > len(wordDoc) {
				continue
			}
			chunk = wordDoc[off : off+count]
			decoded, err = charmap.Windows1252.NewDecoder().Bytes(chunk)
		} else {
			off := int(fc)
			if off+2*count > len(wordDoc) {
				continue
			}
			chunk = wordDoc[off : off+2*count]
			decoded, err = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(chunk)
		}
		if err != nil {
			continue
		}
		w.writeString(string(decoded))
	}
	return w.String()
}

// textFromWordStream is used when there is no usable piece table: it keeps
// printable runs of the WordDocument stream line by line.
func textFromWordStream(wordDoc []byte) string {
	var sb strings.Builder
	inText := false
	for _, b := range wordDoc {
		if (b >= 0x20 && b < 0x7F) || b == '\t' {
			sb.WriteByte(b)
			inText = true
			continue
		}
		if b == chParagraph || (inText && sb.Len() > 0) {
			sb.WriteByte('\n')
		}
		inText = false
	}
	return sb.String()
}

// fieldWriter maps Word control characters to text. Field instructions
// (between a field begin and its separator) are dropped and the field
// result is kept.
type fieldWriter struct {
	sb strings.Builder
	// instr has one entry per open field; true while still in the
	// instruction part.
	instr []bool
}

func (w *fieldWriter) inInstruction() bool {
	return len(w.instr) > 0 && w.instr[len(w.instr)-1]
}

func (w *fieldWriter) writeString(s string) {
	for _, r := range s {
		switch r {
		case chFieldBegin:
			w.instr = append(w.instr, true)
			continue
		case chFieldSep:
			if len(w.instr) > 0 {
				w.instr[len(w.instr)-1] = false
			}
			continue
		case chFieldEnd:
			if len(w.instr) > 0 {
				w.instr = w.instr[:len(w.instr)-1]
			}
			continue
		}
		if w.inInstruction() {
			continue
		}
		switch {
		case r == chParagraph || r == chLineBreak:
			w.sb.WriteByte('\n')
		case r == chCellMark:
			w.sb.WriteByte('\t')
		case r == '\t' || r >= 0x20:
			w.sb.WriteRune(r)
		}
	}
}

func (w *fieldWriter) String() string { return w.sb.String() }

// fieldCodeMarkers identify lines that are leaked field instructions.
var fieldCodeMarkers = []string{
	"HYPERLINK",
	"PAGEREF",
	"MERGEFORMAT",
	`TOC \o`,
	`TOC \h`,
	`\l "`,
	` \h`,
}

// filterFieldCodeLines drops lines that still carry field instructions,
// which happens when a document has unbalanced field markers.
func filterFieldCodeLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isFieldCodeLine(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isFieldCodeLine(line string) bool {
	if line == "" {
		return false
	}
	for _, m := range fieldCodeMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

var (
	jpegStart = []byte{0xFF, 0xD8, 0xFF}
	jpegEnd   = []byte{0xFF, 0xD9}
	pngStart  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	pngEnd    = []byte{0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}
)

// scanEmbeddedImages finds JPEG and PNG images in the Data stream by their
// signatures. A JPEG ends at the last EOI before the next image start; a PNG
// ends at its IEND chunk. Images under minImageSize are skipped.
func scanEmbeddedImages(stream []byte) [][]byte {
	var out [][]byte
	keep := func(b []byte) {
		if len(b) >= minImageSize {
			out = append(out, append([]byte(nil), b...))
		}
	}

	pos := 0
	for pos < len(stream) {
		rest := stream[pos:]
		switch {
		case bytes.HasPrefix(rest, jpegStart):
			limit := nextImageStart(stream, pos+len(jpegStart))
			eoi := bytes.LastIndex(stream[pos+len(jpegStart):limit], jpegEnd)
			if eoi < 0 {
				pos++
				continue
			}
			end := pos + len(jpegStart) + eoi + len(jpegEnd)
			keep(stream[pos:end])
			pos = end
		case bytes.HasPrefix(rest, pngStart):
			iend := bytes.Index(rest[len(pngStart):], pngEnd)
			if iend < 0 {
				pos++
				continue
			}
			end := pos + len(pngStart) + iend + len(pngEnd)
			keep(stream[pos:end])
			pos = end
		default:
			pos++
		}
	}
	return out
}

// nextImageStart returns the offset of the next JPEG or PNG signature at or
// after from, or len(stream).
func nextImageStart(stream []byte, from int) int {
	next := len(stream)
	if i := bytes.Index(stream[from:], jpegStart); i >= 0 {
		next = from + i
	}
	if i := bytes.Index(stream[from:], pngStart); i >= 0 && from+i < next {
		next = from + i
	}
	return next
}
