// Package bytescan recovers readable text from byte buffers whose structure
// is unknown or damaged. It is the lowest layer of the legacy extraction
// chain and has no knowledge of any container format.
package bytescan

import (
	"bytes"
	"strings"
	"unicode"
)

const (
	// MinRunLength is the shortest printable run kept by PrintableRuns.
	// Shorter runs are almost always noise from binary tables.
	MinRunLength = 4

	// WrapWidth is the column after which Wrap breaks at the next space.
	WrapWidth = 50
)

// isPrintable reports whether b is in the printable ASCII range.
func isPrintable(b byte) bool {
	return b >= 32 && b <= 126
}

// PrintableRuns returns every contiguous run of printable ASCII bytes whose
// length is at least minLen, in buffer order.
func PrintableRuns(data []byte, minLen int) []string {
	if minLen < 1 {
		minLen = 1
	}
	var runs []string
	start := -1
	for i, b := range data {
		if isPrintable(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minLen {
			runs = append(runs, string(data[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(data)-start >= minLen {
		runs = append(runs, string(data[start:]))
	}
	return runs
}

// IndexMarker returns the offset of the first occurrence of marker in data,
// or -1 when absent. An empty marker never matches.
func IndexMarker(data, marker []byte) int {
	if len(marker) == 0 {
		return -1
	}
	return bytes.Index(data, marker)
}

// DecodeUTF16Printable walks data as little-endian 16-bit code units and
// keeps only units whose high byte is zero and whose low byte is printable
// ASCII. A carriage return unit (13,0) becomes a line break; every other
// unit is dropped. A trailing odd byte is ignored.
func DecodeUTF16Printable(data []byte) string {
	var sb strings.Builder
	for i := 0; i+1 < len(data); i += 2 {
		lo, hi := data[i], data[i+1]
		if hi != 0 {
			continue
		}
		switch {
		case lo == 13:
			sb.WriteByte('\n')
		case isPrintable(lo):
			sb.WriteByte(lo)
		}
	}
	return sb.String()
}

// CollapseWhitespace replaces every run of whitespace with a single space
// and trims both ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Wrap inserts a line break at the first space found after every width
// characters of s. Words are never split.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	var sb strings.Builder
	col := 0
	for _, r := range s {
		if r == ' ' && col >= width {
			sb.WriteByte('\n')
			col = 0
			continue
		}
		sb.WriteRune(r)
		col++
	}
	return sb.String()
}

// ScanText is the last-resort text recovery: printable runs longer than
// three bytes are joined with spaces, whitespace is collapsed and the result
// is wrapped at WrapWidth.
func ScanText(data []byte) string {
	runs := PrintableRuns(data, MinRunLength)
	if len(runs) == 0 {
		return ""
	}
	return Wrap(CollapseWhitespace(strings.Join(runs, " ")), WrapWidth)
}
