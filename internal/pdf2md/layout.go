package pdf2md

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Word is a run of glyphs in top-down page space: Bottom is the distance
// from the top edge of the page to the word's baseline.
type Word struct {
	Text   string
	Left   float64
	Right  float64
	Bottom float64
}

// baselineTolerance absorbs rounding in text matrices.
const baselineTolerance = 0.5

// glyphWidth returns the advance of g. Fonts without a Widths array report
// zero, so an average glyph width is assumed.
func glyphWidth(g pdf.Text) float64 {
	if g.W > 0 {
		return g.W
	}
	return g.FontSize * 0.55
}

// gapThreshold is the horizontal gap that separates two words.
func gapThreshold(fontSize float64) float64 {
	return math.Max(1, 0.2*fontSize)
}

// Words groups positioned glyphs into words. A word ends at whitespace, at a
// baseline change, when the pen moves backwards or when the gap to the next
// glyph is wider than gapThreshold.
func Words(glyphs []pdf.Text, pageHeight float64) []Word {
	var (
		words   []Word
		cur     Word
		sb      strings.Builder
		open    bool
		prev    pdf.Text
		prevEnd float64
	)
	flush := func() {
		if open && sb.Len() > 0 {
			cur.Text = sb.String()
			words = append(words, cur)
		}
		sb.Reset()
		open = false
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		width := glyphWidth(g)
		if open {
			switch {
			case math.Abs(g.Y-prev.Y) > baselineTolerance:
				flush()
			case g.X < prev.X-baselineTolerance:
				flush()
			case g.X-prevEnd > gapThreshold(g.FontSize):
				flush()
			}
		}
		if !open {
			cur = Word{Left: g.X, Right: g.X, Bottom: pageHeight - g.Y}
			open = true
		}
		sb.WriteString(g.S)
		cur.Right = math.Max(cur.Right, g.X+width)
		prev, prevEnd = g, g.X+width
	}
	flush()
	return words
}

// ReconstructLines orders words by (Bottom, Left) and joins them into lines.
// A word whose Bottom differs from the current line's by more than threshold
// starts a new line; otherwise it is appended after a single space.
func ReconstructLines(words []Word, threshold float64) string {
	if len(words) == 0 {
		return ""
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Bottom != sorted[j].Bottom {
			return sorted[i].Bottom < sorted[j].Bottom
		}
		return sorted[i].Left < sorted[j].Left
	})

	var sb strings.Builder
	lineBottom := sorted[0].Bottom
	for i, w := range sorted {
		if i > 0 {
			if math.Abs(w.Bottom-lineBottom) > threshold {
				sb.WriteByte('\n')
				lineBottom = w.Bottom
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(w.Text)
	}
	return sb.String()
}
