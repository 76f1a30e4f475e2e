package markdown

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PlainHeadingLevel is the level given to headings detected in plain text.
const PlainHeadingLevel = 2

// maxHeadingLen is the exclusive rune limit for a heading candidate.
const maxHeadingLen = 100

// bulletGlyphs are the leading characters that mark an unordered list line.
var bulletGlyphs = []string{"•", "◦", "▪", "▫", "●", "○", "■", "□", "►", "➢", "✓", "‣", "⁃", "*", "-"}

var numberedRe = regexp.MustCompile(`^\s*\d+[.)]\s+`)

// ListLine reports whether line is a list item and returns its text without
// the marker.
func ListLine(line string) (text string, ordered bool, ok bool) {
	if loc := numberedRe.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:]), true, true
	}
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	for _, g := range bulletGlyphs {
		if strings.HasPrefix(trimmed, g) {
			return strings.TrimSpace(trimmed[len(g):]), false, true
		}
	}
	return "", false, false
}

// IsHeadingLine applies the plain-text heading heuristic: non-empty, shorter
// than 100 characters, no trailing period and an uppercase first letter.
func IsHeadingLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || utf8.RuneCountInString(line) >= maxHeadingLen {
		return false
	}
	if strings.HasSuffix(line, ".") {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	return unicode.IsUpper(first)
}

// Classify turns recovered plain text into blocks. Blank lines end lists
// and paragraphs. When splitParagraphs is false consecutive body lines are
// joined into one paragraph; when true every body line is its own paragraph.
func Classify(text string, splitParagraphs bool) []Block {
	var (
		blocks  []Block
		pending []string
		inList  bool
	)
	flush := func() {
		if len(pending) > 0 {
			blocks = append(blocks, Paragraph{Text: strings.Join(pending, "\n")})
			pending = nil
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			inList = false
			continue
		}
		if item, ordered, ok := ListLine(line); ok {
			flush()
			blocks = append(blocks, ListItem{Ordered: ordered, Text: item, NewList: !inList})
			inList = true
			continue
		}
		inList = false
		if IsHeadingLine(line) {
			flush()
			blocks = append(blocks, Heading{Level: PlainHeadingLevel, Text: line})
			continue
		}
		if splitParagraphs {
			blocks = append(blocks, Paragraph{Text: line})
			continue
		}
		pending = append(pending, line)
	}
	flush()
	return blocks
}
