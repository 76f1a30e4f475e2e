package markdown

import (
	"strconv"
	"strings"
)

// Resolver maps an image asset id to the reference placed in ![image](...).
type Resolver func(assetID string) string

// Render turns blocks into a Markdown document. Blocks are separated by one
// blank line, except a list item continuing the previous list which follows
// on the next line. An empty Paragraph adds one extra blank line. A nil
// resolver uses the asset id itself as the image reference.
func Render(blocks []Block, resolve Resolver) string {
	if resolve == nil {
		resolve = func(id string) string { return id }
	}
	var sb strings.Builder
	prevList := false
	for i, b := range blocks {
		item, isItem := b.(ListItem)
		if i > 0 {
			if isItem && prevList && !item.NewList {
				sb.WriteByte('\n')
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(renderBlock(b, resolve))
		prevList = isItem
	}
	out := strings.Trim(sb.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

func renderBlock(b Block, resolve Resolver) string {
	switch v := b.(type) {
	case Heading:
		return strings.Repeat("#", clampLevel(v.Level)) + " " + v.Text
	case Paragraph:
		return v.Text
	case ListItem:
		return renderListItem(v)
	case BlockQuote:
		lines := strings.Split(v.Text, "\n")
		for i, l := range lines {
			lines[i] = "> " + l
		}
		return strings.Join(lines, "\n")
	case Table:
		return renderTable(v)
	case ImageRef:
		return "![image](" + resolve(v.AssetID) + ")"
	case FootnoteDef:
		return "[^" + strconv.Itoa(v.Index) + "]: " + v.Text
	case RawComment:
		return "<!-- " + strings.ReplaceAll(v.Text, "-->", "-- >") + " -->"
	}
	return ""
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

func renderListItem(v ListItem) string {
	marker := "* "
	if v.Ordered {
		marker = "1. "
	}
	indent := v.Indent
	if indent < 0 {
		indent = 0
	}
	return strings.Repeat("  ", indent) + marker + v.Text
}

// renderTable writes the header row, a separator with one --- per header
// column, and the data rows. Rows are written with the cells they carry;
// span padding is the producer's job.
func renderTable(t Table) string {
	if len(t.Rows) == 0 {
		return ""
	}
	cols := t.Columns
	if cols <= 0 {
		cols = len(t.Rows[0])
	}
	var lines []string
	lines = append(lines, tableRow(t.Rows[0]))
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, tableRow(sep))
	for _, row := range t.Rows[1:] {
		lines = append(lines, tableRow(row))
	}
	return strings.Join(lines, "\n")
}

func tableRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "\n", " ")
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

// InlineFootnote is the in-text marker for footnote n.
func InlineFootnote(n int) string {
	return "[^" + strconv.Itoa(n) + "]"
}
