package markdown

import (
	"strings"
	"unicode"
)

// InlineRun is a span of text sharing one set of formatting flags.
type InlineRun struct {
	Text      string
	Bold      bool
	Italic    bool
	Strike    bool
	Underline bool
	Link      string
}

func (r InlineRun) sameFormat(o InlineRun) bool {
	return r.Bold == o.Bold && r.Italic == o.Italic && r.Strike == o.Strike &&
		r.Underline == o.Underline && r.Link == o.Link
}

// Markdown wraps the run text in its markup. Underline is innermost, then
// italic, bold and strikethrough; a hyperlink wraps the formatted text.
// Surrounding whitespace stays outside the markers so that emphasis remains
// valid, and whitespace-only runs are returned unchanged.
func (r InlineRun) Markdown() string {
	core := strings.TrimFunc(r.Text, unicode.IsSpace)
	if core == "" {
		return r.Text
	}
	start := strings.Index(r.Text, core)
	lead, trail := r.Text[:start], r.Text[start+len(core):]

	if r.Underline {
		core = "<u>" + core + "</u>"
	}
	if r.Italic {
		core = "*" + core + "*"
	}
	if r.Bold {
		core = "**" + core + "**"
	}
	if r.Strike {
		core = "~~" + core + "~~"
	}
	if r.Link != "" {
		core = "[" + core + "](" + r.Link + ")"
	}
	return lead + core + trail
}

// MergeRuns joins adjacent runs with identical formatting so that one
// formatted phrase split across several source runs gets one pair of markers.
func MergeRuns(runs []InlineRun) []InlineRun {
	var out []InlineRun
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].sameFormat(r) {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	return out
}

// RenderRuns merges and wraps runs and returns the paragraph text.
func RenderRuns(runs []InlineRun) string {
	var sb strings.Builder
	for _, r := range MergeRuns(runs) {
		sb.WriteString(r.Markdown())
	}
	return sb.String()
}
