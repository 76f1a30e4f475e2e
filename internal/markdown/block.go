// Package markdown holds the block model shared by every conversion
// pipeline, the inline formatting rules and the final renderer.
package markdown

// Block is one unit of Markdown output. Pipelines produce blocks in
// document order and Render keeps that order.
type Block interface {
	block()
}

// Heading is an ATX heading. Level is clamped to 1..6 when rendered.
type Heading struct {
	Level int
	Text  string
}

// Paragraph is body text. An empty Text is a spacing placeholder and
// renders as an extra blank line.
type Paragraph struct {
	Text string
}

// ListItem is one list line. Indent counts nesting levels. NewList marks an
// item that starts a new list and is preceded by a blank line even when the
// previous block was a list item.
type ListItem struct {
	Indent  int
	Ordered bool
	Text    string
	NewList bool
}

// BlockQuote is indented body text.
type BlockQuote struct {
	Text string
}

// Table is a pipe table. The first row is the header and Columns is the
// number of separator cells emitted under it.
type Table struct {
	Rows    [][]string
	Columns int
}

// ImageRef points at an extracted image asset by id. The reference string
// is resolved when the document is rendered.
type ImageRef struct {
	AssetID string
}

// FootnoteDef is a footnote or endnote body.
type FootnoteDef struct {
	Index int
	Text  string
}

// RawComment carries diagnostics and fallback notices as an HTML comment.
type RawComment struct {
	Text string
}

func (Heading) block()     {}
func (Paragraph) block()   {}
func (ListItem) block()    {}
func (BlockQuote) block()  {}
func (Table) block()       {}
func (ImageRef) block()    {}
func (FootnoteDef) block() {}
func (RawComment) block()  {}
