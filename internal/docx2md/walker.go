package docx2md

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"docmark/internal/docerr"
	"docmark/internal/images"
	"docmark/internal/markdown"
)

// listContext identifies the list the previous paragraph belonged to.
type listContext struct {
	numID string
	level int
}

// walker emits blocks for the body of one package. It is used for a
// single conversion and then discarded.
type walker struct {
	pkg    *Package
	images *images.Collector

	blocks  []markdown.Block
	list    *listContext
	noteSeq int
	notes   []markdown.FootnoteDef
}

// inlineContent is the rendered content of one paragraph.
type inlineContent struct {
	text      string
	images    []string
	pageBreak bool
}

// walkBody streams document.xml and handles the body children in order.
// Content controls at body level are transparent.
func (w *walker) walkBody(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	sawBody := false
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", docerr.ErrMalformedStructure, documentPart, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "document", "sdt", "sdtContent", "customXml":
		case "body":
			sawBody = true
		case "p":
			var p paragraph
			if err := d.DecodeElement(&p, &se); err != nil {
				return fmt.Errorf("%w: paragraph: %v", docerr.ErrMalformedStructure, err)
			}
			w.paragraph(&p)
		case "tbl":
			var t table
			if err := d.DecodeElement(&t, &se); err != nil {
				return fmt.Errorf("%w: table: %v", docerr.ErrMalformedStructure, err)
			}
			w.table(&t)
		default:
			if err := d.Skip(); err != nil {
				return fmt.Errorf("%w: %s: %v", docerr.ErrMalformedStructure, documentPart, err)
			}
		}
	}
	if !sawBody {
		return fmt.Errorf("%w: %s has no body", docerr.ErrMalformedStructure, documentPart)
	}
	return nil
}

func (w *walker) emit(b markdown.Block) {
	w.blocks = append(w.blocks, b)
}

func (w *walker) emitImages(ids []string) {
	for _, id := range ids {
		w.emit(markdown.ImageRef{AssetID: id})
	}
}

// flushNotes appends the footnote definitions referenced since the last
// flush.
func (w *walker) flushNotes() {
	for _, n := range w.notes {
		w.emit(n)
	}
	w.notes = nil
}

func (w *walker) paragraph(p *paragraph) {
	defer w.flushNotes()

	styleID := ""
	if p.Props != nil && p.Props.Style != nil {
		styleID = p.Props.Style.Val
	}
	content := w.renderInline(p)

	if level := w.pkg.Styles.headingLevel(styleID); level > 0 {
		w.list = nil
		w.emitImages(content.images)
		if text := oneLine(content.text); text != "" {
			w.emit(markdown.Heading{Level: level, Text: text})
		}
		return
	}

	if numID, level, ok := w.numbering(p, styleID); ok {
		w.emitImages(content.images)
		text := oneLine(content.text)
		if text == "" {
			return
		}
		w.emit(markdown.ListItem{
			Indent:  level,
			Ordered: w.pkg.Numbering.Ordered(numID, level),
			Text:    text,
			NewList: w.startsNewList(numID, level),
		})
		w.list = &listContext{numID: numID, level: level}
		return
	}

	w.list = nil
	w.emitImages(content.images)
	text := strings.TrimSpace(content.text)
	if text == "" {
		if len(content.images) == 0 && !content.pageBreak {
			w.emit(markdown.Paragraph{})
		}
		return
	}
	if p.Props != nil && p.Props.Ind.leftTwips() > 0 {
		w.emit(markdown.BlockQuote{Text: text})
		return
	}
	w.emit(markdown.Paragraph{Text: text})
}

// startsNewList reports whether an item at (numID, level) begins a new
// list: there is no current list, the list id changed, or the level went
// back up.
func (w *walker) startsNewList(numID string, level int) bool {
	if w.list == nil {
		return true
	}
	return numID != w.list.numID || level < w.list.level
}

// numbering resolves the list binding of a paragraph from its own
// properties or its style. A numId of 0 removes numbering.
func (w *walker) numbering(p *paragraph, styleID string) (numID string, level int, ok bool) {
	var np *numPr
	if p.Props != nil && p.Props.NumPr != nil {
		np = p.Props.NumPr
	}
	inherited := w.pkg.Styles.styleNumPr(styleID)
	if np == nil {
		np = inherited
	}
	if np == nil {
		return "", 0, false
	}
	switch {
	case np.NumID != nil:
		numID = np.NumID.Val
	case inherited != nil && inherited.NumID != nil:
		numID = inherited.NumID.Val
	}
	if numID == "" || numID == "0" {
		return "", 0, false
	}
	switch {
	case np.ILvl != nil:
		level, _ = strconv.Atoi(np.ILvl.Val)
	case inherited != nil && inherited.ILvl != nil:
		level, _ = strconv.Atoi(inherited.ILvl.Val)
	}
	if level < 0 {
		level = 0
	}
	return numID, level, true
}

// renderInline renders the runs and hyperlinks of p. Images and notes are
// registered on the walker as a side effect.
func (w *walker) renderInline(p *paragraph) inlineContent {
	var (
		out  inlineContent
		runs []markdown.InlineRun
	)
	for _, in := range p.Content {
		switch {
		case in.Run != nil:
			runs = w.appendRun(runs, in.Run, "", &out)
		case in.Link != nil:
			target := w.linkTarget(in.Link)
			for i := range in.Link.Runs {
				runs = w.appendRun(runs, &in.Link.Runs[i], target, &out)
			}
		}
	}
	out.text = markdown.RenderRuns(runs)
	return out
}

func (w *walker) appendRun(runs []markdown.InlineRun, r *run, link string, out *inlineContent) []markdown.InlineRun {
	format := w.runFormat(r.Props)
	format.Link = link
	for _, pc := range r.Pieces {
		switch pc.kind {
		case pieceText:
			f := format
			f.Text = pc.text
			runs = append(runs, f)
		case pieceBreak:
			runs = append(runs, markdown.InlineRun{Text: "\n"})
		case piecePageBreak:
			out.pageBreak = true
		case pieceImage:
			if id := w.addImage(pc.text); id != "" {
				out.images = append(out.images, id)
			}
		case pieceFootnote, pieceEndnote:
			store := w.pkg.Footnotes
			if pc.kind == pieceEndnote {
				store = w.pkg.Endnotes
			}
			if n := w.addNote(store, pc.text); n > 0 {
				runs = append(runs, markdown.InlineRun{Text: markdown.InlineFootnote(n)})
			}
		}
	}
	return runs
}

// runFormat resolves the formatting flags of a run. Direct properties win
// over the run's character style.
func (w *walker) runFormat(rp *runProps) markdown.InlineRun {
	var style *runProps
	if rp != nil && rp.Style != nil {
		style = w.pkg.Styles.runStyle(rp.Style.Val)
	}
	toggle := func(get func(*runProps) *onOff) bool {
		for _, props := range []*runProps{rp, style} {
			if props == nil {
				continue
			}
			if set, v := get(props).on(); set {
				return v
			}
		}
		return false
	}
	underline := false
	for _, props := range []*runProps{rp, style} {
		if props != nil && props.Underline != nil {
			underline = props.Underline.Val != "none"
			break
		}
	}
	return markdown.InlineRun{
		Bold:      toggle(func(p *runProps) *onOff { return p.Bold }),
		Italic:    toggle(func(p *runProps) *onOff { return p.Italic }),
		Strike:    toggle(func(p *runProps) *onOff { return p.Strike }) || toggle(func(p *runProps) *onOff { return p.DStrike }),
		Underline: underline,
	}
}

// linkTarget resolves a hyperlink to its URL, or to #anchor for internal
// bookmarks.
func (w *walker) linkTarget(h *hyperlink) string {
	if h.ID != "" {
		if rel, ok := w.pkg.Rels[h.ID]; ok && rel.Target != "" {
			if h.Anchor != "" {
				return rel.Target + "#" + h.Anchor
			}
			return rel.Target
		}
	}
	if h.Anchor != "" {
		return "#" + h.Anchor
	}
	return ""
}

// addImage reads the media part behind relID and registers it as an asset.
func (w *walker) addImage(relID string) string {
	rel, ok := w.pkg.Rels[relID]
	if !ok || rel.external() {
		return ""
	}
	part := mediaPart(rel.Target)
	data, err := w.pkg.ReadPart(part)
	if err != nil {
		log.Printf("[DOCX] image %s unreadable: %v", part, err)
		return ""
	}
	return w.images.Add(images.Normalize(data)).ID
}

// addNote assigns the next sequential number to a referenced note and
// queues its definition. It returns 0 when the note does not exist.
func (w *walker) addNote(store map[string]*note, id string) int {
	n, ok := store[id]
	if !ok {
		return 0
	}
	w.noteSeq++
	w.notes = append(w.notes, markdown.FootnoteDef{Index: w.noteSeq, Text: noteText(n)})
	return w.noteSeq
}

// noteText is the plain text of a note, paragraphs joined by spaces.
func noteText(n *note) string {
	var parts []string
	for i := range n.Paras {
		var sb strings.Builder
		for _, in := range n.Paras[i].Content {
			var runs []run
			if in.Run != nil {
				runs = []run{*in.Run}
			} else if in.Link != nil {
				runs = in.Link.Runs
			}
			for _, r := range runs {
				for _, pc := range r.Pieces {
					if pc.kind == pieceText {
						sb.WriteString(pc.text)
					}
				}
			}
		}
		if s := oneLine(sb.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (w *walker) table(t *table) {
	w.list = nil
	if len(t.Rows) == 0 || len(t.Rows[0].Cells) == 0 {
		return
	}
	if w.isLayoutFrame(t) {
		w.cellBlocks(&t.Rows[0].Cells[0])
		return
	}
	defer w.flushNotes()

	var (
		rows     [][]string
		imageIDs []string
	)
	for _, row := range t.Rows {
		var cells []string
		for i := range row.Cells {
			c := &row.Cells[i]
			text, ids := w.cellText(c)
			imageIDs = append(imageIDs, ids...)
			cells = append(cells, text)
			for pad := 1; pad < c.Props.span(); pad++ {
				cells = append(cells, "")
			}
		}
		rows = append(rows, cells)
	}
	w.emit(markdown.Table{Rows: rows, Columns: len(t.Rows[0].Cells)})
	w.emitImages(imageIDs)
}

// isLayoutFrame reports whether t is a single-cell table used for page
// layout rather than tabular content: it has exactly one cell and no style
// from the table style catalog.
func (w *walker) isLayoutFrame(t *table) bool {
	if len(t.Rows) != 1 || len(t.Rows[0].Cells) != 1 {
		return false
	}
	return !w.pkg.Styles.isTableStyle(t.styleID())
}

// cellBlocks walks a layout frame cell as ordinary body content.
func (w *walker) cellBlocks(c *tableCell) {
	for _, item := range c.Items {
		switch {
		case item.Para != nil:
			w.paragraph(item.Para)
		case item.Table != nil:
			w.table(item.Table)
		}
	}
}

// cellText flattens a cell to one line. Paragraphs and nested tables are
// joined with spaces.
func (w *walker) cellText(c *tableCell) (string, []string) {
	var (
		parts []string
		ids   []string
	)
	for _, item := range c.Items {
		switch {
		case item.Para != nil:
			content := w.renderInline(item.Para)
			ids = append(ids, content.images...)
			if s := oneLine(content.text); s != "" {
				parts = append(parts, s)
			}
		case item.Table != nil:
			for _, row := range item.Table.Rows {
				for i := range row.Cells {
					s, nested := w.cellText(&row.Cells[i])
					ids = append(ids, nested...)
					if s != "" {
						parts = append(parts, s)
					}
				}
			}
		}
	}
	return strings.Join(parts, " "), ids
}

// oneLine collapses all whitespace, including breaks, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
