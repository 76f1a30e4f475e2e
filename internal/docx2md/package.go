package docx2md

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"docmark/internal/docerr"
)

const documentPart = "word/document.xml"

// Package indexes the parts of a .docx archive and holds the catalogs the
// body walker consults.
type Package struct {
	files map[string]*zip.File

	Styles    *styleCatalog
	Numbering *numberingCatalog
	Rels      map[string]relationship
	Footnotes map[string]*note
	Endnotes  map[string]*note
}

// Open indexes data as a ZIP archive and loads the optional catalogs.
// A missing archive or document part is docerr.ErrMalformedStructure.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", docerr.ErrMalformedStructure, err)
	}
	p := &Package{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		p.files[strings.TrimPrefix(f.Name, "/")] = f
	}
	if _, ok := p.files[documentPart]; !ok {
		return nil, fmt.Errorf("%w: missing %s", docerr.ErrMalformedStructure, documentPart)
	}

	p.Styles = p.loadStyles()
	p.Numbering = p.loadNumbering()
	p.Rels = p.loadRels()
	p.Footnotes = p.loadNotes("word/footnotes.xml")
	p.Endnotes = p.loadNotes("word/endnotes.xml")
	return p, nil
}

// ReadPart returns the bytes of one part.
func (p *Package) ReadPart(name string) ([]byte, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("part not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (p *Package) readXML(name string, v any) error {
	data, err := p.ReadPart(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// --- styles ---

type styleDef struct {
	Type    string          `xml:"type,attr"`
	StyleID string          `xml:"styleId,attr"`
	Name    *valAttr        `xml:"name"`
	BasedOn *valAttr        `xml:"basedOn"`
	PPr     *paragraphProps `xml:"pPr"`
	RPr     *runProps       `xml:"rPr"`
}

// TableStyleInfo identifies one table style of the catalog.
type TableStyleInfo struct {
	StyleID string
	Name    string
}

type styleCatalog struct {
	byID        map[string]*styleDef
	tableStyles map[string]TableStyleInfo
}

func (p *Package) loadStyles() *styleCatalog {
	var doc struct {
		Styles []styleDef `xml:"style"`
	}
	c := &styleCatalog{byID: map[string]*styleDef{}, tableStyles: map[string]TableStyleInfo{}}
	if err := p.readXML("word/styles.xml", &doc); err != nil {
		return c
	}
	for i := range doc.Styles {
		s := &doc.Styles[i]
		c.byID[s.StyleID] = s
		if s.Type == "table" {
			info := TableStyleInfo{StyleID: s.StyleID}
			if s.Name != nil {
				info.Name = s.Name.Val
			}
			c.tableStyles[s.StyleID] = info
		}
	}
	return c
}

// TableStyles returns the table styles of the catalog.
func (c *styleCatalog) TableStyles() []TableStyleInfo {
	out := make([]TableStyleInfo, 0, len(c.tableStyles))
	for _, s := range c.tableStyles {
		out = append(out, s)
	}
	return out
}

func (c *styleCatalog) isTableStyle(id string) bool {
	_, ok := c.tableStyles[id]
	return ok
}

func (c *styleCatalog) name(id string) string {
	if s := c.byID[id]; s != nil && s.Name != nil {
		return s.Name.Val
	}
	return ""
}

var trailingDigits = regexp.MustCompile(`(\d+)\s*$`)

// headingLevel returns the heading level of a paragraph style, or 0 when
// the style is not a heading. The level is the integer suffix of the style
// id; ids without one (localized documents) fall back to the style name.
func (c *styleCatalog) headingLevel(id string) int {
	if id == "" {
		return 0
	}
	lowerID := strings.ToLower(id)
	name := strings.ToLower(c.name(id))

	switch {
	case lowerID == "title" || name == "title":
		return 1
	case lowerID == "subtitle" || name == "subtitle":
		return 2
	}
	isHeading := strings.HasPrefix(lowerID, "heading") || strings.HasPrefix(name, "heading")
	if !isHeading {
		return 0
	}
	level := 0
	if m := trailingDigits.FindStringSubmatch(id); m != nil {
		level, _ = strconv.Atoi(m[1])
	}
	if level == 0 {
		if m := trailingDigits.FindStringSubmatch(name); m != nil {
			level, _ = strconv.Atoi(m[1])
		}
	}
	switch {
	case level < 1:
		return 1
	case level > 6:
		return 6
	}
	return level
}

// styleNumPr returns numbering inherited from a paragraph style chain.
func (c *styleCatalog) styleNumPr(id string) *numPr {
	for seen := 0; id != "" && seen < 10; seen++ {
		s := c.byID[id]
		if s == nil {
			return nil
		}
		if s.PPr != nil && s.PPr.NumPr != nil {
			return s.PPr.NumPr
		}
		if s.BasedOn == nil {
			return nil
		}
		id = s.BasedOn.Val
	}
	return nil
}

// runStyle returns the run properties of a character style.
func (c *styleCatalog) runStyle(id string) *runProps {
	if s := c.byID[id]; s != nil {
		return s.RPr
	}
	return nil
}

// --- numbering ---

type numberingDoc struct {
	Abstract []struct {
		ID     string `xml:"abstractNumId,attr"`
		Levels []struct {
			ILvl   string   `xml:"ilvl,attr"`
			NumFmt *valAttr `xml:"numFmt"`
		} `xml:"lvl"`
	} `xml:"abstractNum"`
	Nums []struct {
		ID       string   `xml:"numId,attr"`
		Abstract *valAttr `xml:"abstractNumId"`
	} `xml:"num"`
}

type numberingCatalog struct {
	// formats maps numId to level to numFmt.
	formats map[string]map[int]string
}

func (p *Package) loadNumbering() *numberingCatalog {
	c := &numberingCatalog{formats: map[string]map[int]string{}}
	var doc numberingDoc
	if err := p.readXML("word/numbering.xml", &doc); err != nil {
		return c
	}
	abstract := make(map[string]map[int]string, len(doc.Abstract))
	for _, a := range doc.Abstract {
		levels := make(map[int]string, len(a.Levels))
		for _, l := range a.Levels {
			n, err := strconv.Atoi(l.ILvl)
			if err != nil || l.NumFmt == nil {
				continue
			}
			levels[n] = l.NumFmt.Val
		}
		abstract[a.ID] = levels
	}
	for _, n := range doc.Nums {
		if n.Abstract != nil {
			c.formats[n.ID] = abstract[n.Abstract.Val]
		}
	}
	return c
}

// Ordered reports whether (numID, level) is a numbered rather than a
// bulleted list. Unknown definitions are treated as bullets.
func (c *numberingCatalog) Ordered(numID string, level int) bool {
	f, ok := c.formats[numID][level]
	if !ok {
		return false
	}
	return f != "bullet" && f != "none" && f != ""
}

// --- relationships ---

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

func (r relationship) external() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

func (p *Package) loadRels() map[string]relationship {
	var doc struct {
		Rels []relationship `xml:"Relationship"`
	}
	rels := make(map[string]relationship)
	if err := p.readXML("word/_rels/document.xml.rels", &doc); err != nil {
		return rels
	}
	for _, r := range doc.Rels {
		rels[r.ID] = r
	}
	return rels
}

// mediaPart returns the archive path of an internal relationship target.
func mediaPart(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join("word", target))
}

// --- footnotes and endnotes ---

type note struct {
	ID    string      `xml:"id,attr"`
	Type  string      `xml:"type,attr"`
	Paras []paragraph `xml:"p"`
}

func (p *Package) loadNotes(part string) map[string]*note {
	var doc struct {
		Footnotes []note `xml:"footnote"`
		Endnotes  []note `xml:"endnote"`
	}
	notes := make(map[string]*note)
	if err := p.readXML(part, &doc); err != nil {
		return notes
	}
	for _, list := range [][]note{doc.Footnotes, doc.Endnotes} {
		for i := range list {
			n := &list[i]
			if n.Type == "separator" || n.Type == "continuationSeparator" {
				continue
			}
			notes[n.ID] = n
		}
	}
	return notes
}
