package docx2md

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Element names are matched by local name only, so the w:, r: and a:
// prefixes of WordprocessingML need no special handling.

// valAttr is the common <x w:val="..."/> shape.
type valAttr struct {
	Val string `xml:"val,attr"`
}

// onOff is a toggle property. A missing val means on.
type onOff struct {
	Val *string `xml:"val,attr"`
}

func (o *onOff) on() (set, value bool) {
	if o == nil {
		return false, false
	}
	if o.Val == nil {
		return true, true
	}
	switch strings.ToLower(*o.Val) {
	case "0", "false", "off", "none":
		return true, false
	}
	return true, true
}

type numPr struct {
	ILvl  *valAttr `xml:"ilvl"`
	NumID *valAttr `xml:"numId"`
}

type indentation struct {
	Left  string `xml:"left,attr"`
	Start string `xml:"start,attr"`
}

// leftTwips returns the left indentation, zero when absent or unparsable.
func (in *indentation) leftTwips() int {
	if in == nil {
		return 0
	}
	for _, s := range []string{in.Left, in.Start} {
		if s == "" {
			continue
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

type paragraphProps struct {
	Style *valAttr     `xml:"pStyle"`
	NumPr *numPr       `xml:"numPr"`
	Ind   *indentation `xml:"ind"`
}

type runProps struct {
	Style     *valAttr `xml:"rStyle"`
	Bold      *onOff   `xml:"b"`
	Italic    *onOff   `xml:"i"`
	Strike    *onOff   `xml:"strike"`
	DStrike   *onOff   `xml:"dstrike"`
	Underline *valAttr `xml:"u"`
}

type pieceKind int

const (
	pieceText pieceKind = iota
	pieceBreak
	piecePageBreak
	pieceImage
	pieceFootnote
	pieceEndnote
)

// runPiece is one child of a run in document order.
type runPiece struct {
	kind pieceKind
	text string // text, or relationship id for images, or note id
}

// run is a w:r element. Children are kept in order so that text, breaks,
// drawings and note references interleave correctly.
type run struct {
	Props  *runProps
	Pieces []runPiece
}

func (r *run) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				var p runProps
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				r.Props = &p
			case "t":
				var s string
				if err := d.DecodeElement(&s, &t); err != nil {
					return err
				}
				r.Pieces = append(r.Pieces, runPiece{kind: pieceText, text: s})
			case "tab", "ptab":
				r.Pieces = append(r.Pieces, runPiece{kind: pieceText, text: "\t"})
				if err := d.Skip(); err != nil {
					return err
				}
			case "noBreakHyphen":
				r.Pieces = append(r.Pieces, runPiece{kind: pieceText, text: "-"})
				if err := d.Skip(); err != nil {
					return err
				}
			case "br", "cr":
				kind := pieceBreak
				if attr(t, "type") == "page" {
					kind = piecePageBreak
				}
				r.Pieces = append(r.Pieces, runPiece{kind: kind})
				if err := d.Skip(); err != nil {
					return err
				}
			case "drawing", "pict", "object":
				ids, err := collectImageIDs(d)
				if err != nil {
					return err
				}
				for _, id := range ids {
					r.Pieces = append(r.Pieces, runPiece{kind: pieceImage, text: id})
				}
			case "footnoteReference":
				r.Pieces = append(r.Pieces, runPiece{kind: pieceFootnote, text: attr(t, "id")})
				if err := d.Skip(); err != nil {
					return err
				}
			case "endnoteReference":
				r.Pieces = append(r.Pieces, runPiece{kind: pieceEndnote, text: attr(t, "id")})
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

// collectImageIDs reads the rest of a drawing or VML picture and returns
// the relationship ids of its images.
func collectImageIDs(d *xml.Decoder) ([]string, error) {
	var ids []string
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "blip":
				if id := attr(t, "embed"); id != "" {
					ids = append(ids, id)
				}
			case "imagedata":
				if id := attr(t, "id"); id != "" {
					ids = append(ids, id)
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return ids, nil
			}
			depth--
		}
	}
}

type hyperlink struct {
	ID     string `xml:"id,attr"`
	Anchor string `xml:"anchor,attr"`
	Runs   []run  `xml:"r"`
}

// inline is one paragraph child: a run or a hyperlink.
type inline struct {
	Run  *run
	Link *hyperlink
}

// paragraph is a w:p element with its children in document order.
type paragraph struct {
	Props   *paragraphProps
	Content []inline
}

// transparentInParagraph lists wrappers whose children belong to the
// enclosing paragraph.
var transparentInParagraph = map[string]bool{
	"ins":        true,
	"smartTag":   true,
	"fldSimple":  true,
	"sdt":        true,
	"sdtContent": true,
	"customXml":  true,
	"moveTo":     true,
}

func (p *paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "pPr" && depth == 0:
				var pp paragraphProps
				if err := d.DecodeElement(&pp, &t); err != nil {
					return err
				}
				p.Props = &pp
			case t.Name.Local == "r":
				var r run
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				p.Content = append(p.Content, inline{Run: &r})
			case t.Name.Local == "hyperlink":
				var h hyperlink
				if err := d.DecodeElement(&h, &t); err != nil {
					return err
				}
				p.Content = append(p.Content, inline{Link: &h})
			case transparentInParagraph[t.Name.Local]:
				depth++
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

type cellProps struct {
	GridSpan *valAttr `xml:"gridSpan"`
	VMerge   *valAttr `xml:"vMerge"`
}

// span returns the horizontal span, at least 1.
func (c *cellProps) span() int {
	if c == nil || c.GridSpan == nil {
		return 1
	}
	n, err := strconv.Atoi(c.GridSpan.Val)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// cellItem is one block inside a table cell.
type cellItem struct {
	Para  *paragraph
	Table *table
}

type tableCell struct {
	Props *cellProps
	Items []cellItem
}

func (c *tableCell) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tcPr":
				var cp cellProps
				if err := d.DecodeElement(&cp, &t); err != nil {
					return err
				}
				c.Props = &cp
			case "p":
				var p paragraph
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				c.Items = append(c.Items, cellItem{Para: &p})
			case "tbl":
				var tb table
				if err := d.DecodeElement(&tb, &t); err != nil {
					return err
				}
				c.Items = append(c.Items, cellItem{Table: &tb})
			case "sdt", "sdtContent", "customXml":
				depth++
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

type tableRow struct {
	Cells []tableCell `xml:"tc"`
}

type tableProps struct {
	Style *valAttr `xml:"tblStyle"`
}

type table struct {
	Props *tableProps `xml:"tblPr"`
	Rows  []tableRow  `xml:"tr"`
}

func (t *table) styleID() string {
	if t.Props == nil || t.Props.Style == nil {
		return ""
	}
	return t.Props.Style.Val
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
