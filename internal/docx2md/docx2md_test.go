package docx2md

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"docmark/internal/docerr"
	"docmark/internal/images"
	"docmark/internal/markdown"
)

const namespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`

// buildDocx zips a document body plus any extra parts.
func buildDocx(t require.TestingT, body string, parts map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	write(documentPart, `<?xml version="1.0" encoding="UTF-8"?><w:document `+namespaces+`><w:body>`+body+`</w:body></w:document>`)
	for name, content := range parts {
		write(name, content)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func listPara(numID string, level int, text string) string {
	return fmt.Sprintf(`<w:p><w:pPr><w:numPr><w:ilvl w:val="%d"/><w:numId w:val="%s"/></w:numPr></w:pPr><w:r><w:t>%s</w:t></w:r></w:p>`, level, numID, text)
}

func styledPara(style, text string) string {
	return `<w:p><w:pPr><w:pStyle w:val="` + style + `"/></w:pPr><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func cell(text string, span int) string {
	props := ""
	if span > 1 {
		props = fmt.Sprintf(`<w:tcPr><w:gridSpan w:val="%d"/></w:tcPr>`, span)
	}
	return `<w:tc>` + props + para(text) + `</w:tc>`
}

const numberingXML = `<?xml version="1.0"?><w:numbering ` + namespaces + `>` +
	`<w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"><w:numFmt w:val="bullet"/></w:lvl><w:lvl w:ilvl="1"><w:numFmt w:val="bullet"/></w:lvl></w:abstractNum>` +
	`<w:abstractNum w:abstractNumId="1"><w:lvl w:ilvl="0"><w:numFmt w:val="decimal"/></w:lvl></w:abstractNum>` +
	`<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>` +
	`<w:num w:numId="2"><w:abstractNumId w:val="1"/></w:num>` +
	`</w:numbering>`

const stylesXML = `<?xml version="1.0"?><w:styles ` + namespaces + `>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="2"><w:name w:val="heading 2"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:pPr><w:numPr><w:numId w:val="1"/></w:numPr></w:pPr></w:style>` +
	`<w:style w:type="character" w:styleId="Strong"><w:name w:val="Strong"/><w:rPr><w:b/></w:rPr></w:style>` +
	`<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/></w:style>` +
	`</w:styles>`

func convert(t *testing.T, body string, parts map[string]string) (string, *images.Collector) {
	t.Helper()
	col := &images.Collector{}
	blocks, err := Convert(buildDocx(t, body, parts), col)
	require.NoError(t, err)
	return markdown.Render(blocks, nil), col
}

func TestConvert_BulletsStayTight(t *testing.T) {
	body := listPara("1", 0, "One") + listPara("1", 0, "Two")
	out, _ := convert(t, body, map[string]string{"word/numbering.xml": numberingXML})
	assert.Equal(t, "* One\n* Two\n", out)
}

func TestConvert_ListBoundaries(t *testing.T) {
	body := listPara("1", 0, "a") +
		listPara("1", 1, "b") +
		listPara("1", 0, "c") +
		listPara("2", 0, "d") +
		para("after") +
		listPara("2", 0, "e")
	out, _ := convert(t, body, map[string]string{"word/numbering.xml": numberingXML})
	assert.Equal(t, "* a\n  * b\n\n* c\n\n1. d\n\nafter\n\n1. e\n", out)
}

func TestConvert_NumberingFromStyle(t *testing.T) {
	body := styledPara("ListBullet", "x") + styledPara("ListBullet", "y")
	out, _ := convert(t, body, map[string]string{
		"word/numbering.xml": numberingXML,
		"word/styles.xml":    stylesXML,
	})
	assert.Equal(t, "* x\n* y\n", out)
}

func TestConvert_NumIDZeroIsNotAList(t *testing.T) {
	out, _ := convert(t, listPara("0", 0, "plain"), nil)
	assert.Equal(t, "plain\n", out)
}

func TestConvert_SpannedCellPadding(t *testing.T) {
	body := `<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/></w:tblPr>` +
		`<w:tr>` + cell("H1", 1) + cell("H2", 1) + cell("H3", 1) + `</w:tr>` +
		`<w:tr>` + cell("A", 2) + cell("B", 1) + `</w:tr>` +
		`</w:tbl>`
	out, _ := convert(t, body, map[string]string{"word/styles.xml": stylesXML})
	assert.Equal(t, "| H1 | H2 | H3 |\n| --- | --- | --- |\n| A |  | B |\n", out)
}

func TestConvert_SeparatorMatchesHeaderCells(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cols := rapid.IntRange(1, 8).Draw(rt, "cols")
		var header strings.Builder
		for i := 0; i < cols; i++ {
			header.WriteString(cell(fmt.Sprintf("h%d", i), 1))
		}
		spans := rapid.SliceOfN(rapid.IntRange(1, 3), 1, 4).Draw(rt, "spans")
		var data strings.Builder
		total := 0
		for i, s := range spans {
			data.WriteString(cell(fmt.Sprintf("d%d", i), s))
			total += s
		}
		body := `<w:tbl><w:tr>` + header.String() + `</w:tr><w:tr>` + data.String() + `</w:tr></w:tbl>`

		blocks, err := Convert(buildDocx(rt, body, nil), nil)
		require.NoError(rt, err)
		require.Len(rt, blocks, 1)
		tbl, ok := blocks[0].(markdown.Table)
		require.True(rt, ok)
		assert.Equal(rt, cols, tbl.Columns)
		assert.Len(rt, tbl.Rows[1], total)

		lines := strings.Split(markdown.Render(blocks, nil), "\n")
		assert.Equal(rt, cols, strings.Count(lines[1], "---"))
	})
}

func TestConvert_LayoutFrameUnwrapped(t *testing.T) {
	frame := `<w:tbl><w:tr><w:tc>` + para("Framed") + `</w:tc></w:tr></w:tbl>`
	out, _ := convert(t, frame, nil)
	assert.Equal(t, "Framed\n", out)

	styled := `<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/></w:tblPr><w:tr><w:tc>` + para("Cell") + `</w:tc></w:tr></w:tbl>`
	out, _ = convert(t, styled, map[string]string{"word/styles.xml": stylesXML})
	assert.Equal(t, "| Cell |\n| --- |\n", out)
}

func TestConvert_NestedTableFlattened(t *testing.T) {
	inner := `<w:tbl><w:tr>` + cell("x", 1) + cell("y", 1) + `</w:tr></w:tbl>`
	body := `<w:tbl><w:tr>` + cell("A", 1) + cell("B", 1) + `</w:tr>` +
		`<w:tr><w:tc>` + para("pre") + inner + `</w:tc>` + cell("z", 1) + `</w:tr></w:tbl>`
	out, _ := convert(t, body, nil)
	assert.Equal(t, "| A | B |\n| --- | --- |\n| pre x y | z |\n", out)
}

func TestConvert_Headings(t *testing.T) {
	body := styledPara("Title", "Doc") + styledPara("Heading1", "Intro") + styledPara("2", "Detail")
	out, _ := convert(t, body, map[string]string{"word/styles.xml": stylesXML})
	assert.Equal(t, "# Doc\n\n# Intro\n\n## Detail\n", out)
}

func TestConvert_RunFormatting(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> and </w:t></w:r>` +
		`<w:r><w:rPr><w:i/><w:u w:val="single"/></w:rPr><w:t>both</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> </w:t></w:r>` +
		`<w:r><w:rPr><w:dstrike/></w:rPr><w:t>gone</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> </w:t></w:r>` +
		`<w:r><w:rPr><w:rStyle w:val="Strong"/></w:rPr><w:t>strong</w:t></w:r>` +
		`<w:r><w:rPr><w:b w:val="0"/><w:u w:val="none"/></w:rPr><w:t xml:space="preserve"> plain</w:t></w:r>` +
		`</w:p>`
	out, _ := convert(t, body, map[string]string{"word/styles.xml": stylesXML})
	assert.Equal(t, "**bold** and *<u>both</u>* ~~gone~~ **strong** plain\n", out)
}

func TestConvert_Hyperlinks(t *testing.T) {
	rels := `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>` +
		`</Relationships>`
	body := `<w:p><w:r><w:t xml:space="preserve">See </w:t></w:r>` +
		`<w:hyperlink r:id="rId5"><w:r><w:t>site</w:t></w:r></w:hyperlink>` +
		`<w:r><w:t xml:space="preserve"> or </w:t></w:r>` +
		`<w:hyperlink w:anchor="intro"><w:r><w:t>intro</w:t></w:r></w:hyperlink></w:p>`
	out, _ := convert(t, body, map[string]string{"word/_rels/document.xml.rels": rels})
	assert.Equal(t, "See [site](https://example.com) or [intro](#intro)\n", out)
}

func TestConvert_FootnotesAndEndnotes(t *testing.T) {
	footnotes := `<?xml version="1.0"?><w:footnotes ` + namespaces + `>` +
		`<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>` +
		`<w:footnote w:id="1"><w:p><w:r><w:t>First note.</w:t></w:r></w:p></w:footnote>` +
		`</w:footnotes>`
	endnotes := `<?xml version="1.0"?><w:endnotes ` + namespaces + `>` +
		`<w:endnote w:id="1"><w:p><w:r><w:t>End note.</w:t></w:r></w:p></w:endnote>` +
		`</w:endnotes>`
	body := `<w:p><w:r><w:t>Body</w:t></w:r><w:r><w:footnoteReference w:id="1"/></w:r></w:p>` +
		`<w:p><w:r><w:t>More</w:t></w:r><w:r><w:endnoteReference w:id="1"/></w:r></w:p>`
	out, _ := convert(t, body, map[string]string{
		"word/footnotes.xml": footnotes,
		"word/endnotes.xml":  endnotes,
	})
	assert.Equal(t, "Body[^1]\n\n[^1]: First note.\n\nMore[^2]\n\n[^2]: End note.\n", out)
}

func TestConvert_Images(t *testing.T) {
	rels := `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>` +
		`<Relationship Id="rId8" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="http://example.com/x.png" TargetMode="External"/>` +
		`</Relationships>`
	pngData := "\x89PNG\r\n\x1a\nrest"
	body := `<w:p><w:r><w:t>Figure</w:t></w:r><w:r><w:drawing><wp:inline xmlns:wp="urn:wp"><a:graphic><a:graphicData><pic:pic xmlns:pic="urn:pic"><pic:blipFill><a:blip r:embed="rId7"/></pic:blipFill></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>` +
		`<w:p><w:r><w:drawing><a:blip r:embed="rId8"/></w:drawing></w:r></w:p>`
	out, col := convert(t, body, map[string]string{
		"word/_rels/document.xml.rels": rels,
		"word/media/image1.png":        pngData,
	})
	assert.Equal(t, "![image](image1)\n\nFigure\n", out)
	require.Len(t, col.Assets(), 1)
	assert.Equal(t, images.MIMEPNG, col.Assets()[0].MIMEType)
	assert.Equal(t, []byte(pngData), col.Assets()[0].Data)
}

func TestConvert_EmptyAndIndentedParagraphs(t *testing.T) {
	body := para("one") +
		`<w:p/>` +
		`<w:p><w:r><w:br w:type="page"/></w:r></w:p>` +
		`<w:p><w:pPr><w:ind w:left="720"/></w:pPr><w:r><w:t>quoted</w:t></w:r></w:p>`
	blocks, err := Convert(buildDocx(t, body, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, []markdown.Block{
		markdown.Paragraph{Text: "one"},
		markdown.Paragraph{},
		markdown.BlockQuote{Text: "quoted"},
	}, blocks)
}

func TestConvert_TransparentWrappers(t *testing.T) {
	body := `<w:sdt><w:sdtContent>` + para("inside control") + `</w:sdtContent></w:sdt>` +
		`<w:p><w:ins><w:r><w:t>inserted</w:t></w:r></w:ins><w:del><w:r><w:delText>deleted</w:delText></w:r></w:del></w:p>` +
		`<w:sectPr/>`
	out, _ := convert(t, body, nil)
	assert.Equal(t, "inside control\n\ninserted\n", out)
}

func TestConvert_MalformedPackage(t *testing.T) {
	_, err := Convert([]byte("not a zip"), nil)
	assert.ErrorIs(t, err, docerr.ErrMalformedStructure)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = Convert(buf.Bytes(), nil)
	assert.ErrorIs(t, err, docerr.ErrMalformedStructure)

	broken := buildDocx(t, `<w:p><w:r><w:t>unterminated`, nil)
	_, err = Convert(broken, nil)
	assert.ErrorIs(t, err, docerr.ErrMalformedStructure)
}

func TestTableStyles(t *testing.T) {
	data := buildDocx(t, para("x"), map[string]string{"word/styles.xml": stylesXML})
	styles, err := TableStyles(data)
	require.NoError(t, err)
	assert.Equal(t, []TableStyleInfo{{StyleID: "TableGrid", Name: "Table Grid"}}, styles)
}

func TestHeadingLevel(t *testing.T) {
	c := &styleCatalog{byID: map[string]*styleDef{
		"3": {StyleID: "3", Name: &valAttr{Val: "heading 3"}},
	}}
	assert.Equal(t, 0, c.headingLevel(""))
	assert.Equal(t, 0, c.headingLevel("Normal"))
	assert.Equal(t, 2, c.headingLevel("Heading2"))
	assert.Equal(t, 6, c.headingLevel("Heading9"))
	assert.Equal(t, 1, c.headingLevel("Heading"))
	assert.Equal(t, 3, c.headingLevel("3"))
	assert.Equal(t, 2, c.headingLevel("Subtitle"))
}
