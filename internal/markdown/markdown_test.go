package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// --- inline formatting ---

func TestInlineRun_WrapOrder(t *testing.T) {
	cases := []struct {
		run  InlineRun
		want string
	}{
		{InlineRun{Text: "x"}, "x"},
		{InlineRun{Text: "x", Bold: true}, "**x**"},
		{InlineRun{Text: "x", Italic: true}, "*x*"},
		{InlineRun{Text: "x", Bold: true, Italic: true}, "***x***"},
		{InlineRun{Text: "x", Strike: true, Bold: true}, "~~**x**~~"},
		{InlineRun{Text: "x", Underline: true, Italic: true}, "*<u>x</u>*"},
		{InlineRun{Text: "x", Bold: true, Link: "https://a.example"}, "[**x**](https://a.example)"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.run.Markdown())
	}
}

func TestInlineRun_WhitespaceOutsideMarkers(t *testing.T) {
	r := InlineRun{Text: "  bold words ", Bold: true}
	assert.Equal(t, "  **bold words** ", r.Markdown())
	assert.Equal(t, "   ", InlineRun{Text: "   ", Italic: true}.Markdown())
}

func TestRenderRuns_MergesAdjacentFormatting(t *testing.T) {
	runs := []InlineRun{
		{Text: "Hel", Bold: true},
		{Text: "lo", Bold: true},
		{Text: " world"},
	}
	assert.Equal(t, "**Hello** world", RenderRuns(runs))
}

// --- block rendering ---

func TestRender_HeadingAndParagraph(t *testing.T) {
	got := Render([]Block{Heading{Level: 2, Text: "Intro"}, Paragraph{Text: "Body."}}, nil)
	assert.Equal(t, "## Intro\n\nBody.\n", got)
}

func TestRender_HeadingLevelClamped(t *testing.T) {
	assert.Equal(t, "###### Deep\n", Render([]Block{Heading{Level: 9, Text: "Deep"}}, nil))
	assert.Equal(t, "# Zero\n", Render([]Block{Heading{Level: 0, Text: "Zero"}}, nil))
}

func TestRender_ListContinuation(t *testing.T) {
	blocks := []Block{
		ListItem{Text: "one", NewList: true},
		ListItem{Text: "two"},
		ListItem{Indent: 1, Ordered: true, Text: "nested"},
		ListItem{Text: "other list", NewList: true},
	}
	want := "* one\n* two\n  1. nested\n\n* other list\n"
	assert.Equal(t, want, Render(blocks, nil))
}

func TestRender_EmptyParagraphAddsBlankLine(t *testing.T) {
	got := Render([]Block{Paragraph{Text: "a"}, Paragraph{}, Paragraph{Text: "b"}}, nil)
	assert.Equal(t, "a\n\n\n\nb\n", got)
}

func TestRender_Table(t *testing.T) {
	tbl := Table{
		Rows:    [][]string{{"A", "B", "C"}, {"x|y", "", "z"}},
		Columns: 3,
	}
	want := "| A | B | C |\n| --- | --- | --- |\n| x\\|y |  | z |\n"
	assert.Equal(t, want, Render([]Block{tbl}, nil))
}

func TestRender_QuoteImageFootnoteComment(t *testing.T) {
	blocks := []Block{
		BlockQuote{Text: "line1\nline2"},
		ImageRef{AssetID: "image1"},
		FootnoteDef{Index: 1, Text: "note"},
		RawComment{Text: "failed --> here"},
	}
	resolve := func(id string) string { return "media/" + id + ".png" }
	want := "> line1\n> line2\n\n![image](media/image1.png)\n\n[^1]: note\n\n<!-- failed -- > here -->\n"
	assert.Equal(t, want, Render(blocks, resolve))
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(nil, nil))
}

func TestRender_SameListNeverBlank(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 20).Draw(rt, "n")
		level := rapid.IntRange(0, 5).Draw(rt, "level")
		ordered := rapid.Bool().Draw(rt, "ordered")
		blocks := []Block{ListItem{Indent: level, Ordered: ordered, Text: "first", NewList: true}}
		for i := 1; i < n; i++ {
			blocks = append(blocks, ListItem{Indent: level, Ordered: ordered, Text: "item"})
		}
		out := Render(blocks, nil)
		if strings.Contains(out, "\n\n") {
			rt.Fatalf("blank line inside a continuing list: %q", out)
		}
		if got := strings.Count(out, "\n"); got != n {
			rt.Fatalf("expected %d lines, got %d", n, got)
		}
	})
}

func TestRender_NewListExactlyOneBlank(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(1, 5).Draw(rt, "a")
		b := rapid.IntRange(1, 5).Draw(rt, "b")
		var blocks []Block
		for i := 0; i < a; i++ {
			blocks = append(blocks, ListItem{Text: "a", NewList: i == 0})
		}
		for i := 0; i < b; i++ {
			blocks = append(blocks, ListItem{Ordered: true, Text: "b", NewList: i == 0})
		}
		out := Render(blocks, nil)
		if strings.Count(out, "\n\n") != 1 || strings.Contains(out, "\n\n\n") {
			rt.Fatalf("expected exactly one blank line between lists: %q", out)
		}
	})
}

// --- classifier ---

func TestClassify_Kinds(t *testing.T) {
	text := "Project Overview\nThis line ends with a period.\n• first\n2) second\n\n- third"
	blocks := Classify(text, false)
	require.Len(t, blocks, 5)
	assert.Equal(t, Heading{Level: PlainHeadingLevel, Text: "Project Overview"}, blocks[0])
	assert.Equal(t, Paragraph{Text: "This line ends with a period."}, blocks[1])
	assert.Equal(t, ListItem{Text: "first", NewList: true}, blocks[2])
	assert.Equal(t, ListItem{Ordered: true, Text: "second"}, blocks[3])
	assert.Equal(t, ListItem{Text: "third", NewList: true}, blocks[4])
}

func TestClassify_ParagraphGrouping(t *testing.T) {
	text := "lower one.\nlower two.\n\nlower three."
	grouped := Classify(text, false)
	assert.Equal(t, []Block{
		Paragraph{Text: "lower one.\nlower two."},
		Paragraph{Text: "lower three."},
	}, grouped)

	split := Classify(text, true)
	assert.Len(t, split, 3)
}

func TestIsHeadingLine(t *testing.T) {
	assert.True(t, IsHeadingLine("Summary"))
	assert.False(t, IsHeadingLine("summary"))
	assert.False(t, IsHeadingLine("Summary."))
	assert.False(t, IsHeadingLine(""))
	assert.False(t, IsHeadingLine("A"+strings.Repeat("b", 99)))
	assert.True(t, IsHeadingLine("A"+strings.Repeat("b", 98)))
}

func TestClassify_PrefixedHeadingNotRematched(t *testing.T) {
	first := Classify("Title", false)
	require.Equal(t, []Block{Heading{Level: PlainHeadingLevel, Text: "Title"}}, first)

	rendered := Render(first, nil)
	again := Classify(rendered, false)
	for _, b := range again {
		if _, ok := b.(Heading); ok {
			t.Errorf("rendered heading %q was classified as a heading again", rendered)
		}
	}
}

func TestClassify_HeadingsNeverGainMarkers(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		line := rapid.StringMatching(`[A-Za-z#][A-Za-z .]{0,40}`).Draw(rt, "line")
		for _, b := range Classify(line, false) {
			if h, ok := b.(Heading); ok && strings.HasPrefix(h.Text, "#") {
				rt.Fatalf("heading text carries a marker: %q", h.Text)
			}
		}
	})
}
