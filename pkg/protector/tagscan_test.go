package protector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanNestedElementSinglePlaceholder(t *testing.T) {
	p := New()
	text := `<div><span>x</span><span>y</span></div>`

	masked, blocks := p.Protect(text)
	require.Len(t, blocks.HTML, 1)
	assert.Equal(t, "__HTML_TAG_0__", masked)
	assert.Equal(t, text, blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestScanSameNameDepth(t *testing.T) {
	p := New()
	text := `<div>outer <div>inner</div> tail</div>`

	masked, blocks := p.Protect(text)
	require.Len(t, blocks.HTML, 1)
	assert.Equal(t, text, blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestScanNamePrefixNotCounted(t *testing.T) {
	p := New()
	// <i> 的深度不受 <img> 影响
	text := `text <i>word <img src="a.png"> rest</i> end`

	masked, blocks := p.Protect(text)
	assert.Equal(t, "text __HTML_TAG_0__ end", masked)
	assert.Equal(t, `<i>word <img src="a.png"> rest</i>`, blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestScanVoidAndSelfClosing(t *testing.T) {
	p := New()
	text := "line one<br>\nline two <img src=\"x.png\" />\n"

	masked, blocks := p.Protect(text)
	assert.Equal(t, "line one__HTML_TAG_0__\nline two __HTML_TAG_1__\n", masked)
	assert.Equal(t, "<br>", blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, `<img src="x.png" />`, blocks.HTML["__HTML_TAG_1__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestScanUnclosedTagSkipped(t *testing.T) {
	p := New()
	text := "a <div>never closed b"

	masked, blocks := p.Protect(text)
	assert.Empty(t, blocks.HTML)
	assert.Equal(t, text, masked)
}

func TestScanUnmatchedOuterStillMasksInner(t *testing.T) {
	p := New()
	// 外层未闭合时按纯文本跳过，内部完整的标签仍然被保护
	text := "<div>broken <span>ok</span> tail"

	masked, blocks := p.Protect(text)
	require.Len(t, blocks.HTML, 1)
	assert.Equal(t, "<div>broken __HTML_TAG_0__ tail", masked)
	assert.Equal(t, "<span>ok</span>", blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestScanStrayAngleBracket(t *testing.T) {
	p := New()
	text := "3 < 5 and </orphan> stay"

	masked, blocks := p.Protect(text)
	assert.Empty(t, blocks.HTML)
	assert.Equal(t, text, masked)
}

func TestPriorityCommentScriptStyle(t *testing.T) {
	p := New()
	text := "<!-- a -->\n<script>let x = 1 < 2;</script>\n<style>p { color: red }</style>\n"

	masked, blocks := p.Protect(text)
	require.Len(t, blocks.HTML, 3)
	assert.Equal(t, "__HTML_TAG_0__\n__HTML_TAG_1__\n__HTML_TAG_2__\n", masked)
	assert.Equal(t, "<!-- a -->", blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, "<script>let x = 1 < 2;</script>", blocks.HTML["__HTML_TAG_1__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestPriorityNumberingReversed(t *testing.T) {
	p := New()
	// 同类优先模式按倒序编号，还原不受编号顺序影响
	text := "<!-- a --> mid <!-- b -->"

	masked, blocks := p.Protect(text)
	assert.Equal(t, "__HTML_TAG_1__ mid __HTML_TAG_0__", masked)
	assert.Equal(t, "<!-- b -->", blocks.HTML["__HTML_TAG_0__"])
	assert.Equal(t, "<!-- a -->", blocks.HTML["__HTML_TAG_1__"])
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestRestoreExpandsNestedPlaceholders(t *testing.T) {
	p := New()
	// div 的存储内容里含注释占位符，降序还原先展开外层块
	text := `<div><!-- hidden --><span>x</span></div>`

	masked, blocks := p.Protect(text)
	assert.Equal(t, "__HTML_TAG_1__", masked)
	assert.Contains(t, blocks.HTML["__HTML_TAG_1__"], "__HTML_TAG_0__")
	assert.Equal(t, text, p.Restore(masked, blocks))
}

func TestScanCaseInsensitiveClose(t *testing.T) {
	p := New()
	text := `<DIV>x</div>`

	masked, blocks := p.Protect(text)
	require.Len(t, blocks.HTML, 1)
	assert.Equal(t, text, p.Restore(masked, blocks))
}
