package formatter

import (
	"regexp"
	"strings"

	"github.com/Kunde21/markdownfmt/v3"
	"github.com/Kunde21/markdownfmt/v3/markdown"
	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Formatter 把抓取或导出得到的 Markdown 整理成适合逐块翻译的形态：
// 段落内的换行合并为单个空格，块与块之间恰好一个空行，
// 表格重建为无对齐冒号的规范形式，代码块、列表和公式原样保留。
type Formatter struct {
	md goldmark.Markdown
}

// New 创建格式化器
func New() *Formatter {
	return &Formatter{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				mathjax.MathJax,
			),
		),
	}
}

// front matter 手工切出，避免解析器改写其原文
var frontMatterPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?\n)---\s*\n(.*)$`)

// Format 重排 Markdown 文本
func (f *Formatter) Format(raw string) string {
	frontMatter, body := splitFrontMatter(raw)

	var parts []string
	if frontMatter != "" {
		parts = append(parts, frontMatter, "")
	}

	source := []byte(body)
	doc := f.md.Parser().Parse(text.NewReader(source))

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading := strings.Repeat("#", n.Level) + " " + strings.TrimSpace(blockText(n, source))
			parts = append(parts, heading, "")
		case *ast.Paragraph:
			parts = append(parts, collapseSpace(blockText(n, source)), "")
		case *ast.FencedCodeBlock:
			parts = append(parts, rebuildFence(n, source), "")
		case *ast.CodeBlock:
			parts = append(parts, rebuildIndentCode(n, source), "")
		case *ast.List:
			parts = append(parts, rawListSource(n, source), "")
		case *extast.Table:
			parts = append(parts, rebuildTable(n, source), "")
		case *ast.Blockquote:
			parts = append(parts, rebuildBlockquote(n, source), "")
		case *mathjax.MathBlock:
			parts = append(parts, "$$\n"+strings.TrimSpace(blockText(n, source))+"\n$$", "")
		case *ast.HTMLBlock:
			parts = append(parts, strings.TrimSpace(rawHTMLSource(n, source)))
		case *ast.ThematicBreak:
			parts = append(parts, "---")
		}
	}

	return strings.Join(parts, "\n")
}

// FormatCanonical 用 markdownfmt 做一次标准化渲染，
// 适合只需要统一缩进和围栏风格、不要求段落重排的场景。
func (f *Formatter) FormatCanonical(raw string) (string, error) {
	out, err := markdownfmt.Process("", []byte(raw),
		markdown.WithCodeFormatters(markdown.GoCodeFormatter),
	)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// splitFrontMatter 返回规范化的 front matter（无则为空串）和余下正文
func splitFrontMatter(raw string) (string, string) {
	trimmed := strings.TrimSpace(raw)
	m := frontMatterPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", trimmed
	}
	content := strings.TrimRight(m[1], "\n")
	return "---\n" + content + "\n---", m[2]
}

// blockText 拼接块节点覆盖的原始行
func blockText(n ast.Node, source []byte) string {
	return string(n.Lines().Value(source))
}

// collapseSpace 把段落内的所有空白序列压成单个空格
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func rebuildFence(n *ast.FencedCodeBlock, source []byte) string {
	info := ""
	if n.Info != nil {
		info = strings.TrimSpace(string(n.Info.Segment.Value(source)))
	}
	content := strings.TrimRight(blockText(n, source), "\n")
	return "```" + info + "\n" + content + "\n```"
}

func rebuildIndentCode(n *ast.CodeBlock, source []byte) string {
	content := strings.TrimSpace(blockText(n, source))
	return "    " + strings.ReplaceAll(content, "\n", "\n    ")
}

// rawListSource 列表不重排，从原文里按行切出整个列表区间
func rawListSource(n ast.Node, source []byte) string {
	start, stop := -1, -1
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if start < 0 || seg.Start < start {
				start = seg.Start
			}
			if seg.Stop > stop {
				stop = seg.Stop
			}
		}
		return ast.WalkContinue, nil
	})
	if start < 0 {
		return "<!-- List content preserved -->"
	}
	// 扩展到整行边界，把列表符号和缩进带回来
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for stop < len(source) && source[stop] != '\n' {
		stop++
	}
	return strings.TrimRight(string(source[start:stop]), "\n")
}

// rebuildTable 重建表格：单元格去空白，首行后补 --- 分隔行。
// 对齐冒号在重建中丢弃，输出是最朴素的管道表格。
func rebuildTable(tbl ast.Node, source []byte) string {
	var rows []string
	header := true
	for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(blockText(cell, source)))
		}
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		if header {
			seps := make([]string, len(cells))
			for i := range seps {
				seps[i] = "---"
			}
			rows = append(rows, "| "+strings.Join(seps, " | ")+" |")
			header = false
		}
	}
	if len(rows) == 0 {
		return "<!-- Table content preserved -->"
	}
	return strings.Join(rows, "\n")
}

// rebuildBlockquote 只保留引用中的段落，逐段压平成 "> " 行。
// 引用内的标题与嵌套层级在重排中丢失。
func rebuildBlockquote(bq ast.Node, source []byte) string {
	var lines []string
	_ = ast.Walk(bq, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if p, ok := node.(*ast.Paragraph); ok {
			lines = append(lines, "> "+collapseSpace(blockText(p, source)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if len(lines) == 0 {
		return "<!-- Blockquote content preserved -->"
	}
	return strings.Join(lines, "\n")
}

func rawHTMLSource(n *ast.HTMLBlock, source []byte) string {
	var b strings.Builder
	b.Write(n.Lines().Value(source))
	if n.HasClosure() {
		b.Write(n.ClosureLine.Value(source))
	}
	return b.String()
}
