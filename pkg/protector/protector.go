package protector

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// Protector 在翻译前把 Markdown 中不可改写的结构片段替换为占位符，
// 翻译后再按占位符还原原文。实例无内部状态，可并发复用。
type Protector struct{}

// New 创建结构保护器
func New() *Protector {
	return &Protector{}
}

var (
	// front matter 仅匹配文档起始处的 --- 包围块
	yamlPattern = regexp2.MustCompile(`^---\n([\s\S]*?)\n---`, 0)

	// $$...$$ 块级公式，允许跨行
	mathPattern = regexp2.MustCompile(`(\$\$\s*\n?.*?\n?\s*\$\$)`, regexp2.Singleline)

	// 四反引号围栏优先于三反引号，保证内嵌代码示例整体保护
	codePattern = regexp2.MustCompile("(````[^\n]*\n[\\s\\S]*?````|```[^\n]*\n[\\s\\S]*?```)", 0)

	// 空行之后的连续缩进行构成缩进代码块，需要 lookbehind
	indentPattern = regexp2.MustCompile(`(?<=\n\n)(?:[ \t]+[^\n]+\n)+(?=\n|$)`, 0)

	// 表头行 + 分隔行 + 至少一行数据
	tablePattern = regexp2.MustCompile(`(\|[^\n]+\|\n\|[-|\s]+\|\n(?:\|[^\n]+\|\n?)+)`, 0)

	// 注释与 script/style 整体优先保护，内部的标签不再单独解析
	htmlPriorityPatterns = []*regexp2.Regexp{
		regexp2.MustCompile(`<!--[\s\S]*?-->`, regexp2.IgnoreCase),
		regexp2.MustCompile(`<script[^>]*>[\s\S]*?</script>`, regexp2.IgnoreCase),
		regexp2.MustCompile(`<style[^>]*>[\s\S]*?</style>`, regexp2.IgnoreCase),
	}

	placeholderPattern = regexp.MustCompile(`__(?:YAML_FRONT_MATTER|(?:MATH|CODE|INDENT|TABLE)_BLOCK_\d+|HTML_TAG_\d+)__`)
)

// Protect 依次保护 front matter、数学公式、代码块、缩进块、表格和 HTML，
// 返回替换后的文本和用于还原的 BlockMap。
// 顺序有意为之：公式先于代码围栏匹配，使围栏内的 $$ 不会被当作正文公式改写；
// 表格晚于代码，使围栏中的示例表格保持原样。
func (p *Protector) Protect(text string) (string, *BlockMap) {
	blocks := NewBlockMap()

	text = p.protectYAML(text, blocks.YAML)
	text = p.protectPattern(text, mathPattern, mathPlaceholderFormat, blocks.Math)
	text = p.protectPattern(text, codePattern, codePlaceholderFormat, blocks.Code)
	text = p.protectPattern(text, indentPattern, indentPlaceholderFormat, blocks.Indent)
	text = p.protectPattern(text, tablePattern, tablePlaceholderFormat, blocks.Table)
	text = p.protectHTML(text, blocks.HTML)

	return text, blocks
}

// Restore 将占位符替换回原文，类别顺序与保护相反。
// 同类别内按占位符编号降序还原：后编号的块可能包含先编号的占位符
// （如 div 内的注释），先展开外层才能让内层占位符出现在文本里。
// 对已还原的文本再次调用等价于恒等变换。
func (p *Protector) Restore(text string, blocks *BlockMap) string {
	text = restoreCategory(text, blocks.HTML, htmlPlaceholderFormat)
	text = restoreCategory(text, blocks.Table, tablePlaceholderFormat)
	text = restoreCategory(text, blocks.Indent, indentPlaceholderFormat)
	text = restoreCategory(text, blocks.Code, codePlaceholderFormat)
	text = restoreCategory(text, blocks.Math, mathPlaceholderFormat)
	if original, ok := blocks.YAML[YAMLPlaceholder]; ok {
		text = strings.ReplaceAll(text, YAMLPlaceholder, original)
	}
	return text
}

// DetectCollisions 返回文本中已存在的占位符形状的字面量。
// 输入本身含有这类字符串时还原结果不可信，调用方应拒绝或告警。
func (p *Protector) DetectCollisions(text string) []string {
	return placeholderPattern.FindAllString(text, -1)
}

// protectYAML 只保护文档开头的 front matter，正文中的 --- 分隔线不受影响
func (p *Protector) protectYAML(text string, blocks map[string]string) string {
	m, _ := yamlPattern.FindStringMatch(text)
	if m == nil {
		return text
	}
	blocks[YAMLPlaceholder] = m.String()
	return string(spliceRunes([]rune(text), m.Index, m.Length, YAMLPlaceholder))
}

// protectPattern 收集全部匹配后逆序替换，保证前面匹配的下标在替换过程中保持有效
func (p *Protector) protectPattern(text string, pattern *regexp2.Regexp, format string, blocks map[string]string) string {
	matches := findAll(pattern, text)
	if len(matches) == 0 {
		return text
	}
	runes := []rune(text)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		placeholder := placeholderFor(format, i)
		blocks[placeholder] = m.String()
		runes = spliceRunes(runes, m.Index, m.Length, placeholder)
	}
	return string(runes)
}

// protectHTML 先整体保护注释与 script/style，再用游标扫描处理余下的标签
func (p *Protector) protectHTML(text string, blocks map[string]string) string {
	counter := 0
	for _, pattern := range htmlPriorityPatterns {
		matches := findAll(pattern, text)
		if len(matches) == 0 {
			continue
		}
		runes := []rune(text)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			placeholder := placeholderFor(htmlPlaceholderFormat, counter)
			blocks[placeholder] = m.String()
			runes = spliceRunes(runes, m.Index, m.Length, placeholder)
			counter++
		}
		text = string(runes)
	}
	return p.scanTags(text, blocks, counter)
}

func restoreCategory(text string, blocks map[string]string, format string) string {
	for i := len(blocks) - 1; i >= 0; i-- {
		placeholder := placeholderFor(format, i)
		original, ok := blocks[placeholder]
		if !ok {
			continue
		}
		text = strings.ReplaceAll(text, placeholder, original)
	}
	return text
}

// findAll 逐个前进收集所有匹配
func findAll(pattern *regexp2.Regexp, text string) []*regexp2.Match {
	var matches []*regexp2.Match
	m, err := pattern.FindStringMatch(text)
	for err == nil && m != nil {
		matches = append(matches, m)
		m, err = pattern.FindNextMatch(m)
	}
	return matches
}

// spliceRunes 按 rune 下标替换区间。regexp2 的匹配位置以 rune 计，
// 对含中日韩文本的文档不能直接当字节下标用。
func spliceRunes(runes []rune, start, length int, replacement string) []rune {
	out := make([]rune, 0, len(runes)-length+len(replacement))
	out = append(out, runes[:start]...)
	out = append(out, []rune(replacement)...)
	out = append(out, runes[start+length:]...)
	return out
}
