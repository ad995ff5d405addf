package protector

import (
	"fmt"
	"sort"
)

// 占位符格式。还原依赖字面匹配，格式必须与写入文档中的字符串逐字节一致。
const (
	YAMLPlaceholder         = "__YAML_FRONT_MATTER__"
	mathPlaceholderFormat   = "__MATH_BLOCK_%d__"
	codePlaceholderFormat   = "__CODE_BLOCK_%d__"
	indentPlaceholderFormat = "__INDENT_BLOCK_%d__"
	tablePlaceholderFormat  = "__TABLE_BLOCK_%d__"
	htmlPlaceholderFormat   = "__HTML_TAG_%d__"
)

// BlockMap 记录一次 Protect 调用中被保护的所有原始片段，
// 按类别分组，键为占位符，值为原文。
// 它由 Protect 返回、由配对的 Restore 消费，不在调用之间共享。
type BlockMap struct {
	YAML   map[string]string
	Math   map[string]string
	Code   map[string]string
	Indent map[string]string
	Table  map[string]string
	HTML   map[string]string
}

// NewBlockMap 创建空的 BlockMap
func NewBlockMap() *BlockMap {
	return &BlockMap{
		YAML:   make(map[string]string),
		Math:   make(map[string]string),
		Code:   make(map[string]string),
		Indent: make(map[string]string),
		Table:  make(map[string]string),
		HTML:   make(map[string]string),
	}
}

// Count 返回被保护片段的总数
func (b *BlockMap) Count() int {
	return len(b.YAML) + len(b.Math) + len(b.Code) + len(b.Indent) + len(b.Table) + len(b.HTML)
}

// Placeholders 返回本次保护生成的全部占位符（排序后），
// 供重写结果的占位符完整性校验使用。
func (b *BlockMap) Placeholders() []string {
	out := make([]string, 0, b.Count())
	for _, category := range []map[string]string{b.YAML, b.Math, b.Code, b.Indent, b.Table, b.HTML} {
		for placeholder := range category {
			out = append(out, placeholder)
		}
	}
	sort.Strings(out)
	return out
}

// placeholderFor 按类别格式生成第 i 个占位符
func placeholderFor(format string, i int) string {
	return fmt.Sprintf(format, i)
}
