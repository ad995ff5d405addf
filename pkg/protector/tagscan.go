package protector

import (
	"regexp"
	"strings"
)

// voidElements 无配对关闭标签的 HTML 元素
var voidElements = map[string]struct{}{
	"br": {}, "hr": {}, "img": {}, "input": {}, "meta": {}, "link": {},
	"area": {}, "base": {}, "col": {}, "embed": {}, "source": {}, "track": {}, "wbr": {},
}

var (
	tagNamePattern   = regexp.MustCompile(`^<(\w+)`)
	selfClosePattern = regexp.MustCompile(`^<[^>]+\s*/>`)
)

// scanTags 从左到右扫描 '<'，把完整的 HTML 元素替换为占位符。
// 扫描位置只落在 ASCII 字符上，按字节索引切分是安全的；
// 已写入的占位符不含 '<'，游标不会停在占位符内部。
// 无法配对的标签按纯文本跳过，其内部的标签在后续扫描中单独保护。
func (p *Protector) scanTags(text string, blocks map[string]string, counter int) string {
	pos := 0
	for pos < len(text) {
		rel := strings.IndexByte(text[pos:], '<')
		if rel < 0 {
			break
		}
		tagStart := pos + rel

		name := tagNameAt(text[tagStart:])
		if name == "" {
			// 关闭标签、DOCTYPE 或孤立的 '<'
			pos = tagStart + 1
			continue
		}

		if m := selfClosePattern.FindString(text[tagStart:]); m != "" {
			placeholder := placeholderFor(htmlPlaceholderFormat, counter)
			blocks[placeholder] = m
			text = text[:tagStart] + placeholder + text[tagStart+len(m):]
			counter++
			pos = tagStart + len(placeholder)
			continue
		}

		if _, void := voidElements[name]; void {
			gt := strings.IndexByte(text[tagStart:], '>')
			if gt < 0 {
				pos = tagStart + 1
				continue
			}
			end := tagStart + gt + 1
			placeholder := placeholderFor(htmlPlaceholderFormat, counter)
			blocks[placeholder] = text[tagStart:end]
			text = text[:tagStart] + placeholder + text[end:]
			counter++
			pos = tagStart + len(placeholder)
			continue
		}

		end := findElementEnd(text, tagStart, name)
		if end < 0 {
			pos = tagStart + 1
			continue
		}
		placeholder := placeholderFor(htmlPlaceholderFormat, counter)
		blocks[placeholder] = text[tagStart:end]
		text = text[:tagStart] + placeholder + text[end:]
		counter++
		pos = tagStart + len(placeholder)
	}
	return text
}

// tagNameAt 提取 '<' 之后的标签名（小写），非法则返回空串
func tagNameAt(s string) string {
	m := tagNamePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// findElementEnd 用同名深度计数定位与 start 处开标签配对的关闭标签，
// 返回元素结束位置（关闭标签 '>' 之后），找不到返回 -1。
// 只有严格同名的标签参与计数，<i> 不会被 <img> 干扰。
func findElementEnd(text string, start int, name string) int {
	gt := strings.IndexByte(text[start:], '>')
	if gt < 0 {
		return -1
	}
	pos := start + gt + 1
	depth := 1

	for pos < len(text) {
		rel := strings.IndexByte(text[pos:], '<')
		if rel < 0 {
			return -1
		}
		next := pos + rel

		if strings.HasPrefix(text[next:], "</") {
			if n := closeTagLen(text[next:], name); n > 0 {
				depth--
				if depth == 0 {
					return next + n
				}
				pos = next + n
				continue
			}
			pos = next + 1
			continue
		}

		if n, selfClosed := openTagLen(text[next:], name); n > 0 {
			if !selfClosed {
				depth++
			}
			pos = next + n
			continue
		}
		pos = next + 1
	}
	return -1
}

// closeTagLen 匹配 </name>（忽略大小写），返回标签长度，不匹配返回 0
func closeTagLen(s, name string) int {
	n := 2 + len(name)
	if len(s) <= n || !strings.EqualFold(s[2:n], name) || s[n] != '>' {
		return 0
	}
	return n + 1
}

// openTagLen 匹配 <name ...> 形式的同名开标签，返回标签长度及是否自闭合
func openTagLen(s, name string) (int, bool) {
	n := 1 + len(name)
	if len(s) <= n || s[0] != '<' || !strings.EqualFold(s[1:n], name) {
		return 0, false
	}
	switch c := s[n]; {
	case c == '>' || c == '/' || c == ' ' || c == '\t' || c == '\n' || c == '\r':
	default:
		return 0, false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return 0, false
	}
	return gt + 1, strings.HasSuffix(s[:gt+1], "/>")
}
