package chunker

import "strings"

// defaultSeparators 按结构强弱排列，末尾空串兜底到逐字符切分
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter 把超出长度上限的文本递归切小：选择文本中出现的最强分隔符切开，
// 仍超限的片段用更弱的分隔符继续切，碎片再贪心合并回上限以内。
// 长度与上限、重叠量都以 count 函数的单位计。
type Splitter struct {
	maxLength  int
	overlap    int
	count      func(string) int
	separators []string
}

// NewSplitter 创建切分器，count 必须与上限使用同一单位
func NewSplitter(maxLength, overlap int, count func(string) int) *Splitter {
	return &Splitter{
		maxLength:  maxLength,
		overlap:    overlap,
		count:      count,
		separators: defaultSeparators,
	}
}

// Split 切分文本。除单个不可再分片段超限的情形外，
// 每个结果片段的长度都不超过 maxLength。
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var out []string
	var good []string
	flush := func() {
		if len(good) == 0 {
			return
		}
		out = append(out, s.merge(good)...)
		good = nil
	}

	for _, piece := range splitKeepingSeparator(text, separator) {
		if s.count(piece) < s.maxLength {
			good = append(good, piece)
			continue
		}
		flush()
		if len(remaining) == 0 {
			out = append(out, piece)
			continue
		}
		out = append(out, s.split(piece, remaining)...)
	}
	flush()
	return out
}

// splitKeepingSeparator 切分并把分隔符留在后继片段的开头，
// 碎片直接拼接即可还原原文。空分隔符退化为逐字符切分。
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge 贪心拼接碎片，超限时提交当前窗口并从头部弹出碎片制造重叠
func (s *Splitter) merge(splits []string) []string {
	var docs []string
	var window []string
	total := 0

	for _, piece := range splits {
		n := s.count(piece)
		if total+n > s.maxLength && len(window) > 0 {
			if doc := joinStrip(window); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (total+n > s.maxLength && total > 0) {
				total -= s.count(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}

	if doc := joinStrip(window); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinStrip(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, ""))
}
