package chunker

import (
	"fmt"

	"github.com/birdblues/translator/pkg/tokenizer"
)

const (
	// DefaultMaxTokens 单个翻译单元的默认 token 预算
	DefaultMaxTokens = 1000
	// DefaultOverlap 重切分时相邻片段的默认重叠 token 数
	DefaultOverlap = 0
)

// Header 标题路径中的一级
type Header struct {
	Level int
	Text  string
}

// Unit 一个翻译单元。SourceOrdinal 是文档顺序下标，
// 并发翻译后按它重新排序拼接。
type Unit struct {
	Content       string
	TokenCount    int
	HeaderPath    []Header
	SourceOrdinal int
}

// Stats 一次分块的汇总统计
type Stats struct {
	TotalChunks       int     `json:"total_chunks"`
	TotalTokens       int     `json:"total_tokens"`
	AvgTokensPerChunk float64 `json:"avg_tokens_per_chunk"`
	MaxTokens         int     `json:"max_tokens"`
	ChunksOverLimit   int     `json:"chunks_over_limit"`
}

// Chunker 自适应 Markdown 分块器：先按标题切成行组，
// 再把相邻行组贪心合并到预算以内，超预算的行组递归切小。
type Chunker struct {
	maxTokens int
	overlap   int
	counter   tokenizer.Counter
	splitter  *Splitter
}

// New 创建分块器。maxTokens 不合法时退回 DefaultMaxTokens。
func New(maxTokens, overlap int, counter tokenizer.Counter) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		counter:   counter,
		splitter:  NewSplitter(maxTokens, overlap, counter.Count),
	}
}

// Chunk 切分文本为翻译单元。
// 合并以 "\n\n" 连接，仅当合并结果仍在预算内才提交；
// 元数据按后者覆盖前者的规则合并。单个行组超预算时交给 Splitter 再切，
// 只有连一个不可分片段都超预算时才会出现超限单元。
func (c *Chunker) Chunk(text string) []Unit {
	entries := partition(text)

	var units []Unit
	var acc *entry
	for i := range entries {
		e := entries[i]
		if acc == nil {
			acc = &e
			continue
		}
		merged := acc.content + "\n\n" + e.content
		if c.counter.Count(merged) <= c.maxTokens {
			acc.content = merged
			for k, v := range e.metadata {
				acc.metadata[k] = v
			}
			continue
		}
		units = c.appendUnits(units, acc)
		acc = &e
	}
	if acc != nil {
		units = c.appendUnits(units, acc)
	}

	for i := range units {
		units[i].SourceOrdinal = i
	}
	return units
}

// Stats 统计单元的 token 分布
func (c *Chunker) Stats(units []Unit) Stats {
	s := Stats{TotalChunks: len(units)}
	for _, u := range units {
		s.TotalTokens += u.TokenCount
		if u.TokenCount > s.MaxTokens {
			s.MaxTokens = u.TokenCount
		}
		if u.TokenCount > c.maxTokens {
			s.ChunksOverLimit++
		}
	}
	if len(units) > 0 {
		s.AvgTokensPerChunk = float64(s.TotalTokens) / float64(len(units))
	}
	return s
}

func (c *Chunker) appendUnits(units []Unit, e *entry) []Unit {
	n := c.counter.Count(e.content)
	path := headerPath(e.metadata)
	if n <= c.maxTokens {
		return append(units, Unit{Content: e.content, TokenCount: n, HeaderPath: path})
	}
	for _, piece := range c.splitter.Split(e.content) {
		units = append(units, Unit{
			Content:    piece,
			TokenCount: c.counter.Count(piece),
			HeaderPath: path,
		})
	}
	return units
}

// headerPath 把 "Header k" 元数据转为按层级排序的标题路径
func headerPath(meta map[string]string) []Header {
	if len(meta) == 0 {
		return nil
	}
	out := make([]Header, 0, len(meta))
	for level := 1; level <= 6; level++ {
		if text, ok := meta[fmt.Sprintf("Header %d", level)]; ok {
			out = append(out, Header{Level: level, Text: text})
		}
	}
	return out
}
