package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding 与主流 chat 模型对齐的 BPE 编码
const DefaultEncoding = "cl100k_base"

// Counter 度量文本的 token 数。分块预算、统计和重切分都以它为准，
// 同一次运行中必须使用同一个 Counter，否则预算判断互相矛盾。
type Counter interface {
	Count(text string) int
}

// TiktokenCounter 基于 tiktoken BPE 的精确计数
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken 加载指定编码，encoding 为空时用 DefaultEncoding。
// 首次加载可能需要下载 BPE 词表，离线环境会失败，调用方可退回 NewHeuristic。
func NewTiktoken(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// HeuristicCounter 无词表的近似计数：拉丁文本约 4 字符一个 token，
// CJK 与谚文按每字一个 token。只作为 tiktoken 不可用时的后备。
type HeuristicCounter struct{}

func NewHeuristic() *HeuristicCounter {
	return &HeuristicCounter{}
}

func (c *HeuristicCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	latin, wide := 0, 0
	for _, r := range text {
		if r >= 0x1100 {
			wide++
		} else {
			latin++
		}
	}
	n := latin/4 + wide
	if n == 0 {
		n = 1
	}
	return n
}
