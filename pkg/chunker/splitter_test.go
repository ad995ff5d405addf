package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordLen(s string) int {
	return len(strings.Fields(s))
}

func TestSplitterPrefersParagraphBoundary(t *testing.T) {
	s := NewSplitter(4, 0, wordLen)

	out := s.Split("p1 a b\n\np2 c d\n\np3 e f")
	assert.Equal(t, []string{"p1 a b", "p2 c d", "p3 e f"}, out)
}

func TestSplitterOverlap(t *testing.T) {
	s := NewSplitter(4, 2, wordLen)

	out := s.Split("a b c d e f")
	require.Len(t, out, 2)
	assert.Equal(t, "a b c d", out[0])
	// 重叠窗口带上前一片段的尾部
	assert.Equal(t, "c d e f", out[1])
}

func TestSplitterCharacterFallback(t *testing.T) {
	s := NewSplitter(3, 0, func(text string) int { return len(text) })

	out := s.Split("abcdefgh")
	assert.Equal(t, []string{"abc", "def", "gh"}, out)
}

func TestSplitterRecursesIntoOversizedParagraph(t *testing.T) {
	s := NewSplitter(3, 0, wordLen)

	out := s.Split("short one\n\nlong paragraph with many words inside")
	require.Greater(t, len(out), 2)
	for _, piece := range out {
		assert.LessOrEqual(t, wordLen(piece), 3)
	}
	assert.Equal(t, "short one", out[0])
}

func TestSplitterOversizedAtomKeptVerbatim(t *testing.T) {
	s := NewSplitter(2, 0, func(text string) int {
		if text == "" {
			return 0
		}
		return 3
	})

	// 每个字符都计为 3：不可再分的超限片段原样输出，这是预算唯一的例外
	out := s.Split("xy")
	assert.Equal(t, []string{"x", "y"}, out)
}
