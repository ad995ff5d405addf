package translator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdblues/translator/pkg/protector"
	"github.com/birdblues/translator/pkg/translator"
)

func protectDoc(t *testing.T, doc string) (string, *protector.BlockMap) {
	t.Helper()
	protected, blocks := protector.New().Protect(doc)
	return protected, blocks
}

func TestVerifyIntact(t *testing.T) {
	doc := "Intro.\n\n```go\na := 1\n```\n\n$$\nE = mc^2\n$$\n\nOutro.\n"
	protected, blocks := protectDoc(t, doc)
	require.Equal(t, 2, blocks.Count())

	report := translator.Verify(protected, protected, blocks)
	assert.True(t, report.OK())
	assert.Empty(t, report.Damaged)
	assert.Equal(t, "all placeholders intact", report.Summary())
}

func TestVerifyMissing(t *testing.T) {
	doc := "Intro.\n\n```go\na := 1\n```\n\nOutro.\n"
	protected, blocks := protectDoc(t, doc)

	translated := strings.Replace(protected, "__CODE_BLOCK_0__", "", 1)
	report := translator.Verify(translated, protected, blocks)

	assert.False(t, report.OK())
	assert.Equal(t, []string{"__CODE_BLOCK_0__"}, report.Missing)
	assert.Empty(t, report.Duplicated)
	assert.Contains(t, report.Summary(), "missing 1: __CODE_BLOCK_0__")
}

func TestVerifyDuplicated(t *testing.T) {
	doc := "Intro.\n\n```go\na := 1\n```\n"
	protected, blocks := protectDoc(t, doc)

	translated := strings.Replace(protected, "__CODE_BLOCK_0__", "__CODE_BLOCK_0__\n\n__CODE_BLOCK_0__", 1)
	report := translator.Verify(translated, protected, blocks)

	assert.False(t, report.OK())
	assert.Equal(t, []string{"__CODE_BLOCK_0__"}, report.Duplicated)
	assert.Contains(t, report.Summary(), "duplicated 1")
}

// TestVerifyDamagedTypo 模型抄错一个字符时报告最接近的变体
func TestVerifyDamagedTypo(t *testing.T) {
	doc := "Intro.\n\n```go\na := 1\n```\n"
	protected, blocks := protectDoc(t, doc)

	translated := strings.Replace(protected, "__CODE_BLOCK_0__", "__CODE_BLOCK_0_", 1)
	report := translator.Verify(translated, protected, blocks)

	assert.False(t, report.OK())
	require.Len(t, report.Damaged, 1)
	assert.Equal(t, "__CODE_BLOCK_0__", report.Damaged[0].Want)
	assert.Equal(t, "__CODE_BLOCK_0_", report.Damaged[0].Got)
	assert.Equal(t, 1, report.Damaged[0].Distance)
}

// TestVerifyDamagedCase 大小写被改写时编辑距离很大，靠 MatchFold 识别
func TestVerifyDamagedCase(t *testing.T) {
	doc := "Intro.\n\n```go\na := 1\n```\n"
	protected, blocks := protectDoc(t, doc)

	translated := strings.Replace(protected, "__CODE_BLOCK_0__", "__code_block_0__", 1)
	report := translator.Verify(translated, protected, blocks)

	require.Len(t, report.Damaged, 1)
	assert.Equal(t, "__code_block_0__", report.Damaged[0].Got)
	assert.Contains(t, report.Summary(), "__CODE_BLOCK_0__ -> __code_block_0__")
}

// TestVerifyIntactSiblingNotFlagged 完好的相邻占位符不能被当成丢失者的变体
func TestVerifyIntactSiblingNotFlagged(t *testing.T) {
	doc := "A.\n\n```go\na := 1\n```\n\nB.\n\n```go\nb := 2\n```\n"
	protected, blocks := protectDoc(t, doc)
	require.Equal(t, 2, blocks.Count())

	translated := strings.Replace(protected, "__CODE_BLOCK_0__", "", 1)
	report := translator.Verify(translated, protected, blocks)

	assert.Equal(t, []string{"__CODE_BLOCK_0__"}, report.Missing)
	// __CODE_BLOCK_1__ 与丢失者编辑距离只有 1，但它自身完好
	assert.Empty(t, report.Damaged)
}

// TestVerifyNestedPlaceholderNotRequired 代码块里的数学公式先被替换，
// 其占位符只存在于块值内部，不在保护后原文中，译文也不要求出现
func TestVerifyNestedPlaceholderNotRequired(t *testing.T) {
	doc := "Before.\n\n```math\n$$x+y$$\n```\n\nAfter.\n"
	protected, blocks := protectDoc(t, doc)

	assert.NotContains(t, protected, "__MATH_BLOCK_0__")
	assert.Contains(t, blocks.Code["__CODE_BLOCK_0__"], "__MATH_BLOCK_0__")

	report := translator.Verify(protected, protected, blocks)
	assert.True(t, report.OK())
	assert.Empty(t, report.Missing)
}
