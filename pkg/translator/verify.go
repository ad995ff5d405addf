package translator

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/birdblues/translator/pkg/protector"
)

// 编辑距离超过这个值的 token 不再当作被改写的占位符
const damageThreshold = 5

// DamagedPlaceholder 译文中疑似被模型改写的占位符
type DamagedPlaceholder struct {
	Want     string // 原始占位符
	Got      string // 译文中找到的变体
	Distance int    // 编辑距离
}

// VerifyReport 占位符完整性检查结果。
// 占位符丢失或重复时直接还原会悄悄丢块或复制块，必须先检查。
type VerifyReport struct {
	Missing    []string
	Duplicated []string
	Damaged    []DamagedPlaceholder
}

// OK 占位符是否全部原样保留
func (r *VerifyReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicated) == 0
}

// Summary 返回一行摘要，用于日志和错误消息
func (r *VerifyReport) Summary() string {
	if r.OK() {
		return "all placeholders intact"
	}

	parts := make([]string, 0, 3)
	if len(r.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %d: %s", len(r.Missing), strings.Join(r.Missing, ", ")))
	}
	if len(r.Duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated %d: %s", len(r.Duplicated), strings.Join(r.Duplicated, ", ")))
	}
	if len(r.Damaged) > 0 {
		got := make([]string, 0, len(r.Damaged))
		for _, d := range r.Damaged {
			got = append(got, fmt.Sprintf("%s -> %s", d.Want, d.Got))
		}
		parts = append(parts, fmt.Sprintf("damaged %d: %s", len(r.Damaged), strings.Join(got, ", ")))
	}
	return strings.Join(parts, "; ")
}

// Verify 对比译文与保护后原文，检查占位符是否原样保留。
// 嵌套在其他块值里的占位符不出现在保护后原文中，译文同样不要求出现。
// 占位符带 __ 结尾，_1__ 不会误匹配 _10__，按子串计数即可。
func Verify(translated, protected string, blocks *protector.BlockMap) *VerifyReport {
	report := &VerifyReport{}
	placeholders := blocks.Placeholders()

	var tokens []string
	for _, ph := range placeholders {
		want := strings.Count(protected, ph)
		switch got := strings.Count(translated, ph); {
		case got == want:
			// 原样保留，want 为 0 时是嵌套占位符
		case got < want:
			report.Missing = append(report.Missing, ph)
			if tokens == nil {
				tokens = placeholderTokens(translated, placeholders)
			}
			if variant, dist, ok := nearestVariant(tokens, ph); ok {
				report.Damaged = append(report.Damaged, DamagedPlaceholder{
					Want:     ph,
					Got:      variant,
					Distance: dist,
				})
			}
		default:
			report.Duplicated = append(report.Duplicated, ph)
		}
	}

	return report
}

// placeholderTokens 收集译文中带 __ 的 token 作为改写嫌疑对象。
// 含完好占位符的 token 要排除，完好的 __CODE_BLOCK_2__ 与丢失的
// __CODE_BLOCK_1__ 编辑距离只有 1。
func placeholderTokens(text string, known []string) []string {
	var tokens []string
	for _, token := range strings.Fields(text) {
		if !strings.Contains(token, "__") {
			continue
		}
		intact := false
		for _, ph := range known {
			if strings.Contains(token, ph) {
				intact = true
				break
			}
		}
		if !intact {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// nearestVariant 在嫌疑 token 中找与占位符最接近的变体。
// 大小写被改写时编辑距离很大，用 MatchFold 兜底。
func nearestVariant(tokens []string, placeholder string) (string, int, bool) {
	best := ""
	bestDist := 0
	found := false

	for _, token := range tokens {
		dist := fuzzy.LevenshteinDistance(placeholder, token)
		if dist > damageThreshold && !fuzzy.MatchFold(placeholder, token) {
			continue
		}
		if !found || dist < bestDist {
			best = token
			bestDist = dist
			found = true
		}
	}

	return best, bestDist, found
}
