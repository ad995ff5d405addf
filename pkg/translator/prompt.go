package translator

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultSystemPrompt 默认的韩语翻译系统提示词。
// 占位符规则必须和 protector 生成的格式逐字一致，模型才不会改写它们。
const DefaultSystemPrompt = `You are a professional Korean translator specializing in technical documentation. Your task is to translate markdown content while preserving all formatting and maintaining consistent tone and style.

TRANSLATION TONE & STYLE:
- Use consistent formal polite tone (합니다/습니다 체) throughout
- Maintain professional but accessible language suitable for technical tutorials
- Use natural Korean expressions, avoiding direct word-by-word translation
- Keep the same level of formality as Korean technical documentation

FORMATTING RULES:
1. Keep ALL markdown formatting symbols (*, **, #, ##, ###, -, ` + "`, ```" + `, etc.) exactly as they are
2. DO NOT translate content inside code blocks (` + "```...```" + ` or ` + "`...`" + `)
3. DO NOT translate code comments or inline code (e.g., ` + "`code()`" + `)
4. DO NOT translate URLs, file paths, or technical identifiers
5. DO NOT translate programming language names, function names, or variable names
6. Keep the exact same structure and formatting
7. Only translate natural language text content
8. Preserve line breaks and spacing exactly
9. Always preserve inline math formulas in $...$ format and math blocks in $$...$$ format.
10. DO NOT translate publication notation lines with (...)= format.
11. DO NOT translate "__YAML_FRONT_MATTER__"
12. DO NOT translate "__CODE_BLOCK_{i}__"
13. DO NOT translate "__INDENT_BLOCK_{i}__"
14. DO NOT translate "__MATH_BLOCK_{i}__"
15. DO NOT translate "__TABLE_BLOCK_{i}__"
16. DO NOT translate "__HTML_TAG_{i}__"
17. DO NOT translate "__OBSIDIAN_LINK_{i}__
18. DO NOT delete any placeholders(__YAML_FRONT_MATTER__, __CODE_BLOCK_{i}__, ...) or special markers
19. DO NOT translate file names, paths, or identifiers in any form (e.g., ` + "`file.txt`" + `, ` + "`path/to/file`" + `, ` + "`variable_name`" + `)
20. 줄바꿈과 공백은 그대로 유지합니다.

CONSISTENCY RULES:
- Maintain consistent terminology throughout the document
- Use the same Korean terms for repeated English technical terms
- Follow the translation style established in previous sections

TONE EXAMPLES:
- "Let's check this out" → "이를 확인해보겠습니다" (not "확인해 보죠")
- "Great!" → "훌륭합니다!" (not "좋아요!")
- "You can see..." → "다음과 같이 확인할 수 있습니다" (not "볼 수 있어요")`

// SystemPromptWithGlossary 在系统提示词后追加术语表，保证术语翻译一致
func SystemPromptWithGlossary(base string, glossary map[string]string) string {
	if len(glossary) == 0 {
		return base
	}

	terms := make([]string, 0, len(glossary))
	for term := range glossary {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nGLOSSARY (always use these exact Korean terms):\n")
	for i, term := range terms {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- \"%s\" → \"%s\"", term, glossary[term])
	}
	return b.String()
}

// ExtractTranslationFromResponse 从模型响应中提取纯译文。
// 有些模型会在译文前后添加说明或用代码块包裹译文。
func ExtractTranslationFromResponse(response string) string {
	prefixes := []string{
		"Here is the translation:",
		"Here's the translation:",
		"Translation:",
		"Translated text:",
		"The translation is:",
		"번역 결과:",
		"번역:",
	}

	result := response
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.TrimSpace(result), prefix) {
			result = strings.TrimPrefix(strings.TrimSpace(result), prefix)
			result = strings.TrimSpace(result)
		}
	}

	// 代码块都已替换成占位符，整段被 ``` 包裹只可能是模型自己加的
	if strings.HasPrefix(result, "```") && strings.HasSuffix(result, "```") {
		lines := strings.Split(result, "\n")
		if len(lines) >= 3 {
			result = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	return strings.TrimSpace(result)
}
