package chunker

import (
	"fmt"
	"strings"
	"unicode"
)

// entry 是初始切分的最小单位：相邻非空行组成的行组及其标题元数据。
// 元数据键为 "Header 1".."Header 6"。
type entry struct {
	content  string
	metadata map[string]string
}

// partition 按行切分 Markdown 并跟随标题层级。
// 每行去除首尾空白后处理；围栏代码内的行不做标题识别；
// 空行或新标题结束当前行组。行组携带的元数据是该组开始前的标题状态，
// 标题行本身归入以它开头的行组。
func partition(text string) []entry {
	var (
		entries    []entry
		run        []string
		runMeta    = map[string]string{}
		headerMeta = map[string]string{}
		stack      []stackedHeader
		inFence    bool
		fence      string
	)

	flush := func(meta map[string]string) {
		if len(run) == 0 {
			return
		}
		entries = append(entries, entry{content: strings.Join(run, "\n"), metadata: copyMeta(meta)})
		run = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := dropUnprintable(strings.TrimSpace(raw))

		if !inFence {
			if strings.HasPrefix(line, "```") && strings.Count(line, "```") == 1 {
				inFence, fence = true, "```"
			} else if strings.HasPrefix(line, "~~~") {
				inFence, fence = true, "~~~"
			}
		} else if strings.HasPrefix(line, fence) {
			inFence, fence = false, ""
		}
		if inFence {
			run = append(run, line)
			continue
		}

		if level, title, ok := headingLine(line); ok {
			// 弹出同级及更深的标题，其元数据键一并失效
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				delete(headerMeta, top.key)
			}
			key := fmt.Sprintf("Header %d", level)
			stack = append(stack, stackedHeader{level: level, key: key})
			headerMeta[key] = title

			flush(runMeta)
			run = append(run, line)
		} else if line != "" {
			run = append(run, line)
		} else {
			flush(runMeta)
		}

		runMeta = copyMeta(headerMeta)
	}

	flush(runMeta)
	return entries
}

type stackedHeader struct {
	level int
	key   string
}

// headingLine 识别 ATX 标题：1~6 个 '#' 后跟空格或行尾
func headingLine(line string) (int, string, bool) {
	if !strings.HasPrefix(line, "#") {
		return 0, "", false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 {
		return 0, "", false
	}
	if len(line) != level && line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level:]), true
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dropUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}
