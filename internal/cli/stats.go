package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/birdblues/translator/internal/config"
	"github.com/birdblues/translator/internal/logger"
	"github.com/birdblues/translator/pkg/chunker"
	"github.com/birdblues/translator/pkg/formatter"
	"github.com/birdblues/translator/pkg/protector"
	"github.com/birdblues/translator/pkg/tokenizer"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"go.uber.org/zap"
)

var (
	// stats 命令的标志
	statsNoChunks bool // 跳过分块明细表
	statsMaxRows  int  // 分块明细表的最大行数
)

// NewStatsCommand 创建 stats 命令
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats [flags] file...",
		Short: "显示文档的保护与分块统计",
		Long: `分析 markdown 文档在翻译前会被如何处理，不调用任何翻译后端：
- front matter 摘要
- 各类保护块（代码、公式、表格、HTML）的数量
- 分块边界、标题路径和每个分块的令牌数

Examples:
  # 分析单个文档
  translator stats post.md

  # 按自定义预算分析
  translator stats --chunk-tokens 800 post.md

  # 只看汇总，跳过分块明细
  translator stats --no-chunks docs/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runStatsCommand,
	}

	statsCmd.Flags().BoolVar(&statsNoChunks, "no-chunks", false, "跳过分块明细表")
	statsCmd.Flags().IntVar(&statsMaxRows, "max-rows", 50, "分块明细表的最大行数，0 表示不限制")

	return statsCmd
}

func runStatsCommand(cmd *cobra.Command, args []string) error {
	// 初始化日志
	log := logger.NewLogger(debugMode)
	defer func() {
		_ = log.Sync()
	}()

	// 加载配置
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Warn("加载配置失败，使用默认配置", zap.Error(err))
		cfg = config.NewDefaultConfig()
	}
	updateConfigFromFlags(cmd, cfg)

	counter := newCounter(log)

	for i, path := range args {
		if i > 0 {
			fmt.Println()
		}
		if err := printFileStats(path, cfg, counter); err != nil {
			return err
		}
	}

	return nil
}

// document 一次分析的结果，stats 与预演模式共用
type document struct {
	Text      string
	Protected string
	Blocks    *protector.BlockMap
	Units     []chunker.Unit
	Stats     chunker.Stats
}

// analyzeFile 读取文件并执行保护和分块，但不翻译
func analyzeFile(path string, budget int, counter tokenizer.Counter) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := formatter.DecodeText(data)
	if err != nil {
		return nil, err
	}

	p := protector.New()
	protected, blocks := p.Protect(text)

	ck := chunker.New(budget, chunker.DefaultOverlap, counter)
	units := ck.Chunk(protected)

	return &document{
		Text:      text,
		Protected: protected,
		Blocks:    blocks,
		Units:     units,
		Stats:     ck.Stats(units),
	}, nil
}

func printFileStats(path string, cfg *config.Config, counter tokenizer.Counter) error {
	doc, err := analyzeFile(path, cfg.MaxTokensPerChunk, counter)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}

	title := color.New(color.FgCyan, color.Bold)
	title.Printf("📊 %s\n", path)
	fmt.Println(strings.Repeat("=", 50))

	section := color.New(color.FgGreen, color.Bold)

	// front matter 摘要
	if fm := frontMatterSummary(doc.Text); len(fm) > 0 {
		section.Println("\n📋 文档信息")
		for _, kv := range fm {
			fmt.Printf("  %s: %s\n", kv[0], kv[1])
		}
	}

	section.Println("\n🛡️ 保护块")
	printBlockCounts(doc.Blocks)

	section.Println("\n⚡ 翻译预估")
	fmt.Printf("  文档长度: %s 字符\n", formatNumber(int64(utf8.RuneCountInString(doc.Text))))
	fmt.Printf("  分块预算: %d tokens\n", cfg.MaxTokensPerChunk)
	fmt.Printf("  分块数: %d\n", doc.Stats.TotalChunks)
	fmt.Printf("  总令牌: %s\n", formatNumber(int64(doc.Stats.TotalTokens)))
	fmt.Printf("  平均令牌: %.1f\n", doc.Stats.AvgTokensPerChunk)
	fmt.Printf("  最大分块: %d tokens\n", doc.Stats.MaxTokens)
	if doc.Stats.ChunksOverLimit > 0 {
		fmt.Printf("  ⚠️ 超出预算的分块: %d\n", doc.Stats.ChunksOverLimit)
	}

	if !statsNoChunks {
		section.Println("\n📦 分块明细")
		printUnitTable(doc.Units)
	}

	return nil
}

// printBlockCounts 按类别显示保护块数量
func printBlockCounts(blocks *protector.BlockMap) {
	rows := []struct {
		label string
		count int
	}{
		{"YAML front matter", len(blocks.YAML)},
		{"数学公式", len(blocks.Math)},
		{"代码块", len(blocks.Code)},
		{"缩进代码", len(blocks.Indent)},
		{"表格", len(blocks.Table)},
		{"HTML 标签", len(blocks.HTML)},
	}

	for _, r := range rows {
		if r.count == 0 {
			continue
		}
		fmt.Printf("  %s: %d\n", r.label, r.count)
	}
	fmt.Printf("  合计: %d\n", blocks.Count())
}

// printUnitTable 用表格显示每个分块的标题路径、令牌数和首行预览
func printUnitTable(units []chunker.Unit) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "章节", "令牌", "预览"})

	shown := units
	if statsMaxRows > 0 && len(shown) > statsMaxRows {
		shown = shown[:statsMaxRows]
	}
	for i, u := range shown {
		t.AppendRow(table.Row{
			i + 1,
			truncate(headerPathString(u.HeaderPath), 24),
			u.TokenCount,
			truncate(firstLine(u.Content), 40),
		})
	}
	t.Render()

	if len(units) > len(shown) {
		fmt.Printf("  … 还有 %d 个分块，用 --max-rows 0 显示全部\n", len(units)-len(shown))
	}
}

// headerPathString 把标题路径渲染成 "A > B" 形式
func headerPathString(path []chunker.Header) string {
	if len(path) == 0 {
		return "(无标题)"
	}
	parts := make([]string, len(path))
	for i, h := range path {
		parts[i] = h.Text
	}
	return strings.Join(parts, " > ")
}

// firstLine 取分块的第一个非空行做预览
func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// truncate 按终端显示宽度截断，韩文汉字等宽字符按 2 计
func truncate(s string, width int) string {
	return runewidth.Truncate(strings.Join(strings.Fields(s), " "), width, "…")
}

// 剪藏头的常见键优先显示
var frontMatterKeys = []string{"title", "author", "source", "created", "tags"}

// frontMatterSummary 用 goldmark-meta 解析 front matter，返回有序键值对
func frontMatterSummary(text string) [][2]string {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	ctx := parser.NewContext()
	if err := md.Convert([]byte(text), io.Discard, parser.WithContext(ctx)); err != nil {
		return nil
	}

	data := meta.Get(ctx)
	if len(data) == 0 {
		return nil
	}

	var out [][2]string
	seen := map[string]bool{}
	for _, key := range frontMatterKeys {
		if v, ok := data[key]; ok {
			out = append(out, [2]string{key, metaValue(v)})
			seen[key] = true
		}
	}

	// 其余键按字典序跟在后面
	rest := make([]string, 0, len(data))
	for key := range data {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out = append(out, [2]string{key, metaValue(data[key])})
	}

	return out
}

// metaValue 把 YAML 值渲染成一行
func metaValue(v interface{}) string {
	switch vv := v.(type) {
	case []interface{}:
		parts := make([]string, len(vv))
		for i, item := range vv {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// formatNumber 格式化数字（添加千位分隔符）
func formatNumber(n int64) string {
	if n == 0 {
		return "0"
	}

	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(char)
	}
	return result.String()
}
