package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/birdblues/translator/internal/config"
	"github.com/birdblues/translator/internal/logger"
	"github.com/birdblues/translator/pkg/formatter"
	"github.com/birdblues/translator/pkg/providers"
	"github.com/birdblues/translator/pkg/providers/compat"
	"github.com/birdblues/translator/pkg/providers/ollama"
	"github.com/birdblues/translator/pkg/providers/openai"
	"github.com/birdblues/translator/pkg/tokenizer"
	"github.com/birdblues/translator/pkg/translator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// 命令行标志变量
	cfgFile           string
	provider          string // 翻译后端类型
	modelName         string
	endpoint          string
	apiKey            string
	chunkTokens       int
	concurrency       int
	useCache          bool
	cacheDir          string
	forceCacheRefresh bool
	glossaryPath      string // 术语表文件路径
	promptFile        string // 自定义系统提示词文件
	lenientVerify     bool   // 占位符受损时只告警
	debugMode         bool
	quietMode         bool // 只输出错误日志，不显示进度条

	// 根命令专属标志
	outputPath   string // 译文输出路径，只适用于单个输入文件
	outputSuffix string // 译文文件名后缀
	formatEngine string // 规整引擎
	dryRun       bool   // 预演模式，只分析文档，不调用后端
	formatOnly   bool   // 仅规整文件，不进行翻译
	showConfig   bool   // 显示当前配置
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "translator [flags] file...",
		Short: "保持 markdown 结构的韩语翻译工具",
		Long: `保持 markdown 结构的韩语翻译工具。
翻译前把代码块、数学公式、YAML front matter、表格和 HTML 标签
替换成占位符，翻译后校验占位符并按原样还原。

支持的翻译后端:
  - ollama: Ollama 本地大语言模型 (默认)
  - openai: OpenAI 官方接口
  - compat: 任何 OpenAI 兼容接口 (vLLM、LM Studio 等)`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args: func(cmd *cobra.Command, args []string) error {
			// show-config 不需要文件参数
			if showConfig {
				return nil
			}
			if len(args) < 1 {
				return fmt.Errorf("requires at least 1 file argument")
			}
			if cmd.Flags().Changed("output") && len(args) != 1 {
				return fmt.Errorf("--output only works with a single input file, received %d", len(args))
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			// 初始化临时日志（用于加载配置）
			tempLog := logger.NewLogger(debugMode)
			defer func() {
				_ = tempLog.Sync()
			}()

			// 加载配置
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				tempLog.Error("加载配置失败", zap.Error(err))
				os.Exit(1)
			}

			// 使用命令行参数覆盖配置
			updateConfigFromFlags(cmd, cfg)

			if showConfig {
				printConfig(cfg)
				return
			}

			if err := cfg.Validate(); err != nil {
				tempLog.Error("配置不可用", zap.Error(err))
				os.Exit(1)
			}

			// 根据配置创建正式日志
			log := logger.NewLogger(cfg.Debug || debugMode)
			if quietMode {
				log = logger.NewQuietLogger()
			}
			defer func() {
				_ = log.Sync()
			}()

			// 处理预演模式
			if dryRun {
				handleDryRun(args, cfg, log)
				return
			}

			// 仅规整模式不需要翻译后端
			if formatOnly {
				for _, path := range args {
					if err := formatFile(path, cfg.FormatEngine); err != nil {
						log.Error("规整文件失败", zap.String("文件", path), zap.Error(err))
						os.Exit(1)
					}
					log.Info("规整完成", zap.String("文件", path))
				}
				return
			}

			// 创建缓存目录（如果不存在）
			if cfg.UseCache {
				if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
					log.Error("创建缓存目录失败", zap.Error(err))
					os.Exit(1)
				}
			}

			t, err := buildTranslator(cfg, log)
			if err != nil {
				log.Error("创建翻译器失败", zap.Error(err))
				os.Exit(1)
			}

			ctx := cmd.Context()
			for _, inputPath := range args {
				// 翻译之前先规整文件
				if err := formatFile(inputPath, cfg.FormatEngine); err != nil {
					log.Error("文件规整失败，无法继续翻译",
						zap.String("文件", inputPath),
						zap.Error(err))
					os.Exit(1)
				}

				out := outputPath
				if out == "" {
					out = derivedPath(inputPath, cfg.OutputSuffix)
				}

				written, err := t.TranslateFile(ctx, inputPath, out)
				if err != nil {
					log.Error("翻译文件失败", zap.String("文件", inputPath), zap.Error(err))
					os.Exit(1)
				}

				if !quietMode {
					fmt.Printf("✅ %s -> %s\n", inputPath, written)
				}
			}
		},
	}

	// 添加全局标志
	addGlobalFlags(rootCmd)

	// 根命令专属标志
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "译文输出路径（只适用于单个输入文件）")
	rootCmd.Flags().StringVar(&outputSuffix, "suffix", "", "译文文件名后缀（默认 _ko）")
	rootCmd.Flags().StringVar(&formatEngine, "format-engine", "", "规整引擎 (builtin, markdownfmt)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "预演模式，只分析文档，不调用翻译后端")
	rootCmd.Flags().BoolVar(&formatOnly, "format-only", false, "仅规整文件，不进行翻译")
	rootCmd.Flags().BoolVar(&showConfig, "show-config", false, "显示当前配置信息")

	// 添加子命令
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewFormatCommand())
	rootCmd.AddCommand(NewFetchCommand())
	rootCmd.AddCommand(NewVersionCommand(version, commit, buildDate))

	return rootCmd
}

// NewVersionCommand 创建 version 命令
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("translator %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}

// addGlobalFlags 添加全局标志
func addGlobalFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "翻译后端 (ollama, openai, compat)")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "模型名")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "后端服务地址")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API Key")
	rootCmd.PersistentFlags().IntVar(&chunkTokens, "chunk-tokens", 0, "每个分块的令牌预算")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "并行翻译请求数")
	rootCmd.PersistentFlags().BoolVar(&useCache, "cache", true, "是否使用缓存")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "缓存目录路径")
	rootCmd.PersistentFlags().BoolVar(&forceCacheRefresh, "refresh-cache", false, "忽略已有缓存，强制重新翻译")
	rootCmd.PersistentFlags().StringVar(&glossaryPath, "glossary", "", "术语表文件路径 (TOML)")
	rootCmd.PersistentFlags().StringVar(&promptFile, "system-prompt", "", "自定义系统提示词文件")
	rootCmd.PersistentFlags().BoolVar(&lenientVerify, "lenient", false, "占位符受损时只告警，不中断翻译")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试模式")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "只输出错误日志，不显示进度条")
}

// updateConfigFromFlags 用显式设置过的命令行标志覆盖配置
func updateConfigFromFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("provider") {
		cfg.Provider = provider
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelName
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = apiKey
	}
	if cmd.Flags().Changed("chunk-tokens") {
		cfg.MaxTokensPerChunk = chunkTokens
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if cmd.Flags().Changed("cache") {
		cfg.UseCache = useCache
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir = cacheDir
	}
	if cmd.Flags().Changed("suffix") {
		cfg.OutputSuffix = outputSuffix
	}
	if cmd.Flags().Changed("format-engine") {
		cfg.FormatEngine = formatEngine
	}
	if cmd.Flags().Changed("glossary") {
		cfg.GlossaryPath = glossaryPath
	}
	if cmd.Flags().Changed("system-prompt") {
		cfg.SystemPromptFile = promptFile
	}
	if cmd.Flags().Changed("lenient") {
		cfg.LenientVerify = lenientVerify
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debugMode
	}
}

// buildTranslator 根据配置组装翻译器
func buildTranslator(cfg *config.Config, log *zap.Logger) (*translator.Translator, error) {
	prov, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	tcfg := translator.DefaultConfig()
	tcfg.Model = cfg.Model
	tcfg.MaxTokens = cfg.MaxTokensPerChunk
	tcfg.ChunkOverlap = cfg.ChunkOverlap
	tcfg.Temperature = float32(cfg.Temperature)
	tcfg.Concurrency = cfg.Concurrency
	tcfg.MaxRetries = cfg.MaxRetries
	tcfg.RetryDelay = time.Duration(cfg.RetryDelay) * time.Second
	tcfg.UseCache = cfg.UseCache
	tcfg.CacheDir = cfg.CacheDir
	tcfg.LenientVerify = cfg.LenientVerify

	if cfg.SystemPromptFile != "" {
		data, err := os.ReadFile(cfg.SystemPromptFile)
		if err != nil {
			return nil, fmt.Errorf("read system prompt file: %w", err)
		}
		tcfg.SystemPrompt = string(data)
	}

	if cfg.GlossaryPath != "" {
		g, err := config.LoadGlossary(cfg.GlossaryPath)
		if err != nil {
			return nil, err
		}
		tcfg.Glossary = g.Translations
		log.Info("术语表已加载",
			zap.String("文件", cfg.GlossaryPath),
			zap.Int("词条数", len(g.Translations)))
	}

	options := []translator.Option{}
	switch {
	case quietMode:
		options = append(options, translator.WithLogger(logger.NewQuietLogger()))
	case cfg.Debug || debugMode:
		// 调试时保留完整日志，不显示进度条
		options = append(options, translator.WithLogger(log))
	default:
		// 进度条接管终端，翻译过程只输出错误日志
		options = append(options,
			translator.WithLogger(logger.NewQuietLogger()),
			translator.WithTracker(translator.NewBarTracker()))
	}
	if forceCacheRefresh {
		options = append(options, translator.WithForceCacheRefresh())
	}

	return translator.New(tcfg, prov, options...)
}

// buildProvider 根据配置创建翻译后端
func buildProvider(cfg *config.Config) (providers.Provider, error) {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	switch cfg.Provider {
	case config.ProviderOllama:
		pcfg := ollama.DefaultConfig()
		pcfg.APIEndpoint = cfg.Endpoint
		pcfg.Model = cfg.Model
		pcfg.Temperature = float32(cfg.Temperature)
		pcfg.MaxTokens = cfg.MaxOutputTokens
		if timeout > 0 {
			pcfg.Timeout = timeout
		}
		return ollama.New(pcfg), nil

	case config.ProviderOpenAI:
		pcfg := openai.DefaultConfig()
		pcfg.APIKey = cfg.APIKey
		pcfg.APIEndpoint = cfg.Endpoint
		pcfg.Model = cfg.Model
		pcfg.Temperature = float32(cfg.Temperature)
		pcfg.MaxTokens = cfg.MaxOutputTokens
		if timeout > 0 {
			pcfg.Timeout = timeout
		}
		return openai.New(pcfg), nil

	case config.ProviderCompat:
		pcfg := compat.DefaultConfig()
		pcfg.APIKey = cfg.APIKey
		pcfg.APIEndpoint = cfg.Endpoint
		pcfg.Model = cfg.Model
		pcfg.Temperature = float32(cfg.Temperature)
		pcfg.MaxTokens = cfg.MaxOutputTokens
		pcfg.StripThink = cfg.StripThink
		if timeout > 0 {
			pcfg.Timeout = timeout
		}
		return compat.New(pcfg), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// formatFile 就地规整 markdown 文件，翻译前运行
func formatFile(path string, engine string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	formatted, err := renderFormatted(data, engine)
	if err != nil {
		return err
	}

	if formatted == string(data) {
		return nil
	}
	return os.WriteFile(path, []byte(formatted), 0o644)
}

// renderFormatted 解码并按指定引擎规整文本
func renderFormatted(data []byte, engine string) (string, error) {
	text, err := formatter.DecodeText(data)
	if err != nil {
		return "", err
	}

	f := formatter.New()
	if engine == config.FormatMarkdownfmt {
		return f.FormatCanonical(text)
	}
	return f.Format(text), nil
}

// derivedPath 根据后缀生成译文文件名
func derivedPath(inputPath, suffix string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + suffix + ext
}

// newCounter 创建令牌计数器，词表不可用时退回启发式计数
func newCounter(log *zap.Logger) tokenizer.Counter {
	counter, err := tokenizer.NewTiktoken(tokenizer.DefaultEncoding)
	if err != nil {
		log.Warn("tiktoken 词表加载失败，退回启发式计数", zap.Error(err))
		return tokenizer.NewHeuristic()
	}
	return counter
}

// handleDryRun 预演模式：分析文档并显示将要执行的操作，不调用翻译后端
func handleDryRun(args []string, cfg *config.Config, log *zap.Logger) {
	fmt.Println("🎭 预演模式 - 只分析文档，不调用翻译后端")
	fmt.Println("============================================================")

	counter := newCounter(log)

	for _, inputPath := range args {
		fmt.Printf("\n📄 输入文件: %s\n", inputPath)

		info, err := os.Stat(inputPath)
		if err != nil {
			fmt.Printf("❌ 错误: 无法读取文件: %v\n", err)
			continue
		}
		fmt.Printf("📏 文件大小: %d 字节\n", info.Size())

		out := outputPath
		if out == "" {
			out = derivedPath(inputPath, cfg.OutputSuffix)
		}
		fmt.Printf("📝 输出文件: %s\n", out)

		doc, err := analyzeFile(inputPath, cfg.MaxTokensPerChunk, counter)
		if err != nil {
			fmt.Printf("❌ 错误: 分析文件失败: %v\n", err)
			continue
		}

		fmt.Printf("\n⚡ 分块统计:\n")
		fmt.Printf("  保护块: %d\n", doc.Blocks.Count())
		fmt.Printf("  分块数: %d\n", doc.Stats.TotalChunks)
		fmt.Printf("  总令牌: %s\n", formatNumber(int64(doc.Stats.TotalTokens)))
		fmt.Printf("  预计请求数: %d\n", doc.Stats.TotalChunks)
		if doc.Stats.ChunksOverLimit > 0 {
			fmt.Printf("  ⚠️ 超出预算的分块: %d\n", doc.Stats.ChunksOverLimit)
		}
	}

	fmt.Printf("\n🔧 翻译配置:\n")
	fmt.Printf("  后端: %s\n", cfg.Provider)
	fmt.Printf("  模型: %s\n", cfg.Model)
	fmt.Printf("  温度: %.2f\n", cfg.Temperature)
	fmt.Printf("  分块预算: %d tokens\n", cfg.MaxTokensPerChunk)
	fmt.Printf("  并行度: %d\n", cfg.Concurrency)
	fmt.Printf("  使用缓存: %t\n", cfg.UseCache)
	if cfg.UseCache {
		fmt.Printf("  缓存目录: %s\n", cfg.CacheDir)
	}

	fmt.Printf("\n✅ 预演完成 - 使用相同参数但不加 --dry-run 来执行实际翻译\n")
}

// printConfig 显示当前生效的配置
func printConfig(cfg *config.Config) {
	fmt.Println("🔧 当前配置")
	fmt.Println("============================================================")
	fmt.Printf("  后端: %s\n", cfg.Provider)
	fmt.Printf("  模型: %s\n", cfg.Model)
	if cfg.Endpoint != "" {
		fmt.Printf("  服务地址: %s\n", cfg.Endpoint)
	}
	if cfg.APIKey != "" {
		fmt.Printf("  API Key: %s\n", maskKey(cfg.APIKey))
	}
	fmt.Printf("  温度: %.2f\n", cfg.Temperature)
	fmt.Printf("  分块预算: %d tokens\n", cfg.MaxTokensPerChunk)
	fmt.Printf("  并行度: %d\n", cfg.Concurrency)
	fmt.Printf("  最大重试: %d\n", cfg.MaxRetries)
	fmt.Printf("  使用缓存: %t\n", cfg.UseCache)
	if cfg.UseCache {
		fmt.Printf("  缓存目录: %s\n", cfg.CacheDir)
	}
	fmt.Printf("  规整引擎: %s\n", cfg.FormatEngine)
	fmt.Printf("  输出后缀: %s\n", cfg.OutputSuffix)
	if cfg.GlossaryPath != "" {
		fmt.Printf("  术语表: %s\n", cfg.GlossaryPath)
	}
	if cfg.SystemPromptFile != "" {
		fmt.Printf("  系统提示词: %s\n", cfg.SystemPromptFile)
	}
}

// maskKey 只保留 API Key 的首尾各 4 位
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
