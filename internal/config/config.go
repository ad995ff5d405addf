package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// 受支持的后端类型
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderCompat = "compat"
)

// 受支持的规整引擎
const (
	FormatBuiltin     = "builtin"     // 结构保持型规整，围绕保护块工作
	FormatMarkdownfmt = "markdownfmt" // markdownfmt 标准化渲染，会重排全文
)

// Config 保存翻译器的所有配置
type Config struct {
	Provider          string  `mapstructure:"provider"`             // 后端类型: ollama / openai / compat
	Model             string  `mapstructure:"model"`                // 模型名
	Endpoint          string  `mapstructure:"endpoint"`             // ollama/compat 服务地址
	APIKey            string  `mapstructure:"api_key"`              // openai/compat 的 API Key
	Temperature       float64 `mapstructure:"temperature"`          // 生成温度
	MaxTokensPerChunk int     `mapstructure:"max_tokens_per_chunk"` // 每个分块的令牌预算
	ChunkOverlap      int     `mapstructure:"chunk_overlap"`        // 分块重叠令牌数
	MaxOutputTokens   int     `mapstructure:"max_output_tokens"`    // 生成长度上限，0 表示不限制
	Concurrency       int     `mapstructure:"concurrency"`          // 并行翻译请求数
	MaxRetries        int     `mapstructure:"max_retries"`          // 最大重试次数
	RetryDelay        int     `mapstructure:"retry_delay"`          // 重试间隔（秒）
	RequestTimeout    int     `mapstructure:"request_timeout"`      // 请求超时时间（秒）
	UseCache          bool    `mapstructure:"use_cache"`            // 是否缓存分块译文
	CacheDir          string  `mapstructure:"cache_dir"`            // 缓存目录
	LenientVerify     bool    `mapstructure:"lenient_verify"`       // 占位符受损时只告警
	StripThink        bool    `mapstructure:"strip_think"`          // 过滤推理模型的思考段
	OutputSuffix      string  `mapstructure:"output_suffix"`        // 译文文件名后缀
	FormatEngine      string  `mapstructure:"format_engine"`        // 规整引擎: builtin / markdownfmt
	GlossaryPath      string  `mapstructure:"glossary_path"`        // 术语表文件路径
	SystemPromptFile  string  `mapstructure:"system_prompt_file"`   // 自定义系统提示词文件
	Debug             bool    `mapstructure:"debug"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果配置路径已指定，则直接使用
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 查找家目录中的配置文件
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		// 添加可能的配置文件路径
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".translator")
		v.SetConfigType("yaml")
	}

	// 读取环境变量
	v.AutomaticEnv()
	v.SetEnvPrefix("TRANSLATOR")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，则使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// 设置缓存目录（如果未设置）
	if config.CacheDir == "" {
		config.CacheDir = getDefaultCacheDir()
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	if config.OutputSuffix == "" {
		config.OutputSuffix = "_ko"
	}

	return &config, nil
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderCompat:
		if c.Endpoint == "" {
			return fmt.Errorf("provider %q requires an endpoint", c.Provider)
		}
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("provider %q requires an api_key", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (expected %s, %s or %s)",
			c.Provider, ProviderOllama, ProviderOpenAI, ProviderCompat)
	}

	switch c.FormatEngine {
	case "", FormatBuiltin, FormatMarkdownfmt:
	default:
		return fmt.Errorf("unknown format_engine %q (expected %s or %s)",
			c.FormatEngine, FormatBuiltin, FormatMarkdownfmt)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if c.MaxTokensPerChunk <= 0 {
		return fmt.Errorf("max_tokens_per_chunk must be positive, got %d", c.MaxTokensPerChunk)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}

	return nil
}

// SaveConfig 将配置保存到文件
func SaveConfig(config *Config, configPath string) error {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(home, ".translator.yaml")
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	// 添加所有配置项
	if err := v.MergeConfigMap(structToMap(config)); err != nil {
		return err
	}

	// 创建父目录（如果不存在）
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return v.WriteConfig()
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOllama,
		Model:             "qwen3:32b",
		Endpoint:          "http://localhost:11434",
		Temperature:       0.1,
		MaxTokensPerChunk: 1000,
		ChunkOverlap:      0,
		MaxOutputTokens:   0, // 韩语译文往往比原文长，默认不设上限
		Concurrency:       1, // 本地模型显存有限，默认串行
		MaxRetries:        3,
		RetryDelay:        2,
		RequestTimeout:    300, // 默认5分钟超时
		UseCache:          true,
		CacheDir:          getDefaultCacheDir(),
		LenientVerify:     false,
		StripThink:        true,
		OutputSuffix:      "_ko",
		FormatEngine:      FormatBuiltin,
		Debug:             false,
	}
}

// getDefaultCacheDir 获取默认缓存目录
func getDefaultCacheDir() string {
	// 优先使用系统缓存目录
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		return filepath.Join(cacheDir, "translator")
	}

	// 如果无法获取系统缓存目录，使用用户主目录
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(homeDir, ".translator", "cache")
	}

	// 最后的兜底方案
	return "./translator-cache"
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model", "qwen3:32b")
	v.SetDefault("endpoint", "http://localhost:11434")
	v.SetDefault("temperature", 0.1)
	v.SetDefault("max_tokens_per_chunk", 1000)
	v.SetDefault("chunk_overlap", 0)
	v.SetDefault("max_output_tokens", 0)
	v.SetDefault("concurrency", 1)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay", 2)
	v.SetDefault("request_timeout", 300)
	v.SetDefault("use_cache", true)
	v.SetDefault("lenient_verify", false)
	v.SetDefault("strip_think", true)
	v.SetDefault("output_suffix", "_ko")
	v.SetDefault("format_engine", FormatBuiltin)
	v.SetDefault("debug", false)
}

// structToMap 将结构体转换为map
func structToMap(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"provider":             config.Provider,
		"model":                config.Model,
		"endpoint":             config.Endpoint,
		"api_key":              config.APIKey,
		"temperature":          config.Temperature,
		"max_tokens_per_chunk": config.MaxTokensPerChunk,
		"chunk_overlap":        config.ChunkOverlap,
		"max_output_tokens":    config.MaxOutputTokens,
		"concurrency":          config.Concurrency,
		"max_retries":          config.MaxRetries,
		"retry_delay":          config.RetryDelay,
		"request_timeout":      config.RequestTimeout,
		"use_cache":            config.UseCache,
		"cache_dir":            config.CacheDir,
		"lenient_verify":       config.LenientVerify,
		"strip_think":          config.StripThink,
		"output_suffix":        config.OutputSuffix,
		"format_engine":        config.FormatEngine,
		"glossary_path":        config.GlossaryPath,
		"system_prompt_file":   config.SystemPromptFile,
		"debug":                config.Debug,
	}
}
