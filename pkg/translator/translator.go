// Package translator 把 markdown 文档翻译成韩语，保持结构不变。
// 流程: 保护 → 分块 → 逐块翻译 → 拼接 → 校验 → 还原。
package translator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/birdblues/translator/pkg/chunker"
	"github.com/birdblues/translator/pkg/formatter"
	"github.com/birdblues/translator/pkg/protector"
	"github.com/birdblues/translator/pkg/providers"
	"github.com/birdblues/translator/pkg/tokenizer"
)

// Config 翻译器配置
type Config struct {
	Model         string            // 模型名，空值时使用后端默认模型
	SystemPrompt  string            // 系统提示词，空值时使用 DefaultSystemPrompt
	Glossary      map[string]string // 术语表，追加到系统提示词
	MaxTokens     int               // 每个分块的令牌预算
	ChunkOverlap  int               // 分块重叠令牌数
	Temperature   float32           // 生成温度
	Concurrency   int               // 并发翻译的分块数
	MaxRetries    int               // 单个分块的最大重试次数
	RetryDelay    time.Duration     // 重试间隔
	UseCache      bool              // 是否缓存分块译文
	CacheDir      string            // 文件缓存目录
	LenientVerify bool              // 占位符受损时只告警，不中断
}

// DefaultConfig 返回默认配置。
// 本地模型显存有限，默认逐块串行翻译。
func DefaultConfig() Config {
	return Config{
		MaxTokens:   chunker.DefaultMaxTokens,
		Temperature: 0.1,
		Concurrency: 1,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
		UseCache:    true,
		CacheDir:    defaultCacheDir(),
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".translator-cache"
	}
	return filepath.Join(home, ".translator", "cache")
}

// Translator 结构保持型 markdown 翻译器
type Translator struct {
	config            Config
	systemPrompt      string
	provider          providers.Provider
	protector         *protector.Protector
	chunker           *chunker.Chunker
	cache             Cache
	forceCacheRefresh bool
	tracker           Tracker
	logger            *zap.Logger
}

// Metrics 一次翻译的统计信息
type Metrics struct {
	ID           string        `json:"id"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	InputLength  int           `json:"input_length"`
	OutputLength int           `json:"output_length"`
	TokensIn     int           `json:"tokens_in"`
	TokensOut    int           `json:"tokens_out"`
	ChunkCount   int           `json:"chunk_count"`
	CachedChunks int           `json:"cached_chunks"`
}

// Result 翻译结果
type Result struct {
	Text    string        // 还原后的译文
	Report  *VerifyReport // 占位符校验结果
	Metrics Metrics
}

// New 创建翻译器
func New(cfg Config, provider providers.Provider, options ...Option) (*Translator, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = chunker.DefaultMaxTokens
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	opts := &translatorOptions{
		tracker: NoopTracker{},
	}
	for _, option := range options {
		option(opts)
	}

	log := opts.logger
	if log == nil {
		log = zap.NewNop()
	}

	counter := opts.counter
	if counter == nil {
		tk, err := tokenizer.NewTiktoken(tokenizer.DefaultEncoding)
		if err != nil {
			log.Warn("tiktoken 词表加载失败，退回启发式计数", zap.Error(err))
			counter = tokenizer.NewHeuristic()
		} else {
			counter = tk
		}
	}

	cache := opts.cache
	if cache == nil && cfg.UseCache {
		if cfg.CacheDir != "" {
			cache = NewFileCache(cfg.CacheDir)
		} else {
			cache = NewMemoryCache()
		}
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	systemPrompt = SystemPromptWithGlossary(systemPrompt, cfg.Glossary)

	return &Translator{
		config:            cfg,
		systemPrompt:      systemPrompt,
		provider:          provider,
		protector:         protector.New(),
		chunker:           chunker.New(cfg.MaxTokens, cfg.ChunkOverlap, counter),
		cache:             cache,
		forceCacheRefresh: opts.forceCacheRefresh,
		tracker:           opts.tracker,
		logger:            log,
	}, nil
}

// Translate 翻译 markdown 文本
func (t *Translator) Translate(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	startTime := time.Now()
	translationID := uuid.New().String()
	log := t.logger.With(zap.String("translation_id", translationID))

	// 原文里已有占位符样式的文本时，还原阶段无法区分真假占位符
	if collisions := t.protector.DetectCollisions(text); len(collisions) > 0 {
		log.Error("原文中已存在占位符文本", zap.Strings("collisions", collisions))
		return nil, &TranslationError{
			Code:    ErrCodeProtect,
			Message: fmt.Sprintf("document already contains placeholder text: %s", strings.Join(collisions, ", ")),
			Cause:   ErrPlaceholderCollision,
			Step:    "protect",
		}
	}

	protected, blocks := t.protector.Protect(text)
	log.Debug("结构保护完成",
		zap.Int("原文长度", len(text)),
		zap.Int("保护后长度", len(protected)),
		zap.Int("保护块数", blocks.Count()),
	)

	units := t.chunker.Chunk(protected)
	log.Info("分块完成",
		zap.Int("分块数", len(units)),
		zap.Int("令牌预算", t.config.MaxTokens),
	)

	t.tracker.Start(len(units))

	results, err := t.translateUnits(ctx, log, units)
	if err != nil {
		t.tracker.Fail(err)
		return nil, err
	}

	texts := make([]string, len(results))
	var tokensIn, tokensOut, cachedChunks int
	for i, res := range results {
		texts[i] = res.text
		tokensIn += res.tokensIn
		tokensOut += res.tokensOut
		if res.cached {
			cachedChunks++
		}
	}

	// 与分块语义对应，译文用单个换行拼接
	joined := strings.Join(texts, "\n")

	report := Verify(joined, protected, blocks)
	if !report.OK() {
		log.Error("占位符校验失败", zap.String("report", report.Summary()))
		if !t.config.LenientVerify {
			verr := &TranslationError{
				Code:    ErrCodeVerify,
				Message: report.Summary(),
				Cause:   ErrPlaceholderLost,
				Step:    "verify",
			}
			t.tracker.Fail(verr)
			return nil, verr
		}
		log.Warn("宽松模式，继续还原受损的译文")
	}

	restored := t.protector.Restore(joined, blocks)
	t.tracker.Complete()

	endTime := time.Now()
	metrics := Metrics{
		ID:           translationID,
		StartTime:    startTime,
		EndTime:      endTime,
		Duration:     endTime.Sub(startTime),
		InputLength:  utf8.RuneCountInString(text),
		OutputLength: utf8.RuneCountInString(restored),
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		ChunkCount:   len(units),
		CachedChunks: cachedChunks,
	}

	log.Info("翻译完成",
		zap.Duration("耗时", metrics.Duration),
		zap.Int("分块数", metrics.ChunkCount),
		zap.Int("缓存命中", metrics.CachedChunks),
		zap.Int("输入令牌", tokensIn),
		zap.Int("输出令牌", tokensOut),
	)

	return &Result{Text: restored, Report: report, Metrics: metrics}, nil
}

type chunkResult struct {
	text      string
	tokensIn  int
	tokensOut int
	cached    bool
}

// translateUnits 并发翻译所有分块，结果按原始顺序返回。
// 单块失败不中断其余分块，已完成的译文会进缓存，重跑时直接命中。
func (t *Translator) translateUnits(ctx context.Context, log *zap.Logger, units []chunker.Unit) ([]chunkResult, error) {
	type indexed struct {
		index  int
		result chunkResult
		err    error
	}

	resultChan := make(chan indexed, len(units))
	var wg sync.WaitGroup

	// 限制并发数
	semaphore := make(chan struct{}, t.config.Concurrency)

	for i, unit := range units {
		wg.Add(1)
		go func(idx int, u chunker.Unit) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			res, err := t.translateChunk(ctx, log, idx, len(units), u)
			resultChan <- indexed{index: idx, result: res, err: err}
		}(i, unit)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]chunkResult, len(units))
	var firstError error

	for res := range resultChan {
		if res.err != nil && firstError == nil {
			firstError = res.err
		}
		results[res.index] = res.result
		if res.err == nil {
			t.tracker.Advance(fmt.Sprintf("分块 %d/%d", res.index+1, len(units)))
		}
	}

	if firstError != nil {
		return nil, firstError
	}
	return results, nil
}

// translateChunk 翻译单个分块，可重试错误按配置的间隔重试
func (t *Translator) translateChunk(ctx context.Context, log *zap.Logger, idx, total int, unit chunker.Unit) (chunkResult, error) {
	requestID := uuid.New().String()
	clog := log.With(
		zap.String("request_id", requestID),
		zap.Int("分块", idx+1),
		zap.Int("总数", total),
		zap.Int("令牌数", unit.TokenCount),
	)

	key := t.cacheKey(unit.Content)
	if t.cache != nil && !t.forceCacheRefresh {
		if cached, ok := t.cache.Get(key); ok {
			clog.Debug("命中缓存")
			return chunkResult{text: cached, cached: true}, nil
		}
	}

	req := &providers.Request{
		Text:         unit.Content,
		SystemPrompt: t.systemPrompt,
		Model:        t.config.Model,
		Temperature:  t.config.Temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
		if attempt > 0 {
			clog.Warn("重试分块翻译",
				zap.Int("attempt", attempt),
				zap.Duration("delay", t.config.RetryDelay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return chunkResult{}, WrapError(ctx.Err(), ErrCodeTimeout, "context canceled during retry wait")
			case <-time.After(t.config.RetryDelay):
			}
		}

		resp, err := t.provider.Generate(ctx, req)
		if err == nil {
			translated := ExtractTranslationFromResponse(resp.Text)
			if translated == "" {
				lastErr = NewRetryableError(ErrCodeProvider, "provider returned empty translation", nil)
				continue
			}

			if t.cache != nil {
				if cerr := t.cache.Set(key, translated); cerr != nil {
					clog.Warn("写入缓存失败", zap.Error(cerr))
				}
			}
			return chunkResult{text: translated, tokensIn: resp.TokensIn, tokensOut: resp.TokensOut}, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	te := WrapError(lastErr, ErrCodeProvider, fmt.Sprintf("failed to translate chunk %d/%d", idx+1, total))
	te.Step = "translate"
	return chunkResult{}, te
}

// cacheKey 生成缓存键
func (t *Translator) cacheKey(text string) string {
	key := fmt.Sprintf("%s:%s:%s", t.config.Model, t.systemPrompt, text)
	hash := md5.Sum([]byte(key))
	return hex.EncodeToString(hash[:])
}

// TranslateFile 读取 markdown 文件，翻译后写入目标路径。
// outputPath 为空时生成 <名称>_ko<扩展名>。
func (t *Translator) TranslateFile(ctx context.Context, inputPath, outputPath string) (string, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return "", WrapError(err, ErrCodeIO, fmt.Sprintf("read %s", inputPath))
	}

	content, err := formatter.DecodeText(raw)
	if err != nil {
		return "", WrapError(err, ErrCodeIO, fmt.Sprintf("decode %s", inputPath))
	}

	result, err := t.Translate(ctx, content)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = derivedOutputPath(inputPath)
	}
	if err := os.WriteFile(outputPath, []byte(result.Text), 0644); err != nil {
		return "", WrapError(err, ErrCodeIO, fmt.Sprintf("write %s", outputPath))
	}

	t.logger.Info("文件翻译完成",
		zap.String("输入", inputPath),
		zap.String("输出", outputPath),
		zap.Duration("耗时", result.Metrics.Duration),
	)

	return outputPath, nil
}

// derivedOutputPath 生成默认输出路径 <名称>_ko<扩展名>
func derivedOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "_ko" + ext
}

// DocumentStats 翻译前的工作量统计
type DocumentStats struct {
	OriginalLength    int     `json:"original_length"`
	ProtectedLength   int     `json:"protected_length"`
	ProtectedBlocks   int     `json:"protected_blocks"`
	TotalChunks       int     `json:"total_chunks"`
	TotalTokens       int     `json:"total_tokens"`
	AvgTokensPerChunk float64 `json:"avg_tokens_per_chunk"`
	MaxChunkTokens    int     `json:"max_chunk_tokens"`
	ChunksOverLimit   int     `json:"chunks_over_limit"`
	EstimatedAPICalls int     `json:"estimated_api_calls"`
}

// Stats 统计翻译工作量，不调用任何后端
func (t *Translator) Stats(text string) (*DocumentStats, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	protected, blocks := t.protector.Protect(text)
	units := t.chunker.Chunk(protected)
	cs := t.chunker.Stats(units)

	return &DocumentStats{
		OriginalLength:    utf8.RuneCountInString(text),
		ProtectedLength:   utf8.RuneCountInString(protected),
		ProtectedBlocks:   blocks.Count(),
		TotalChunks:       cs.TotalChunks,
		TotalTokens:       cs.TotalTokens,
		AvgTokensPerChunk: cs.AvgTokensPerChunk,
		MaxChunkTokens:    cs.MaxTokens,
		ChunksOverLimit:   cs.ChunksOverLimit,
		EstimatedAPICalls: cs.TotalChunks,
	}, nil
}

// HealthCheck 探测后端可用性
func (t *Translator) HealthCheck(ctx context.Context) error {
	return t.provider.HealthCheck(ctx)
}
