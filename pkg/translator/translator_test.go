package translator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdblues/translator/pkg/providers"
	"github.com/birdblues/translator/pkg/tokenizer"
	"github.com/birdblues/translator/pkg/translator"
)

// fakeProvider 模拟后端：按 transform 改写文本，未设置时原样返回。
// replies 提供逐次的固定回复，failures 控制前 N 次调用返回 failWith。
type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	lastReq   *providers.Request
	transform func(string) string
	replies   []string
	failures  int
	failWith  error
}

func (f *fakeProvider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastReq = req

	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}

	text := req.Text
	if len(f.replies) > 0 {
		text, f.replies = f.replies[0], f.replies[1:]
	} else if f.transform != nil {
		text = f.transform(text)
	}

	return &providers.Response{Text: text, Model: "fake-model", TokensIn: 10, TokensOut: 12}, nil
}

func (f *fakeProvider) GetName() string { return "fake" }

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testConfig 测试用配置：不碰用户主目录的缓存，重试间隔压到最短
func testConfig() translator.Config {
	cfg := translator.DefaultConfig()
	cfg.UseCache = false
	cfg.CacheDir = ""
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func newTestTranslator(t *testing.T, cfg translator.Config, provider providers.Provider, opts ...translator.Option) *translator.Translator {
	t.Helper()
	opts = append(opts, translator.WithCounter(tokenizer.NewHeuristic()))
	tr, err := translator.New(cfg, provider, opts...)
	require.NoError(t, err)
	return tr
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := translator.New(testConfig(), nil)
	assert.ErrorIs(t, err, translator.ErrNoProvider)
}

// TestTranslate 测试完整流水线：保护 → 分块 → 翻译 → 校验 → 还原
func TestTranslate(t *testing.T) {
	doc := "# Greeting\n\nHello world.\n\n```python\nprint(\"hi\")\n```\n\nHello again.\n"

	provider := &fakeProvider{
		transform: func(s string) string { return strings.ReplaceAll(s, "Hello", "안녕하세요") },
	}
	tr := newTestTranslator(t, testConfig(), provider)

	result, err := tr.Translate(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, result)

	// 代码块原样回来，正文被翻译，占位符全部还原
	assert.Contains(t, result.Text, "```python\nprint(\"hi\")\n```")
	assert.Contains(t, result.Text, "안녕하세요 world.")
	assert.Contains(t, result.Text, "# Greeting")
	assert.NotContains(t, result.Text, "__CODE_BLOCK_")

	require.NotNil(t, result.Report)
	assert.True(t, result.Report.OK())

	assert.Equal(t, 1, result.Metrics.ChunkCount)
	assert.Equal(t, 0, result.Metrics.CachedChunks)
	assert.Equal(t, 10, result.Metrics.TokensIn)
	assert.Equal(t, 12, result.Metrics.TokensOut)
	assert.NotEmpty(t, result.Metrics.ID)

	// 系统提示词必须随请求下发
	assert.Contains(t, provider.lastReq.SystemPrompt, "Korean translator")
}

func TestTranslateEmptyDocument(t *testing.T) {
	tr := newTestTranslator(t, testConfig(), &fakeProvider{})

	for _, text := range []string{"", "   \n\t  "} {
		_, err := tr.Translate(context.Background(), text)
		assert.ErrorIs(t, err, translator.ErrEmptyDocument)
	}
}

func TestTranslatePlaceholderCollision(t *testing.T) {
	tr := newTestTranslator(t, testConfig(), &fakeProvider{})

	_, err := tr.Translate(context.Background(), "text mentioning __CODE_BLOCK_0__ literally")
	require.Error(t, err)
	assert.ErrorIs(t, err, translator.ErrPlaceholderCollision)

	var te *translator.TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, translator.ErrCodeProtect, te.Code)
	assert.Equal(t, "protect", te.Step)
}

// TestTranslatePreservesChunkOrder 并发翻译后译文仍按文档顺序拼接
func TestTranslatePreservesChunkOrder(t *testing.T) {
	paragraphs := []string{
		strings.Repeat("alpha ", 8) + "one.",
		strings.Repeat("bravo ", 8) + "two.",
		strings.Repeat("charlie ", 8) + "three.",
		strings.Repeat("delta ", 8) + "four.",
	}
	doc := strings.Join(paragraphs, "\n\n")

	cfg := testConfig()
	cfg.MaxTokens = 14 // 每段约 12 个 token，两段合并就超预算
	cfg.Concurrency = 4

	provider := &fakeProvider{
		transform: func(s string) string { return "[KO] " + s },
	}
	tr := newTestTranslator(t, cfg, provider)

	result, err := tr.Translate(context.Background(), doc)
	require.NoError(t, err)

	expected := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		expected[i] = "[KO] " + p
	}
	assert.Equal(t, strings.Join(expected, "\n"), result.Text)
	assert.Equal(t, len(paragraphs), result.Metrics.ChunkCount)
	assert.Equal(t, len(paragraphs), provider.callCount())
}

func TestTranslateCacheHit(t *testing.T) {
	doc := "Hello cached world."
	provider := &fakeProvider{
		transform: func(s string) string { return "캐시된 번역" },
	}
	tr := newTestTranslator(t, testConfig(), provider, translator.WithCache(translator.NewMemoryCache()))

	first, err := tr.Translate(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Metrics.CachedChunks)
	assert.Equal(t, 1, provider.callCount())

	// 第二次整篇命中缓存，不再调用后端
	second, err := tr.Translate(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Metrics.CachedChunks)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, first.Text, second.Text)
}

func TestTranslateForceCacheRefresh(t *testing.T) {
	doc := "Hello refresh."
	provider := &fakeProvider{
		transform: func(s string) string { return "새로 번역" },
	}
	cache := translator.NewMemoryCache()
	require.NoError(t, cache.Set("whatever", "stale"))

	tr := newTestTranslator(t, testConfig(), provider,
		translator.WithCache(cache),
		translator.WithForceCacheRefresh(),
	)

	result, err := tr.Translate(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Metrics.CachedChunks)
	assert.Equal(t, 1, provider.callCount())
}

// TestTranslateRetriesRetryableError 可重试错误按配置重试后成功
func TestTranslateRetriesRetryableError(t *testing.T) {
	provider := &fakeProvider{
		transform: func(s string) string { return "재시도 성공" },
		failures:  2,
		failWith:  &providers.Error{Code: providers.ErrCodeRateLimited, Message: "rate limit exceeded"},
	}
	tr := newTestTranslator(t, testConfig(), provider)

	result, err := tr.Translate(context.Background(), "Hello retry.")
	require.NoError(t, err)
	assert.Equal(t, "재시도 성공", result.Text)
	assert.Equal(t, 3, provider.callCount())
}

func TestTranslateNonRetryableErrorFailsFast(t *testing.T) {
	provider := &fakeProvider{
		failures: 10,
		failWith: &providers.Error{Code: providers.ErrCodeInvalidAuth, Message: "invalid api key"},
	}
	tr := newTestTranslator(t, testConfig(), provider)

	_, err := tr.Translate(context.Background(), "Hello auth.")
	require.Error(t, err)
	assert.Equal(t, 1, provider.callCount())

	var te *translator.TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, translator.ErrCodeProvider, te.Code)
	assert.Equal(t, "translate", te.Step)
}

func TestTranslateRetriesExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2

	provider := &fakeProvider{
		failures: 10,
		failWith: &providers.Error{Code: providers.ErrCodeServerError, Message: "upstream broke"},
	}
	tr := newTestTranslator(t, cfg, provider)

	_, err := tr.Translate(context.Background(), "Hello again.")
	require.Error(t, err)
	assert.Equal(t, 3, provider.callCount()) // 首次 + 2 次重试
}

// TestTranslateEmptyReplyRetried 空回复视为可重试错误
func TestTranslateEmptyReplyRetried(t *testing.T) {
	provider := &fakeProvider{
		replies: []string{"", "안녕하세요."},
	}
	tr := newTestTranslator(t, testConfig(), provider)

	result, err := tr.Translate(context.Background(), "Hello.")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요.", result.Text)
	assert.Equal(t, 2, provider.callCount())
}

func TestTranslateCanceledDuringRetryWait(t *testing.T) {
	provider := &fakeProvider{
		failures: 10,
		failWith: &providers.Error{Code: providers.ErrCodeTimeout, Message: "deadline exceeded"},
	}
	cfg := testConfig()
	cfg.RetryDelay = time.Minute

	tr := newTestTranslator(t, cfg, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Translate(ctx, "Hello cancel.")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestTranslateVerifyStrict 占位符丢失时严格模式中断，宽松模式带报告继续
func TestTranslateVerifyStrict(t *testing.T) {
	doc := "Intro.\n\n```go\nfmt.Println(1)\n```\n"

	t.Run("strict", func(t *testing.T) {
		provider := &fakeProvider{replies: []string{"자리표시자를 잃어버린 번역입니다."}}
		tr := newTestTranslator(t, testConfig(), provider)

		_, err := tr.Translate(context.Background(), doc)
		require.Error(t, err)
		assert.ErrorIs(t, err, translator.ErrPlaceholderLost)

		var te *translator.TranslationError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, translator.ErrCodeVerify, te.Code)
		assert.Equal(t, "verify", te.Step)
	})

	t.Run("lenient", func(t *testing.T) {
		cfg := testConfig()
		cfg.LenientVerify = true

		provider := &fakeProvider{replies: []string{"자리표시자를 잃어버린 번역입니다."}}
		tr := newTestTranslator(t, cfg, provider)

		result, err := tr.Translate(context.Background(), doc)
		require.NoError(t, err)
		require.NotNil(t, result.Report)
		assert.False(t, result.Report.OK())
		assert.Equal(t, []string{"__CODE_BLOCK_0__"}, result.Report.Missing)
	})
}

func TestTranslateFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "post.md")
	require.NoError(t, os.WriteFile(input, []byte("Hello file.\n"), 0644))

	provider := &fakeProvider{
		transform: func(s string) string { return "파일 번역" },
	}
	tr := newTestTranslator(t, testConfig(), provider)

	output, err := tr.TranslateFile(context.Background(), input, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "post_ko.md"), output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "파일 번역", string(data))
}

func TestTranslateFileMissingInput(t *testing.T) {
	tr := newTestTranslator(t, testConfig(), &fakeProvider{})

	_, err := tr.TranslateFile(context.Background(), filepath.Join(t.TempDir(), "no-such.md"), "")
	require.Error(t, err)

	var te *translator.TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, translator.ErrCodeIO, te.Code)
}

// TestStats 统计不触发任何后端调用
func TestStats(t *testing.T) {
	doc := "# Title\n\nSome prose to translate.\n\n```sh\nls -la /var/log\nwc -l *.md\n```\n"

	provider := &fakeProvider{}
	tr := newTestTranslator(t, testConfig(), provider)

	stats, err := tr.Stats(doc)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ProtectedBlocks)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, stats.TotalChunks, stats.EstimatedAPICalls)
	assert.Greater(t, stats.TotalTokens, 0)
	assert.Greater(t, stats.OriginalLength, stats.ProtectedLength)
	assert.Equal(t, 0, provider.callCount())

	_, err = tr.Stats("   ")
	assert.ErrorIs(t, err, translator.ErrEmptyDocument)
}

func TestGlossaryAppendedToPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.Glossary = map[string]string{"transformer": "트랜스포머"}

	provider := &fakeProvider{
		transform: func(s string) string { return "트랜스포머 설명" },
	}
	tr := newTestTranslator(t, cfg, provider)

	_, err := tr.Translate(context.Background(), "About the transformer.")
	require.NoError(t, err)
	assert.Contains(t, provider.lastReq.SystemPrompt, `"transformer" → "트랜스포머"`)
}

func TestHealthCheckDelegates(t *testing.T) {
	tr := newTestTranslator(t, testConfig(), &fakeProvider{})
	assert.NoError(t, tr.HealthCheck(context.Background()))
}
