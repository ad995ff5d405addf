package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/birdblues/translator/pkg/providers"
)

const (
	defaultEndpoint = "http://localhost:11434"

	// DefaultModel 默认本地模型
	DefaultModel = "qwen3:32b"
)

// Config Ollama 配置
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig 返回默认配置。
// MaxTokens 为 0 表示不限制生成长度：韩语译文往往比原文更长，设上限会截断译文。
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Model:       DefaultModel,
		Temperature: 0.1,
	}
}

// Provider 基于 Ollama /api/generate 的本地后端
type Provider struct {
	config     Config
	httpClient *http.Client
}

var _ providers.Provider = (*Provider)(nil)

// New 创建 Ollama 后端
func New(config Config) *Provider {
	if config.APIEndpoint == "" {
		config.APIEndpoint = defaultEndpoint
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = providers.DefaultConfig().Timeout
	}
	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// generateRequest /api/generate 的请求体。
// think 必须显式关闭，推理模型的思考段会混进译文。
type generateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Think   bool                   `json:"think"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	TotalDuration      int64     `json:"total_duration"`
	LoadDuration       int64     `json:"load_duration"`
	PromptEvalCount    int       `json:"prompt_eval_count"`
	PromptEvalDuration int64     `json:"prompt_eval_duration"`
	EvalCount          int       `json:"eval_count"`
	EvalDuration       int64     `json:"eval_duration"`
}

// Generate 调用本地模型生成译文
func (p *Provider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	options := map[string]interface{}{
		"temperature": temperature,
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}

	body := generateRequest{
		Model:   model,
		System:  req.SystemPrompt,
		Prompt:  req.Text,
		Stream:  false,
		Think:   false,
		Options: options,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIEndpoint+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.config.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &providers.Error{
			Code:    providers.ErrCodeNetworkError,
			Message: "ollama request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &providers.Error{
			Code:    providers.CodeForStatus(resp.StatusCode),
			Message: fmt.Sprintf("ollama returned status %d", resp.StatusCode),
			Details: string(data),
		}
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &providers.Error{
			Code:    providers.ErrCodeBadResponse,
			Message: "decode ollama response",
			Details: err.Error(),
		}
	}

	return &providers.Response{
		Text:      result.Response,
		Model:     result.Model,
		TokensIn:  result.PromptEvalCount,
		TokensOut: result.EvalCount,
	}, nil
}

// GetName 返回后端名称
func (p *Provider) GetName() string {
	return "ollama"
}

// HealthCheck 用最小的生成请求探测服务可用性
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.Generate(ctx, &providers.Request{Text: "ping", MaxTokens: 1})
	return err
}
