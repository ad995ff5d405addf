package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/birdblues/translator/pkg/providers"
)

// Config OpenAI 配置
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	OrgID       string  `json:"org_id,omitempty"`
}

// DefaultConfig 返回默认配置。MaxTokens 为 0 表示不限制生成长度。
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
	}
}

// Provider 基于官方 SDK 的 OpenAI 后端
type Provider struct {
	config Config
	client openai.Client
}

var _ providers.Provider = (*Provider)(nil)

// New 创建 OpenAI 后端
func New(config Config) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.APIEndpoint != "" {
		opts = append(opts, option.WithBaseURL(config.APIEndpoint))
	}
	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}
	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}
	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(opts...),
	}
}

// Generate 调用 Chat Completions 生成译文
func (p *Provider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Text))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(model),
	}
	if temperature := pick(req.Temperature, p.config.Temperature); temperature > 0 {
		params.Temperature = openai.Float(float64(temperature))
	}
	if maxTokens := pickInt(req.MaxTokens, p.config.MaxTokens); maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &providers.Error{
			Code:    providers.ErrCodeNetworkError,
			Message: "openai chat completion failed",
			Details: err.Error(),
		}
	}
	if len(completion.Choices) == 0 {
		return nil, &providers.Error{
			Code:    providers.ErrCodeBadResponse,
			Message: "no choices returned from openai",
		}
	}

	return &providers.Response{
		Text:      completion.Choices[0].Message.Content,
		Model:     completion.Model,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
	}, nil
}

// GetName 返回后端名称
func (p *Provider) GetName() string {
	return "openai"
}

// HealthCheck 用最小请求探测凭证与连通性
func (p *Provider) HealthCheck(ctx context.Context) error {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Hello"),
		},
		Model:     openai.ChatModel(p.config.Model),
		MaxTokens: openai.Int(10),
	}
	_, err := p.client.Chat.Completions.New(ctx, params)
	return err
}

func pick(v, fallback float32) float32 {
	if v != 0 {
		return v
	}
	return fallback
}

func pickInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
