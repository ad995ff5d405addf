// Package compat 通过 OpenAI 兼容协议对接本地推理服务
// （llama.cpp server、LM Studio、vLLM 等）。
package compat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/birdblues/translator/pkg/providers"
)

// Config OpenAI 兼容端点配置
type Config struct {
	providers.BaseConfig
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	StripThink  bool    `json:"strip_think"`
}

// DefaultConfig 返回默认配置。MaxTokens 为 0 表示不限制生成长度。
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Name:        "compat",
		Model:       "qwen3-32b",
		Temperature: 0.1,
		StripThink:  true,
	}
}

// Provider OpenAI 兼容后端
type Provider struct {
	config Config
	client *openai.Client
}

var _ providers.Provider = (*Provider)(nil)

// New 创建 OpenAI 兼容后端
func New(config Config) *Provider {
	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.APIEndpoint != "" {
		// go-openai 的 API 后缀以斜杠开头，BaseURL 末尾再带斜杠会拼出双斜杠
		clientCfg.BaseURL = strings.TrimSuffix(config.APIEndpoint, "/")
	}
	if config.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Generate 调用兼容端点生成译文
func (p *Provider) Generate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Text,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if temperature := req.Temperature; temperature > 0 {
		chatReq.Temperature = temperature
	} else if p.config.Temperature > 0 {
		chatReq.Temperature = p.config.Temperature
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		chatReq.MaxTokens = maxTokens
	} else if p.config.MaxTokens > 0 {
		chatReq.MaxTokens = p.config.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &providers.Error{
			Code:    providers.ErrCodeBadResponse,
			Message: "no choices returned from endpoint",
		}
	}

	text := resp.Choices[0].Message.Content
	if p.config.StripThink {
		text = stripReasoning(text)
	}

	return &providers.Response{
		Text:      text,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

// GetName 返回后端名称
func (p *Provider) GetName() string {
	if p.config.Name != "" {
		return p.config.Name
	}
	return "compat"
}

// HealthCheck 用最小请求探测端点连通性
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return wrapError(err)
	}
	return nil
}

func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &providers.Error{
			Code:    providers.CodeForStatus(apiErr.HTTPStatusCode),
			Message: "chat completion failed",
			Details: apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &providers.Error{
			Code:    providers.CodeForStatus(reqErr.HTTPStatusCode),
			Message: "chat completion failed",
			Details: reqErr.Error(),
		}
	}
	return &providers.Error{
		Code:    providers.ErrCodeNetworkError,
		Message: "chat completion failed",
		Details: err.Error(),
	}
}

var reasoningTags = []struct {
	start string
	end   string
}{
	{start: "<think>", end: "</think>"},
	{start: "<Think>", end: "</Think>"},
	{start: "<THINK>", end: "</THINK>"},
	{start: "<reasoning>", end: "</reasoning>"},
	{start: "<Reasoning>", end: "</Reasoning>"},
	{start: "<思考>", end: "</思考>"},
}

// stripReasoning 去掉推理模型输出里的思考段，思考段不是译文
func stripReasoning(content string) string {
	hasTags := false
	for _, tag := range reasoningTags {
		if strings.Contains(content, tag.start) && strings.Contains(content, tag.end) {
			hasTags = true
			break
		}
	}
	if !hasTags {
		return content
	}

	result := content
	for _, tag := range reasoningTags {
		for {
			startIdx := strings.Index(result, tag.start)
			if startIdx == -1 {
				break
			}
			endIdx := strings.Index(result, tag.end)
			if endIdx == -1 || endIdx < startIdx {
				break
			}
			result = result[:startIdx] + result[endIdx+len(tag.end):]
		}
	}
	return strings.TrimSpace(result)
}
