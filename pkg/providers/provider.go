package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// BaseConfig 各后端共享的连接配置
type BaseConfig struct {
	APIKey      string            `json:"api_key,omitempty"`
	APIEndpoint string            `json:"api_endpoint,omitempty"`
	Timeout     time.Duration     `json:"timeout"`
	MaxRetries  int               `json:"max_retries"`
	RetryDelay  time.Duration     `json:"retry_delay"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回基础配置默认值
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:    5 * time.Minute, // 本地大模型生成一个分块可能很慢
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// Request 一次重写请求。Text 是带占位符的源文片段，
// SystemPrompt 携带完整的翻译规则，两者都由编排层组装。
type Request struct {
	Text         string
	SystemPrompt string
	Model        string
	Temperature  float32
	MaxTokens    int
}

// Response 后端返回的重写结果
type Response struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// Provider 大模型后端。实现必须用 error 表达失败，
// 不得把错误话术写进 Response.Text 冒充译文。
type Provider interface {
	GetName() string
	Generate(ctx context.Context, req *Request) (*Response, error)
	HealthCheck(ctx context.Context) error
}

// 后端错误码
const (
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeTimeout      = "timeout"
	ErrCodeServerError  = "server_error"
	ErrCodeNetworkError = "network_error"
	ErrCodeInvalidAuth  = "invalid_auth"
	ErrCodeBadResponse  = "bad_response"
)

// Error 后端错误
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsRetryable 这类错误换个时间重试可能成功
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimited, ErrCodeTimeout, ErrCodeServerError, ErrCodeNetworkError:
		return true
	}
	return false
}

// CodeForStatus 把 HTTP 状态映射到错误码
func CodeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeInvalidAuth
	case status == http.StatusRequestTimeout:
		return ErrCodeTimeout
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status >= http.StatusInternalServerError:
		return ErrCodeServerError
	default:
		return ErrCodeBadResponse
	}
}
