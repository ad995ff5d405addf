package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/birdblues/translator/pkg/providers"
)

// 预定义错误
var (
	// ErrNoProvider 未配置翻译后端
	ErrNoProvider = errors.New("translation provider not configured")

	// ErrEmptyDocument 空文档错误
	ErrEmptyDocument = errors.New("empty document provided")

	// ErrPlaceholderCollision 原文中已存在占位符文本
	ErrPlaceholderCollision = errors.New("document already contains placeholder text")

	// ErrPlaceholderLost 译文中占位符丢失
	ErrPlaceholderLost = errors.New("placeholder lost during translation")

	// ErrTimeout 超时错误
	ErrTimeout = errors.New("translation timeout")

	// ErrRateLimited 速率限制错误
	ErrRateLimited = errors.New("rate limited")

	// ErrContextCanceled 上下文取消错误
	ErrContextCanceled = errors.New("context canceled")
)

// TranslationError 翻译错误
type TranslationError struct {
	Code    string // 错误代码
	Message string // 错误消息
	Cause   error  // 原因
	Step    string // 发生错误的步骤
	Retry   bool   // 是否可重试
}

// Error 实现error接口
func (e *TranslationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s at step '%s'", e.Code, e.Message, e.Step)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原因错误
func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// IsRetryable 是否可重试
func (e *TranslationError) IsRetryable() bool {
	return e.Retry
}

// NewTranslationError 创建翻译错误
func NewTranslationError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Retry:   false,
	}
}

// NewRetryableError 创建可重试错误
func NewRetryableError(code, message string, cause error) *TranslationError {
	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Retry:   true,
	}
}

// 错误代码常量
const (
	ErrCodeConfig    = "CONFIG_ERROR"
	ErrCodeProtect   = "PROTECT_ERROR"
	ErrCodeChunk     = "CHUNK_ERROR"
	ErrCodeProvider  = "PROVIDER_ERROR"
	ErrCodeVerify    = "VERIFY_ERROR"
	ErrCodeRestore   = "RESTORE_ERROR"
	ErrCodeCache     = "CACHE_ERROR"
	ErrCodeIO        = "IO_ERROR"
	ErrCodeTimeout   = "TIMEOUT_ERROR"
	ErrCodeRateLimit = "RATE_LIMIT_ERROR"
	ErrCodeUnknown   = "UNKNOWN_ERROR"
)

// WrapError 包装错误
func WrapError(err error, code, message string) *TranslationError {
	if err == nil {
		return nil
	}

	// 如果已经是TranslationError，保留原有信息
	if te, ok := err.(*TranslationError); ok {
		te.Message = message + ": " + te.Message
		return te
	}

	return &TranslationError{
		Code:    code,
		Message: message,
		Cause:   err,
		Retry:   isRetryableError(err),
	}
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 后端返回的类型化错误自带重试标记
	var perr *providers.Error
	if errors.As(err, &perr) {
		return perr.IsRetryable()
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"temporary failure",
		"rate limit",
		"429",
		"503",
		"504",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
	}

	for _, pattern := range retryablePatterns {
		if contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// contains 检查字符串是否包含子串（不区分大小写）
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
