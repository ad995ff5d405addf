package translator

import (
	"go.uber.org/zap"

	"github.com/birdblues/translator/pkg/tokenizer"
)

// Option 定义翻译器选项
type Option func(*translatorOptions)

// translatorOptions 包含翻译器选项
type translatorOptions struct {
	cache             Cache
	forceCacheRefresh bool
	tracker           Tracker
	counter           tokenizer.Counter
	logger            *zap.Logger
}

// WithCache 设置缓存
func WithCache(cache Cache) Option {
	return func(opts *translatorOptions) {
		opts.cache = cache
	}
}

// WithForceCacheRefresh 忽略已有缓存条目，全部重新翻译
func WithForceCacheRefresh() Option {
	return func(opts *translatorOptions) {
		opts.forceCacheRefresh = true
	}
}

// WithTracker 设置进度跟踪
func WithTracker(tracker Tracker) Option {
	return func(opts *translatorOptions) {
		opts.tracker = tracker
	}
}

// WithCounter 设置令牌计数器
func WithCounter(counter tokenizer.Counter) Option {
	return func(opts *translatorOptions) {
		opts.counter = counter
	}
}

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(opts *translatorOptions) {
		opts.logger = log
	}
}
