// Package ratelimiter 提供令牌桶和固定窗口两种限流算法，以及按客户端分别限流的封装。
package ratelimiter

import (
	"Conductor/backend/go/internal/config"
	"fmt"
	"time"
)

// RateLimiter is the interface for rate limiting.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}

// Factory 为每个新客户端创建一个独立的限流器。
type Factory func() RateLimiter

// FactoryFromConfig 根据配置选择算法，默认令牌桶。
func FactoryFromConfig(cfg config.RateLimiterConfig) (Factory, error) {
	switch cfg.Algorithm {
	case "", "tokenBucket":
		conf := cfg.TokenBucket
		if conf.Rate <= 0 || conf.Capacity <= 0 {
			return nil, fmt.Errorf("tokenBucket requires positive rate and capacity")
		}
		return func() RateLimiter { return NewTokenBucket(conf.Rate, conf.Capacity) }, nil
	case "fixedWindow":
		conf := cfg.FixedWindow
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid fixedWindow duration: %w", err)
		}
		return func() RateLimiter { return NewFixedWindowCounter(conf.Limit, window) }, nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}
