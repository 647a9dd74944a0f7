package ratelimiter

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxKeys 是同时跟踪的客户端数量上限，超出时淘汰最久未访问的客户端。
const DefaultMaxKeys = 10000

// Keyed 为每个键（通常是客户端 IP）维护一个独立的限流器。
type Keyed struct {
	factory  Factory
	limiters *lru.Cache[string, RateLimiter]
	mu       sync.Mutex // 保证同一个键只创建一个限流器
}

// NewKeyed 创建按键限流器。
func NewKeyed(factory Factory, maxKeys int) (*Keyed, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New[string, RateLimiter](maxKeys)
	if err != nil {
		return nil, err
	}
	return &Keyed{factory: factory, limiters: cache}, nil
}

// AllowKey 判断该键的请求是否放行。
func (k *Keyed) AllowKey(key string) bool {
	limiter, ok := k.limiters.Get(key)
	if !ok {
		k.mu.Lock()
		limiter, ok = k.limiters.Get(key)
		if !ok {
			limiter = k.factory()
			k.limiters.Add(key, limiter)
		}
		k.mu.Unlock()
	}
	return limiter.Allow()
}
