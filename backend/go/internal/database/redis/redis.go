// Package redis 提供基于 Redis 的分布式分类锁。
package redis

import (
	"context"
	"fmt"
	"time"

	"Conductor/backend/go/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// 默认的锁参数。
const (
	DefaultKeyPrefix = "conductor:category-lock:"
	DefaultTTL       = 10 * time.Second
	DefaultRetry     = 50 * time.Millisecond
)

// Open 创建客户端并用 Ping 检查连接。
func Open(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("无法连接到 Redis: %w", err)
	}
	return rdb, nil
}

// 只删除自己持有的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 用 SETNX 加过期时间实现按名称的互斥锁，满足数据库 Agent 的 CategoryLocker。
// 持有者崩溃时锁在 TTL 后自动释放。
type Locker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithTTL 设置锁的过期时间。
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) { l.ttl = ttl }
}

// WithKeyPrefix 设置锁键前缀。
func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) { l.prefix = prefix }
}

// NewLocker 创建分布式锁。
func NewLocker(client redis.Cmdable, opts ...Option) *Locker {
	l := &Locker{client: client, prefix: DefaultKeyPrefix, ttl: DefaultTTL, retry: DefaultRetry}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key 返回名称对应的锁键。
func (l *Locker) Key(name string) string {
	return l.prefix + name
}

// Lock 阻塞直到获得锁或 ctx 结束。
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.Key(name)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("获取分类锁 %s 失败: %w", name, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// 释放失败时锁会在 TTL 后过期
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
