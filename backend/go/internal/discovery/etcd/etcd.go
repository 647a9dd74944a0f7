// Package etcd 让 Agent 把自己注册到 etcd，并从中发现其他 Agent。
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/models"
	"Conductor/backend/go/pkg/logger"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// 默认的键前缀和租约时长。
const (
	DefaultPrefix   = "/conductor/agents/"
	DefaultLeaseTTL = 10
)

// Registry 是基于 etcd 的 Agent 注册表，实现 discovery.Source。
type Registry struct {
	cli    *clientv3.Client
	prefix string
	ttl    int64
	log    *logger.Logger
}

// New 连接 etcd。
func New(cfg config.EtcdConfig, log *logger.Logger) (*Registry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Registry{cli: cli, prefix: prefix, ttl: ttl, log: log}, nil
}

// Key 返回 Agent 在 etcd 中的键。
func (r *Registry) Key(name string) string {
	return r.prefix + name
}

// Register 以租约写入 Agent 描述并持续续约。调用返回的 stop 撤销租约并删除键。
func (r *Registry) Register(ctx context.Context, desc models.AgentDescriptor) (stop func(), err error) {
	value, err := json.Marshal(desc)
	if err != nil {
		return nil, err
	}

	leaseResp, err := r.cli.Grant(ctx, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("etcd grant lease: %w", err)
	}
	if _, err = r.cli.Put(ctx, r.Key(desc.Name), string(value), clientv3.WithLease(leaseResp.ID)); err != nil {
		return nil, fmt.Errorf("etcd put %s: %w", r.Key(desc.Name), err)
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	keepAliveCh, err := r.cli.KeepAlive(keepCtx, leaseResp.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("etcd keepalive: %w", err)
	}

	go func() {
		for range keepAliveCh {
		}
		if keepCtx.Err() == nil {
			r.log.WithPayload(map[string]interface{}{"agent": desc.Name}).Warn("etcd lease expired or was revoked")
		}
	}()

	return func() {
		cancel()
		revokeCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
		defer done()
		// 撤销租约会同时删除键
		if _, err := r.cli.Revoke(revokeCtx, leaseResp.ID); err != nil {
			r.log.WithErr(err).Warn("etcd revoke lease failed")
		}
	}, nil
}

// Descriptors 列出前缀下的所有 Agent，无法解析的值记录日志后跳过。
func (r *Registry) Descriptors(ctx context.Context) ([]models.AgentDescriptor, error) {
	resp, err := r.cli.Get(ctx, r.prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("etcd list %s: %w", r.prefix, err)
	}

	var out []models.AgentDescriptor
	for _, kv := range resp.Kvs {
		d, err := decodeDescriptor(kv.Value)
		if err != nil {
			r.log.WithErr(err).WithPayload(map[string]interface{}{"key": string(kv.Key)}).Warn("skip invalid agent entry")
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeDescriptor(raw []byte) (models.AgentDescriptor, error) {
	var d models.AgentDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, err
	}
	if d.Name == "" || d.Port <= 0 {
		return d, fmt.Errorf("incomplete agent descriptor %q", string(raw))
	}
	return d, nil
}

// Close closes the etcd client.
func (r *Registry) Close() error {
	return r.cli.Close()
}
