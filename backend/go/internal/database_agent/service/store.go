package service

import (
	"Conductor/backend/go/internal/models"
	"context"
	"sync"
)

// Store 是数据库 Agent 背后的远端存储。
type Store interface {
	// Columns 返回表的列定义。
	Columns(ctx context.Context, table string) ([]models.Column, error)
	// Upsert 插入一行，主键冲突时覆盖，返回存储返回的行。
	Upsert(ctx context.Context, table string, row map[string]any) ([]map[string]any, error)
	// Select 返回所有满足等值条件的行，filters 中每个键对应一个条件。
	Select(ctx context.Context, table string, filters map[string]any) ([]map[string]any, error)
	// ExecuteSQL 执行一条结构变更语句。
	ExecuteSQL(ctx context.Context, sql string) error
}

// StoreFactory 创建存储，用于首次使用时才检查凭据。
type StoreFactory func() (Store, error)

// lazyStore 在第一次访问时创建存储；创建失败不会被缓存，下次访问重试。
type lazyStore struct {
	mu      sync.Mutex
	factory StoreFactory
	store   Store
}

func (l *lazyStore) get() (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	s, err := l.factory()
	if err != nil {
		return nil, err
	}
	l.store = s
	return s, nil
}
