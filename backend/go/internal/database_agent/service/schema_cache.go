package service

import (
	"Conductor/backend/go/internal/models"
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSchemaCacheSize 是表结构缓存的默认容量。
const DefaultSchemaCacheSize = 128

// SchemaLoader 从远端加载表结构。
type SchemaLoader func(ctx context.Context, table string) (*models.TableSchema, error)

// SchemaCache 按表名缓存表结构。
// 同一张表的并发加载合并为一次；Purge 之后，早于它开始的加载结果不会写回缓存。
type SchemaCache struct {
	mu         sync.Mutex // 保护 generation 与写入的原子性
	generation uint64
	entries    *lru.Cache[string, *models.TableSchema]
	group      singleflight.Group
	load       SchemaLoader
}

// NewSchemaCache 创建表结构缓存。
func NewSchemaCache(size int, load SchemaLoader) (*SchemaCache, error) {
	if size <= 0 {
		size = DefaultSchemaCacheSize
	}
	entries, err := lru.New[string, *models.TableSchema](size)
	if err != nil {
		return nil, err
	}
	return &SchemaCache{entries: entries, load: load}, nil
}

// Get 返回表结构，缓存未命中时加载。
func (c *SchemaCache) Get(ctx context.Context, table string) (*models.TableSchema, error) {
	if s, ok := c.entries.Get(table); ok {
		return s, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("%d/%s", gen, table), func() (any, error) {
		s, err := c.load(ctx, table)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.entries.Add(table, s)
		}
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TableSchema), nil
}

// Purge 清空全部缓存，不只是某一张表。
func (c *SchemaCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries.Purge()
}

// Len 返回缓存的表数量。
func (c *SchemaCache) Len() int {
	return c.entries.Len()
}
