// Package bootstrap 根据配置组装数据库 Agent：远端存储、分类器、分类锁和工具循环。
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"Conductor/backend/go/internal/config"
	"Conductor/backend/go/internal/database/mysql"
	"Conductor/backend/go/internal/database/redis"
	"Conductor/backend/go/internal/database/supabase"
	"Conductor/backend/go/internal/database_agent/service"
	"Conductor/backend/go/internal/llm"
	phttp "Conductor/backend/go/pkg/http"
	"Conductor/backend/go/pkg/logger"
	"Conductor/backend/go/pkg/metrics"
)

// 支持的存储类型。
const (
	StoreSupabase = "supabase"
	StoreMySQL    = "mysql"
)

// StoreFactory 返回按配置创建存储的工厂，以及关闭已创建连接的函数。
// 存储在第一次使用时才创建，缺少凭据的错误也在那时返回。
func StoreFactory(cfg *config.AppConfig) (service.StoreFactory, func(), error) {
	switch cfg.DatabaseAgent.Store {
	case "", StoreSupabase:
		client, err := phttp.NewClient(cfg.Middleware.CircuitBreaker)
		if err != nil {
			return nil, nil, err
		}
		factory := func() (service.Store, error) {
			return supabase.New(cfg.Databases.Supabase.URL, cfg.Databases.Supabase.AnonKey, client)
		}
		return factory, func() {}, nil

	case StoreMySQL:
		var (
			mu     sync.Mutex
			opened *mysql.Store
		)
		factory := func() (service.Store, error) {
			db, err := mysql.Open(&cfg.Databases.MySQL)
			if err != nil {
				return nil, err
			}
			s := mysql.New(db)
			mu.Lock()
			opened = s
			mu.Unlock()
			return s, nil
		}
		closer := func() {
			mu.Lock()
			defer mu.Unlock()
			if opened != nil {
				_ = opened.Close()
			}
		}
		return factory, closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown database agent store: %q", cfg.DatabaseAgent.Store)
	}
}

// Locker 配置了 Redis 时返回分布式锁，否则（或连接失败时）返回进程内锁。
func Locker(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (service.CategoryLocker, func()) {
	if cfg.Databases.Redis.Address == "" {
		return service.NewLocalLocker(), func() {}
	}
	client, err := redis.Open(ctx, &cfg.Databases.Redis)
	if err != nil {
		log.WithErr(err).Warn("Redis unavailable, falling back to in-process category lock")
		return service.NewLocalLocker(), func() {}
	}
	log.Info("Using Redis category lock")
	return redis.NewLocker(client), func() { _ = client.Close() }
}

// New 组装数据库 Agent。返回的 cleanup 关闭存储和锁的连接。
func New(ctx context.Context, cfg *config.AppConfig, model, classifierModel llm.LLM, m *metrics.Metrics, log *logger.Logger) (*service.DatabaseAgent, func(), error) {
	factory, closeStore, err := StoreFactory(cfg)
	if err != nil {
		return nil, nil, err
	}
	locker, closeLocker := Locker(ctx, cfg, log)

	svc, err := service.NewDatabaseService(factory, service.NewLLMClassifier(classifierModel), cfg.DatabaseAgent.SchemaCacheSize,
		service.WithCategoriesTable(cfg.DatabaseAgent.CategoriesTable),
		service.WithLocker(locker),
		service.WithMetrics(m),
		service.WithLogger(log),
	)
	if err != nil {
		closeLocker()
		closeStore()
		return nil, nil, err
	}

	cleanup := func() {
		closeLocker()
		closeStore()
	}
	return service.NewDatabaseAgent(svc, model, cfg.DatabaseAgent.MaxIterations), cleanup, nil
}
